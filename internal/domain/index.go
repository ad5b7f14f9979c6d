package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Index is an optional computed index value. The zero value is unavailable.
type Index struct {
	Value float64
	Valid bool
}

// Unavailable is the index value for a missing constant or a non-finite result.
var Unavailable = Index{}

// IndexOf rounds x to three decimals. Non-finite input yields Unavailable.
func IndexOf(x float64) Index {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Unavailable
	}
	r := Round3(x)
	if math.IsInf(r, 0) {
		return Unavailable
	}
	return Index{Value: r, Valid: true}
}

// IndexFromPtr converts a nullable float (as stored in SQL) into an Index.
func IndexFromPtr(p *float64) Index {
	if p == nil {
		return Unavailable
	}
	return Index{Value: *p, Valid: true}
}

// Ptr returns the value as a nullable float, nil when unavailable.
func (i Index) Ptr() *float64 {
	if !i.Valid {
		return nil
	}
	v := i.Value
	return &v
}

func (i Index) String() string {
	if !i.Valid {
		return "unavailable"
	}
	return fmt.Sprintf("%g", i.Value)
}

// MarshalJSON renders an unavailable index as null.
func (i Index) MarshalJSON() ([]byte, error) {
	if !i.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(i.Value)
}

// UnmarshalJSON accepts a number or null.
func (i *Index) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*i = Unavailable
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode index: %w", err)
	}
	*i = Index{Value: v, Valid: true}
	return nil
}

// Round3 rounds to three decimals, half away from zero.
func Round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

// MetalMeasurement is one metal's reading within a test, with its per-metal indices.
type MetalMeasurement struct {
	Metal         string  `json:"metal"`
	Concentration float64 `json:"concentration"`
	CF            Index   `json:"CF"`
	Igeo          Index   `json:"Igeo"`
	EF            Index   `json:"EF"`
	ERI           Index   `json:"ERI"`
}

// CalculateMetal computes CF, Igeo, EF and ERI for concentration m.
// CF needs S; Igeo and EF need B; ERI needs CF. Each index whose
// precondition fails is unavailable without affecting the others.
func CalculateMetal(metal string, m float64) MetalMeasurement {
	return calculateMetalWith(metalConstants, metal, m)
}

func calculateMetalWith(table constantTable, metal string, m float64) MetalMeasurement {
	out := MetalMeasurement{Metal: metal, Concentration: m}

	c, ok := table[metal]
	if !ok {
		return out
	}

	if c.StandardLimit != 0 {
		out.CF = IndexOf(m / c.StandardLimit)
	}
	if c.BaselineAbundance != 0 {
		out.Igeo = IndexOf(math.Log2(m / (1.5 * c.BaselineAbundance)))
		out.EF = IndexOf(m / c.BaselineAbundance)
	}
	if out.CF.Valid {
		out.ERI = IndexOf(out.CF.Value * m)
	}
	return out
}

// CalculateMetals computes per-metal indices for every reading, preserving order.
func CalculateMetals(readings []Concentration) []MetalMeasurement {
	out := make([]MetalMeasurement, 0, len(readings))
	for _, r := range readings {
		out = append(out, CalculateMetal(r.Metal, r.Value))
	}
	return out
}

// CalculateAggregate computes HPI and HEI over a test's readings.
//
// HPI weighs each metal with both S and I known by Wi = 1/S; it is unavailable
// when no metal qualifies. HEI sums M/S over metals with S known and is 0 when
// none qualify.
func CalculateAggregate(readings []Concentration) (hpi, hei Index) {
	return calculateAggregateWith(metalConstants, readings)
}

func calculateAggregateWith(table constantTable, readings []Concentration) (hpi, hei Index) {
	var sumWiQi, sumWi, heiSum float64

	for _, r := range readings {
		c, ok := table[r.Metal]
		if !ok || c.StandardLimit == 0 {
			continue
		}
		heiSum += r.Value / c.StandardLimit

		if c.IdealValue == 0 {
			continue
		}
		wi := 1 / c.StandardLimit
		qi := (r.Value - c.IdealValue) / (c.StandardLimit - c.IdealValue) * 100
		sumWiQi += wi * qi
		sumWi += wi
	}

	hpi = Unavailable
	if sumWi > 0 {
		hpi = IndexOf(sumWiQi / sumWi)
	}
	return hpi, IndexOf(heiSum)
}
