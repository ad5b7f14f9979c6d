package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const delta = 1e-9

func TestCalculateMetal(t *testing.T) {
	t.Run("lead reference scenario", func(t *testing.T) {
		m := CalculateMetal("Pb", 12)

		assert.Equal(t, "Pb", m.Metal)
		assert.Equal(t, 12.0, m.Concentration)
		require.True(t, m.CF.Valid)
		assert.InDelta(t, 0.8, m.CF.Value, delta)
		require.True(t, m.EF.Valid)
		assert.InDelta(t, 0.6, m.EF.Value, delta)
		require.True(t, m.Igeo.Valid)
		assert.InDelta(t, -1.322, m.Igeo.Value, delta)
		require.True(t, m.ERI.Valid)
		assert.InDelta(t, 9.6, m.ERI.Value, delta)
	})

	t.Run("cadmium", func(t *testing.T) {
		m := CalculateMetal("Cd", 5)

		assert.InDelta(t, 0.5, m.CF.Value, delta)
		assert.InDelta(t, 10.0, m.EF.Value, delta)
		assert.InDelta(t, 2.737, m.Igeo.Value, delta)
		assert.InDelta(t, 2.5, m.ERI.Value, delta)
	})

	t.Run("zero concentration makes Igeo unavailable", func(t *testing.T) {
		m := CalculateMetal("Zn", 0)

		assert.True(t, m.CF.Valid)
		assert.Equal(t, 0.0, m.CF.Value)
		assert.True(t, m.EF.Valid)
		assert.False(t, m.Igeo.Valid, "log2(0) must not leak -Inf")
		assert.True(t, m.ERI.Valid)
	})

	t.Run("negative concentration makes Igeo unavailable", func(t *testing.T) {
		m := CalculateMetal("Pb", -5)

		assert.False(t, m.Igeo.Valid, "log2 of a negative ratio must not leak NaN")
		assert.InDelta(t, -0.333, m.CF.Value, delta)
		assert.InDelta(t, -0.25, m.EF.Value, delta)
		assert.InDelta(t, 1.665, m.ERI.Value, delta)
	})

	t.Run("unknown metal has no indices", func(t *testing.T) {
		m := CalculateMetal("Hg", 3)

		assert.Equal(t, 3.0, m.Concentration)
		assert.Equal(t, Unavailable, m.CF)
		assert.Equal(t, Unavailable, m.Igeo)
		assert.Equal(t, Unavailable, m.EF)
		assert.Equal(t, Unavailable, m.ERI)
	})

	t.Run("deterministic", func(t *testing.T) {
		for _, metal := range KnownMetals() {
			assert.Equal(t, CalculateMetal(metal, 42.42), CalculateMetal(metal, 42.42))
		}
	})
}

func TestCalculateMetal_MatchesFormulas(t *testing.T) {
	concentrations := []float64{0.1, 1, 7.5, 12, 55, 999, 20000}

	for _, metal := range KnownMetals() {
		c, ok := LookupConstant(metal)
		require.True(t, ok)

		for _, m := range concentrations {
			got := CalculateMetal(metal, m)

			cf := Round3(m / c.StandardLimit)
			assert.Equal(t, cf, got.CF.Value, "%s CF at %g", metal, m)
			assert.Equal(t, Round3(m/c.BaselineAbundance), got.EF.Value, "%s EF at %g", metal, m)
			assert.Equal(t, Round3(math.Log2(m/(1.5*c.BaselineAbundance))), got.Igeo.Value, "%s Igeo at %g", metal, m)
			assert.Equal(t, Round3(cf*m), got.ERI.Value, "%s ERI at %g", metal, m)
		}
	}
}

func TestCalculateAggregate(t *testing.T) {
	t.Run("lead and cadmium", func(t *testing.T) {
		hpi, hei := CalculateAggregate([]Concentration{
			{Metal: "Pb", Value: 12},
			{Metal: "Cd", Value: 5},
		})

		// Pb: Wi=1/15, Qi=40; Cd: Wi=1/10, Qi=0.
		require.True(t, hpi.Valid)
		assert.InDelta(t, 16.0, hpi.Value, delta)
		require.True(t, hei.Valid)
		assert.InDelta(t, 1.3, hei.Value, delta)
	})

	t.Run("single metal HPI equals its sub-index", func(t *testing.T) {
		hpi, hei := CalculateAggregate([]Concentration{{Metal: "Pb", Value: 30}})

		assert.InDelta(t, 400.0, hpi.Value, delta)
		assert.InDelta(t, 2.0, hei.Value, delta)
	})

	t.Run("no qualifying metals", func(t *testing.T) {
		hpi, hei := CalculateAggregate([]Concentration{{Metal: "Hg", Value: 3}})

		assert.False(t, hpi.Valid)
		require.True(t, hei.Valid)
		assert.Equal(t, 0.0, hei.Value)
	})

	t.Run("empty input", func(t *testing.T) {
		hpi, hei := CalculateAggregate(nil)

		assert.Equal(t, Unavailable, hpi)
		assert.Equal(t, Index{Value: 0, Valid: true}, hei)
	})

	t.Run("matches weighted mean formula", func(t *testing.T) {
		readings := []Concentration{
			{Metal: "Zn", Value: 1200},
			{Metal: "Cu", Value: 80},
			{Metal: "As", Value: 12.5},
			{Metal: "Cr", Value: 4},
		}

		var sumWiQi, sumWi, heiSum float64
		for _, r := range readings {
			c, _ := LookupConstant(r.Metal)
			wi := 1 / c.StandardLimit
			qi := (r.Value - c.IdealValue) / (c.StandardLimit - c.IdealValue) * 100
			sumWiQi += wi * qi
			sumWi += wi
			heiSum += r.Value / c.StandardLimit
		}

		hpi, hei := CalculateAggregate(readings)
		assert.Equal(t, Round3(sumWiQi/sumWi), hpi.Value)
		assert.Equal(t, Round3(heiSum), hei.Value)
	})
}

// edgeTable covers constant shapes the shipped table does not contain.
var edgeTable = constantTable{
	"Pb": {StandardLimit: 15, IdealValue: 10, BaselineAbundance: 20},
	"Ns": {StandardLimit: 0, IdealValue: 5, BaselineAbundance: 10},  // no S
	"Nb": {StandardLimit: 10, IdealValue: 2, BaselineAbundance: 0},  // no B
	"Xi": {StandardLimit: 20, IdealValue: 0, BaselineAbundance: 5},  // no I
	"Eq": {StandardLimit: 10, IdealValue: 10, BaselineAbundance: 5}, // S == I
}

func TestCalculateMetalWith_MissingConstants(t *testing.T) {
	t.Run("CF and ERI unavailable without S", func(t *testing.T) {
		m := calculateMetalWith(edgeTable, "Ns", 20)

		assert.False(t, m.CF.Valid)
		assert.False(t, m.ERI.Valid)
		require.True(t, m.EF.Valid)
		assert.InDelta(t, 2.0, m.EF.Value, delta)
		require.True(t, m.Igeo.Valid)
		assert.InDelta(t, 0.415, m.Igeo.Value, delta)
	})

	t.Run("Igeo and EF unavailable without B", func(t *testing.T) {
		m := calculateMetalWith(edgeTable, "Nb", 5)

		assert.False(t, m.Igeo.Valid)
		assert.False(t, m.EF.Valid)
		require.True(t, m.CF.Valid)
		assert.InDelta(t, 0.5, m.CF.Value, delta)
		require.True(t, m.ERI.Valid)
		assert.InDelta(t, 2.5, m.ERI.Value, delta)
	})

	t.Run("metal absent from table", func(t *testing.T) {
		m := calculateMetalWith(edgeTable, "Hg", 5)

		assert.Equal(t, MetalMeasurement{Metal: "Hg", Concentration: 5}, m)
	})
}

func TestCalculateAggregateWith_MissingConstants(t *testing.T) {
	tests := []struct {
		name     string
		readings []Concentration
		hpi      Index
		hei      float64
	}{
		{
			name:     "metal without I counts toward HEI only",
			readings: []Concentration{{Metal: "Xi", Value: 40}},
			hpi:      Unavailable,
			hei:      2,
		},
		{
			name:     "HPI from metals with both S and I",
			readings: []Concentration{{Metal: "Pb", Value: 12}, {Metal: "Xi", Value: 40}},
			hpi:      Index{Value: 40, Valid: true},
			hei:      2.8,
		},
		{
			name:     "metal without S is skipped",
			readings: []Concentration{{Metal: "Ns", Value: 20}},
			hpi:      Unavailable,
			hei:      0,
		},
		{
			name:     "S equal to I makes HPI unavailable",
			readings: []Concentration{{Metal: "Eq", Value: 12}},
			hpi:      Unavailable,
			hei:      1.2,
		},
		{
			name:     "S equal to I at the ideal value",
			readings: []Concentration{{Metal: "Eq", Value: 10}},
			hpi:      Unavailable,
			hei:      1,
		},
		{
			name:     "S equal to I poisons the mean",
			readings: []Concentration{{Metal: "Pb", Value: 12}, {Metal: "Eq", Value: 12}},
			hpi:      Unavailable,
			hei:      2.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hpi, hei := calculateAggregateWith(edgeTable, tt.readings)

			assert.Equal(t, tt.hpi.Valid, hpi.Valid)
			assert.InDelta(t, tt.hpi.Value, hpi.Value, delta)
			require.True(t, hei.Valid)
			assert.InDelta(t, tt.hei, hei.Value, delta)
		})
	}
}

func TestRound3(t *testing.T) {
	tests := []struct {
		name     string
		in       float64
		expected float64
	}{
		{"already rounded", 0.8, 0.8},
		{"rounds down", 1.23449, 1.234},
		{"rounds up", 1.23451, 1.235},
		{"half away from zero", 0.0005, 0.001},
		{"negative half away from zero", -0.0005, -0.001},
		{"integer", 16, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Round3(tt.in), delta)
		})
	}
}

func TestIndexOf(t *testing.T) {
	assert.Equal(t, Unavailable, IndexOf(math.NaN()))
	assert.Equal(t, Unavailable, IndexOf(math.Inf(1)))
	assert.Equal(t, Unavailable, IndexOf(math.Inf(-1)))
	assert.Equal(t, Index{Value: 1.5, Valid: true}, IndexOf(1.5))
}

func TestIndex_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		A Index `json:"a"`
		B Index `json:"b"`
	}{A: Index{Value: -1.322, Valid: true}, B: Unavailable})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":-1.322,"b":null}`, string(data))

	var decoded struct {
		A Index `json:"a"`
		B Index `json:"b"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, Index{Value: -1.322, Valid: true}, decoded.A)
	assert.Equal(t, Unavailable, decoded.B)

	var bad Index
	assert.Error(t, json.Unmarshal([]byte(`"x"`), &bad))
}

func TestIndex_Ptr(t *testing.T) {
	assert.Nil(t, Unavailable.Ptr())

	p := Index{Value: 2.5, Valid: true}.Ptr()
	require.NotNil(t, p)
	assert.Equal(t, 2.5, *p)

	assert.Equal(t, Index{Value: 2.5, Valid: true}, IndexFromPtr(p))
	assert.Equal(t, Unavailable, IndexFromPtr(nil))
}

func TestConstantTable(t *testing.T) {
	assert.Equal(t, []string{"Pb", "Cd", "Zn", "Cu", "Ni", "Mn", "As", "Cr"}, KnownMetals())

	pb, ok := LookupConstant("Pb")
	require.True(t, ok)
	assert.Equal(t, MetalConstant{StandardLimit: 15, IdealValue: 10, BaselineAbundance: 20}, pb)

	cd, ok := LookupConstant("Cd")
	require.True(t, ok)
	assert.Equal(t, 0.5, cd.BaselineAbundance)

	_, ok = LookupConstant("pb")
	assert.False(t, ok, "lookup is case-sensitive")

	// Callers cannot mutate the table through KnownMetals.
	metals := KnownMetals()
	metals[0] = "Hg"
	assert.Equal(t, "Pb", KnownMetals()[0])
}
