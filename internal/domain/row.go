package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Column names of the upload format.
const (
	ColSiteArea = "siteArea"
	ColState    = "State"
	ColSiteCode = "siteCode"
	ColLat      = "lat"
	ColLon      = "lon"
	ColDate     = "date"
	ColSeason   = "season"
)

// RawRow is one uploaded tabular record: column name -> raw cell value.
type RawRow map[string]string

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Concentration is one metal reading parsed from a row.
type Concentration struct {
	Metal string  `json:"metal"`
	Value float64 `json:"concentration"`
}

// ParsedRow is a normalized upload row: passthrough metadata plus the metal
// readings that survived parsing.
type ParsedRow struct {
	SiteArea string          `json:"siteArea"`
	State    string          `json:"State"`
	SiteCode string          `json:"siteCode"`
	Lat      string          `json:"lat"`
	Lon      string          `json:"lon"`
	Date     string          `json:"date"`
	Season   string          `json:"season"`
	Metals   []Concentration `json:"metals"`
}

// ParseRawEvent deserializes a RawEvent's value into a ParsedRow.
// It expects the flat JSON object produced by the ingest CLI. Numeric and
// boolean JSON values are accepted and converted to their text form.
func ParseRawEvent(raw RawEvent) (ParsedRow, error) {
	row, err := DecodeRawRow(raw.Value)
	if err != nil {
		return ParsedRow{}, err
	}
	return ParseRow(row), nil
}

// DecodeRawRow decodes a flat JSON object into a RawRow.
func DecodeRawRow(data []byte) (RawRow, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("parse raw row: %w", err)
	}

	row := make(RawRow, len(fields))
	for k, v := range fields {
		switch tv := v.(type) {
		case nil:
			row[k] = ""
		case string:
			row[k] = tv
		case json.Number:
			row[k] = tv.String()
		case bool:
			row[k] = strconv.FormatBool(tv)
		default:
			return nil, fmt.Errorf("parse raw row: column %q is not a scalar", k)
		}
	}
	return row, nil
}

// ParseRow extracts metadata and metal readings from a raw row. Metals are
// emitted in parse order; unknown columns and empty or non-numeric metal
// values are skipped without error.
func ParseRow(row RawRow) ParsedRow {
	parsed := ParsedRow{
		SiteArea: strings.TrimSpace(row[ColSiteArea]),
		State:    strings.TrimSpace(row[ColState]),
		SiteCode: strings.TrimSpace(row[ColSiteCode]),
		Lat:      strings.TrimSpace(row[ColLat]),
		Lon:      strings.TrimSpace(row[ColLon]),
		Date:     strings.TrimSpace(row[ColDate]),
		Season:   row[ColSeason],
	}

	for _, metal := range metalOrder {
		value, ok := parseConcentration(row[metal])
		if !ok {
			continue
		}
		parsed.Metals = append(parsed.Metals, Concentration{Metal: metal, Value: value})
	}
	return parsed
}

// parseConcentration parses a metal cell. Empty, non-numeric and non-finite
// values report false.
func parseConcentration(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseOptionalFloat parses a coordinate, returning nil when absent or invalid.
func parseOptionalFloat(s string) *float64 {
	v, ok := parseConcentration(s)
	if !ok {
		return nil
	}
	return &v
}

// dateLayouts are tried in order when parsing a row's sampling date.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
}

// parseSampleDate parses a sampling date in UTC. Unparseable input yields nil;
// it is not an error at this layer.
func parseSampleDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
