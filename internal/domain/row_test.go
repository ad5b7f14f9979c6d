package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRow(t *testing.T) {
	row := RawRow{
		"siteArea": " Pune ",
		"State":    "Maharashtra",
		"siteCode": " PN-001 ",
		"lat":      "18.5",
		"lon":      "73.8",
		"date":     "2025-09-01",
		"season":   " monsoon",
		"Cd":       "5",
		"Pb":       "12",
		"Hg":       "3",
		"Zn":       "",
		"Cu":       "n/a",
		"Ni":       " 7.25 ",
	}

	parsed := ParseRow(row)

	assert.Equal(t, "Pune", parsed.SiteArea)
	assert.Equal(t, "Maharashtra", parsed.State)
	assert.Equal(t, "PN-001", parsed.SiteCode)
	assert.Equal(t, "18.5", parsed.Lat)
	assert.Equal(t, "73.8", parsed.Lon)
	assert.Equal(t, "2025-09-01", parsed.Date)
	assert.Equal(t, " monsoon", parsed.Season, "season passes through verbatim")
	assert.Equal(t, []Concentration{
		{Metal: "Pb", Value: 12},
		{Metal: "Cd", Value: 5},
		{Metal: "Ni", Value: 7.25},
	}, parsed.Metals)
}

func TestParseRow_NonFiniteSkipped(t *testing.T) {
	parsed := ParseRow(RawRow{"siteCode": "X", "Pb": "NaN", "Cd": "Inf", "Zn": "-Inf", "Cu": "1e3"})

	assert.Equal(t, []Concentration{{Metal: "Cu", Value: 1000}}, parsed.Metals)
}

func TestParseRow_Empty(t *testing.T) {
	parsed := ParseRow(RawRow{})

	assert.Empty(t, parsed.SiteCode)
	assert.Empty(t, parsed.Metals)
}

func TestDecodeRawRow(t *testing.T) {
	row, err := DecodeRawRow([]byte(`{"siteCode":"PN-001","lat":18.5,"Pb":12,"Cd":"5","flag":true,"season":null}`))
	require.NoError(t, err)

	assert.Equal(t, RawRow{
		"siteCode": "PN-001",
		"lat":      "18.5",
		"Pb":       "12",
		"Cd":       "5",
		"flag":     "true",
		"season":   "",
	}, row)
}

func TestDecodeRawRow_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid json", `{not json`},
		{"not an object", `[1,2,3]`},
		{"nested object", `{"siteCode":{"a":1}}`},
		{"nested array", `{"Pb":[12]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRawRow([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "parse raw row")
		})
	}
}

func TestParseRawEvent(t *testing.T) {
	parsed, err := ParseRawEvent(RawEvent{Value: []byte(`{"siteCode":"PN-001","Pb":"12","Cd":5}`)})
	require.NoError(t, err)

	assert.Equal(t, "PN-001", parsed.SiteCode)
	assert.Equal(t, []Concentration{{Metal: "Pb", Value: 12}, {Metal: "Cd", Value: 5}}, parsed.Metals)

	_, err = ParseRawEvent(RawEvent{Value: []byte(`garbage`)})
	assert.Error(t, err)
}

func TestParseSampleDate(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected time.Time
	}{
		{"date only", "2025-09-01", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)},
		{"rfc3339", "2025-09-01T10:30:00Z", time.Date(2025, 9, 1, 10, 30, 0, 0, time.UTC)},
		{"rfc3339 offset", "2025-09-01T05:30:00+05:30", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)},
		{"space separated", "2025-09-01 08:00:00", time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)},
		{"slashes", "2025/09/01", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)},
		{"us style", "09/01/2025", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)},
		{"padded", "  2025-09-01 ", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseSampleDate(tt.in)
			require.NotNil(t, got)
			assert.True(t, tt.expected.Equal(*got), "got %v", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	assert.Nil(t, parseSampleDate(""))
	assert.Nil(t, parseSampleDate("not-a-date"))
	assert.Nil(t, parseSampleDate("2025-13-45"))
}
