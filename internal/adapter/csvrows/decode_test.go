package csvrows

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAll(t *testing.T) {
	input := "\ufeffsiteArea, State ,siteCode,lat,lon,date,season,Pb,Cd\n" +
		"Pune,Maharashtra,PN-001,18.5,73.8,2025-09-01,monsoon,12,5\n" +
		"\n" +
		"Kochi,Kerala,KC-001,,,2024-03-01,,0.5\n"

	rows, err := ReadAll(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, domain.RawRow{
		"siteArea": "Pune",
		"State":    "Maharashtra",
		"siteCode": "PN-001",
		"lat":      "18.5",
		"lon":      "73.8",
		"date":     "2025-09-01",
		"season":   "monsoon",
		"Pb":       "12",
		"Cd":       "5",
	}, rows[0])

	assert.Equal(t, "KC-001", rows[1]["siteCode"])
	assert.Equal(t, "", rows[1]["lat"])
	assert.Equal(t, "0.5", rows[1]["Pb"])
	_, hasCd := rows[1]["Cd"]
	assert.False(t, hasCd, "short record leaves missing columns absent")
}

func TestReadAll_FeedsRowParser(t *testing.T) {
	rows, err := ReadAll(strings.NewReader("siteCode,Pb,Hg,Cd\nX,12,3,abc\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	parsed := domain.ParseRow(rows[0])
	assert.Equal(t, []domain.Concentration{{Metal: "Pb", Value: 12}}, parsed.Metals)
}

func TestReadAll_QuotedFields(t *testing.T) {
	rows, err := ReadAll(strings.NewReader("siteArea,siteCode\n\"Pune, East\",PN-002\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Pune, East", rows[0]["siteArea"])
}

func TestReadAll_HeaderOnly(t *testing.T) {
	rows, err := ReadAll(strings.NewReader("siteCode,Pb\n"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadAll_Empty(t *testing.T) {
	_, err := ReadAll(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestReadAll_Malformed(t *testing.T) {
	_, err := ReadAll(strings.NewReader("siteCode,Pb\n\"unterminated,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read csv record")
}

func TestReader_Streaming(t *testing.T) {
	r := NewReader(strings.NewReader("siteCode\nA\nB\n"))
	assert.Nil(t, r.Header())

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"siteCode"}, r.Header())
	assert.Equal(t, "A", first["siteCode"])

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "B", second["siteCode"])
	assert.Equal(t, 2, r.Line())

	_, err = r.Next()
	assert.True(t, errors.Is(err, io.EOF))
}
