package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleCSV = filepath.Join("..", "..", "data", "mock", "groundwater_sample.csv")

func writeFixture(t *testing.T, name string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestValidateRowParity(t *testing.T) {
	source, err := loadCSV(sampleCSV)
	require.NoError(t, err)

	assert.True(t, validateRowParity(source, source).passed())

	edited := append([]domain.RawRow{}, source...)
	edited[0] = domain.RawRow{"siteCode": "PN-999"}
	p := validateRowParity(source, edited[:len(edited)-1])
	assert.False(t, p.passed())
	assert.Len(t, p.errors, 2, "count mismatch and first-row diff")
}

func TestValidateIndexInvariants(t *testing.T) {
	good := fixtureTest{
		Test: domain.TestRecord{
			ID: "t-1",
			Metals: []domain.MetalMeasurement{
				domain.CalculateMetal("Pb", 12),
				domain.CalculateMetal("Cd", 5),
			},
			HPI: domain.IndexOf(16),
			HEI: domain.IndexOf(1.3),
		},
		Risk: domain.RiskLow,
	}
	assert.True(t, validateIndexInvariants([]fixtureTest{good}).passed())

	bad := good
	bad.Risk = domain.RiskHigh
	bad.Test.HEI = domain.IndexOf(2)
	bad.Test.Metals = []domain.MetalMeasurement{good.Test.Metals[1], good.Test.Metals[0]}
	p := validateIndexInvariants([]fixtureTest{bad})
	assert.Len(t, p.errors, 3, "risk, order and HEI")
}

func TestRun_FailsOnTamperedFixture(t *testing.T) {
	source, err := loadCSV(sampleCSV)
	require.NoError(t, err)
	rowsPath := writeFixture(t, "rows.json", source)
	testsPath := writeFixture(t, "tests.json", []fixtureTest{{Row: 1, Test: domain.TestRecord{ID: "bogus"}}})

	var out bytes.Buffer
	code := run(&out, sampleCSV, rowsPath, testsPath)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "Row fixture matches CSV")
	assert.Contains(t, out.String(), "Validation FAILED.")
}

func TestRun_MissingInput(t *testing.T) {
	var out bytes.Buffer
	code := run(&out, filepath.Join(t.TempDir(), "nope.csv"), "", "")

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "FATAL")
}

func TestRun_MissingFixturePointsAtGenmock(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	code := run(&out, sampleCSV, filepath.Join(dir, "rows.json"), filepath.Join(dir, "tests.json"))

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "FATAL: load row JSON")
	assert.Contains(t, out.String(), "go run ./cmd/genmock")
}
