// Command validate checks the fixtures written by genmock against their CSV
// upload: row parity, reproducibility of every assembled test, and the index
// invariants of each test.
//
// The JSON fixtures are generated, not checked in. Run genmock first:
//
//	go run ./cmd/genmock \
//	  -csv data/mock/groundwater_sample.csv \
//	  -rows-out data/mock/groundwater_rows.json \
//	  -tests-out data/mock/groundwater_tests.json
//
// Usage:
//
//	go run ./cmd/validate \
//	  -csv data/mock/groundwater_sample.csv \
//	  -rows-json data/mock/groundwater_rows.json \
//	  -tests-json data/mock/groundwater_tests.json
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"slices"
	"time"

	"github.com/couchcryptid/groundwater-etl/internal/adapter/csvrows"
	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
)

// recordedAt matches genmock so assembled tests reproduce exactly.
var recordedAt = time.Date(2025, time.September, 2, 6, 0, 0, 0, time.UTC)

// fixtureTest mirrors genmock's test fixture entry.
type fixtureTest struct {
	Row  int               `json:"row"`
	Site domain.SiteSeed   `json:"site"`
	Test domain.TestRecord `json:"test"`
	Risk domain.RiskLevel  `json:"riskLevel"`
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvPath := flag.String("csv", "", "CSV upload the fixtures were generated from")
	rowsJSON := flag.String("rows-json", "", "path to the raw row JSON fixture")
	testsJSON := flag.String("tests-json", "", "path to the assembled test JSON fixture")
	flag.Parse()

	if *csvPath == "" || *rowsJSON == "" || *testsJSON == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(os.Stdout, *csvPath, *rowsJSON, *testsJSON); code != 0 {
		os.Exit(code)
	}
}

func run(out io.Writer, csvPath, rowsPath, testsPath string) int {
	fmt.Fprintln(out, "=== Groundwater Fixture Validation ===")

	source, err := loadCSV(csvPath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load CSV: %v\n", err)
		return 1
	}
	rows, err := loadJSON[domain.RawRow](rowsPath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load row JSON: %v\n", err)
		hintGenmock(out, err, csvPath)
		return 1
	}
	tests, err := loadJSON[fixtureTest](testsPath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load test JSON: %v\n", err)
		hintGenmock(out, err, csvPath)
		return 1
	}

	phases := []*phase{
		validateRowParity(source, rows),
		validateReproducible(rows, tests),
		validateIndexInvariants(tests),
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-36s %s\n", p.name, status)
	}
	fmt.Fprintf(out, "\nRecords: %d CSV rows, %d JSON rows, %d tests\n", len(source), len(rows), len(tests))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func hintGenmock(out io.Writer, err error, csvPath string) {
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(out, "hint: generate the fixtures with go run ./cmd/genmock -csv %s -rows-out <rows.json> -tests-out <tests.json>\n", csvPath)
	}
}

func loadCSV(path string) ([]domain.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csvrows.ReadAll(f)
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

// validateRowParity checks that the row fixture is the CSV, cell for cell.
func validateRowParity(source, rows []domain.RawRow) *phase {
	p := &phase{name: "Row fixture matches CSV"}
	if len(source) != len(rows) {
		p.errorf("row count: CSV has %d, fixture has %d", len(source), len(rows))
	}
	for i := range min(len(source), len(rows)) {
		if diff := cmp.Diff(source[i], rows[i]); diff != "" {
			p.errorf("row %d (-csv +fixture):\n%s", i+1, diff)
		}
	}
	return p
}

// validateReproducible reassembles every row with genmock's clock and IDs and
// compares the result with the test fixture.
func validateReproducible(rows []domain.RawRow, tests []fixtureTest) *phase {
	p := &phase{name: "Tests reproduce from rows"}

	domain.SetClock(clockwork.NewFakeClockAt(recordedAt))
	defer domain.SetClock(nil)
	n := 0
	domain.SetIDGenerator(func() string {
		n++
		return fmt.Sprintf("test-%03d", n)
	})
	defer domain.SetIDGenerator(nil)

	var want []fixtureTest
	for i, row := range rows {
		st, err := domain.BuildSiteTest(domain.ParseRow(row))
		if err != nil {
			continue
		}
		want = append(want, fixtureTest{Row: i + 1, Site: st.Seed, Test: st.Test, Risk: domain.ClassifyRisk(st.Test.HPI)})
	}

	if len(want) != len(tests) {
		p.errorf("test count: rows assemble into %d, fixture has %d", len(want), len(tests))
	}
	for i := range min(len(want), len(tests)) {
		if diff := cmp.Diff(want[i], tests[i], cmp.Comparer(timesEqual)); diff != "" {
			p.errorf("fixture test %d (row %d) (-want +got):\n%s", i+1, tests[i].Row, diff)
		}
	}
	return p
}

// validateIndexInvariants recomputes what each stored index must equal.
func validateIndexInvariants(tests []fixtureTest) *phase {
	p := &phase{name: "Index invariants"}
	order := domain.KnownMetals()

	for _, ft := range tests {
		id := ft.Test.ID
		if ft.Risk != domain.ClassifyRisk(ft.Test.HPI) {
			p.errorf("%s: risk %s does not match HPI %s", id, ft.Risk, ft.Test.HPI)
		}

		last := -1
		var heiSum float64
		for _, m := range ft.Test.Metals {
			pos := slices.Index(order, m.Metal)
			if pos < 0 {
				p.errorf("%s: unknown metal %q", id, m.Metal)
				continue
			}
			if pos <= last {
				p.errorf("%s: metal %s out of parse order", id, m.Metal)
			}
			last = pos

			c, _ := domain.LookupConstant(m.Metal)
			if c.StandardLimit == 0 {
				continue
			}
			heiSum += m.Concentration / c.StandardLimit
			if want := domain.Round3(m.Concentration / c.StandardLimit); !m.CF.Valid || m.CF.Value != want {
				p.errorf("%s: %s CF is %s, want %g", id, m.Metal, m.CF, want)
			}
		}

		if want := domain.Round3(heiSum); !ft.Test.HEI.Valid || math.Abs(ft.Test.HEI.Value-want) > 1e-9 {
			p.errorf("%s: HEI is %s, want %g", id, ft.Test.HEI, want)
		}
	}
	return p
}

func timesEqual(a, b time.Time) bool { return a.Equal(b) }
