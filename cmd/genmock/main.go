// Command genmock reads a groundwater CSV upload and generates JSON fixtures:
// the raw rows as published to the source topic, and the assembled site tests
// the pipeline derives from them. It uses the domain package with a fixed
// clock and sequential test IDs so the output is reproducible.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -csv data/mock/groundwater_sample.csv \
//	  -rows-out data/mock/groundwater_rows.json \
//	  -tests-out data/mock/groundwater_tests.json
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/groundwater-etl/internal/adapter/csvrows"
	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

var recordedAt = time.Date(2025, time.September, 2, 6, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvPath := flag.String("csv", "", "CSV upload to read")
	rowsOut := flag.String("rows-out", "", "output path for the raw row JSON fixture")
	testsOut := flag.String("tests-out", "", "output path for the assembled test JSON fixture")
	flag.Parse()

	if *csvPath == "" || *rowsOut == "" || *testsOut == "" {
		flag.Usage()
		return errors.New("missing required flags: -csv, -rows-out, -tests-out")
	}

	// Fixed clock and IDs for reproducible RecordedAt timestamps and test IDs.
	domain.SetClock(clockwork.NewFakeClockAt(recordedAt))
	defer domain.SetClock(nil)
	domain.SetIDGenerator(sequentialIDs("test"))
	defer domain.SetIDGenerator(nil)

	rows, err := readRows(*csvPath)
	if err != nil {
		return err
	}
	log.Printf("%s: %d rows", *csvPath, len(rows))

	tests, rejected := assemble(rows)
	for _, r := range rejected {
		log.Printf("row %d rejected: %v", r.row, r.err)
	}

	if err := writeJSON(*rowsOut, rows); err != nil {
		return fmt.Errorf("writing row fixture: %w", err)
	}
	log.Printf("wrote row fixture: %s", *rowsOut)

	if err := writeJSON(*testsOut, tests); err != nil {
		return fmt.Errorf("writing test fixture: %w", err)
	}
	log.Printf("wrote test fixture: %s", *testsOut)

	printStats(tests, len(rejected))
	return nil
}

func readRows(path string) ([]domain.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	rows, err := csvrows.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("no data rows")
	}
	return rows, nil
}

// fixtureTest is one assembled row in the test fixture.
type fixtureTest struct {
	Row  int               `json:"row"`
	Site domain.SiteSeed   `json:"site"`
	Test domain.TestRecord `json:"test"`
	Risk domain.RiskLevel  `json:"riskLevel"`
}

type rejection struct {
	row int
	err error
}

func assemble(rows []domain.RawRow) ([]fixtureTest, []rejection) {
	tests := make([]fixtureTest, 0, len(rows))
	var rejected []rejection
	for i, row := range rows {
		st, err := domain.BuildSiteTest(domain.ParseRow(row))
		if err != nil {
			rejected = append(rejected, rejection{row: i + 1, err: err})
			continue
		}
		tests = append(tests, fixtureTest{
			Row:  i + 1,
			Site: st.Seed,
			Test: st.Test,
			Risk: domain.ClassifyRisk(st.Test.HPI),
		})
	}
	return tests, rejected
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%03d", prefix, n)
	}
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// statsResult holds aggregated counts for printStats reporting.
type statsResult struct {
	riskCounts  map[domain.RiskLevel]int
	stateCounts map[string]int
	sites       map[string]int
	undated     int
	maxHPI      domain.Index
	maxHPISite  string
}

func collectStats(tests []fixtureTest) statsResult {
	s := statsResult{
		riskCounts:  map[domain.RiskLevel]int{},
		stateCounts: map[string]int{},
		sites:       map[string]int{},
		maxHPI:      domain.Unavailable,
	}
	for i := range tests {
		ft := &tests[i]
		s.riskCounts[ft.Risk]++
		s.sites[ft.Site.SiteCode]++
		if s.sites[ft.Site.SiteCode] == 1 {
			s.stateCounts[ft.Site.State]++
		}
		if ft.Test.Date == nil {
			s.undated++
		}
		if ft.Test.HPI.Valid && (!s.maxHPI.Valid || ft.Test.HPI.Value > s.maxHPI.Value) {
			s.maxHPI = ft.Test.HPI
			s.maxHPISite = ft.Site.SiteCode
		}
	}
	return s
}

type stateCount struct {
	state string
	count int
}

func printStats(tests []fixtureTest, rejected int) {
	stats := collectStats(tests)

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Tests: %d, rejected rows: %d, sites: %d, undated: %d\n",
		len(tests), rejected, len(stats.sites), stats.undated)
	fmt.Printf("By risk: Low=%d, Medium=%d, High=%d, Unknown=%d\n",
		stats.riskCounts[domain.RiskLow], stats.riskCounts[domain.RiskMedium],
		stats.riskCounts[domain.RiskHigh], stats.riskCounts[domain.RiskUnknown])
	fmt.Printf("Max HPI: %s (%s)\n", stats.maxHPI, stats.maxHPISite)

	sc := make([]stateCount, 0, len(stats.stateCounts))
	for s, c := range stats.stateCounts {
		sc = append(sc, stateCount{s, c})
	}
	sort.Slice(sc, func(i, j int) bool {
		if sc[i].count != sc[j].count {
			return sc[i].count > sc[j].count
		}
		return sc[i].state < sc[j].state
	})
	fmt.Printf("Sites by state (%d): ", len(sc))
	for _, s := range sc {
		fmt.Printf("%s=%d ", s.state, s.count)
	}
	fmt.Println()

	if len(tests) > 0 {
		first := tests[0]
		fmt.Printf("\nFirst test:\n")
		fmt.Printf("  ID: %s, site: %s\n", first.Test.ID, first.Site.SiteCode)
		fmt.Printf("  HPI: %s, HEI: %s, risk: %s\n", first.Test.HPI, first.Test.HEI, first.Risk)
		for _, m := range first.Test.Metals {
			fmt.Printf("  %s: CF=%s Igeo=%s EF=%s ERI=%s\n", m.Metal, m.CF, m.Igeo, m.EF, m.ERI)
		}
	}
}
