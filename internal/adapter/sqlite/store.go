// Package sqlite persists sites, tests and narratives in an embedded SQLite
// database through the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/jonboulle/clockwork"

	_ "modernc.org/sqlite" // register the "sqlite" database/sql driver
)

var (
	_ domain.SiteRepository  = (*Store)(nil)
	_ domain.EnrichmentStore = (*Store)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS sites (
	site_code  TEXT PRIMARY KEY,
	site_area  TEXT NOT NULL,
	state      TEXT NOT NULL,
	lat        REAL,
	lon        REAL,
	created_at TEXT NOT NULL,
	seq        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS sites_state_idx ON sites (state);

CREATE TABLE IF NOT EXISTS site_tests (
	id          TEXT PRIMARY KEY,
	site_code   TEXT NOT NULL REFERENCES sites (site_code),
	seq         INTEGER NOT NULL,
	sample_date TEXT,
	season      TEXT,
	metals      TEXT NOT NULL,
	hpi         REAL,
	hei         REAL,
	recorded_at TEXT NOT NULL,
	UNIQUE (site_code, seq)
);

CREATE TABLE IF NOT EXISTS test_narratives (
	test_id    TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Store implements domain.SiteRepository and domain.EnrichmentStore on SQLite.
type Store struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a private in-memory database. A nil clock uses
// real time.
func Open(ctx context.Context, path string, clock clockwork.Clock) (*Store, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection serializes appends and keeps ":memory:" databases
	// shared across queries.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &Store{db: db, clock: clock}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) AppendTest(ctx context.Context, seed domain.SiteSeed, test domain.TestRecord) (created bool, err error) {
	if seed.SiteCode == "" {
		return false, domain.ErrMissingSiteCode
	}

	metals, err := json.Marshal(test.Metals)
	if err != nil {
		return false, fmt.Errorf("encode metals: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO sites (site_code, site_area, state, lat, lon, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM sites))
		ON CONFLICT (site_code) DO NOTHING`,
		seed.SiteCode, seed.SiteArea, seed.State,
		nullFloat(seed.Location.Lat), nullFloat(seed.Location.Lon),
		formatTime(s.clock.Now()),
	)
	if err != nil {
		return false, fmt.Errorf("upsert site %s: %w", seed.SiteCode, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert site %s: %w", seed.SiteCode, err)
	}
	created = n == 1

	_, err = tx.ExecContext(ctx, `
		INSERT INTO site_tests (id, site_code, seq, sample_date, season, metals, hpi, hei, recorded_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM site_tests WHERE site_code = ?), ?, ?, ?, ?, ?, ?)`,
		test.ID, seed.SiteCode, seed.SiteCode,
		nullTime(test.Date), nullString(test.Season), string(metals),
		nullFloat(test.HPI.Ptr()), nullFloat(test.HEI.Ptr()),
		formatTime(test.RecordedAt),
	)
	if err != nil {
		return false, fmt.Errorf("append test to %s: %w", seed.SiteCode, err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

func (s *Store) GetSite(ctx context.Context, siteCode string) (domain.Site, error) {
	sites, err := s.query(ctx, "WHERE s.site_code = ?", siteCode)
	if err != nil {
		return domain.Site{}, err
	}
	if len(sites) == 0 {
		return domain.Site{}, domain.ErrSiteNotFound
	}
	return sites[0], nil
}

func (s *Store) ListSites(ctx context.Context) ([]domain.Site, error) {
	return s.query(ctx, "")
}

func (s *Store) ListSitesByState(ctx context.Context, state string) ([]domain.Site, error) {
	return s.query(ctx, "WHERE s.state = ?", state)
}

// query loads the matching sites in creation order with their tests in
// upload order.
func (s *Store) query(ctx context.Context, where string, args ...any) ([]domain.Site, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.site_code, s.site_area, s.state, s.lat, s.lon, s.created_at
		FROM sites s `+where+`
		ORDER BY s.seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}

	var sites []domain.Site
	index := make(map[string]int)
	for rows.Next() {
		var (
			site     domain.Site
			lat, lon sql.NullFloat64
			created  string
		)
		if err := rows.Scan(&site.SiteCode, &site.SiteArea, &site.State, &lat, &lon, &created); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan site: %w", err)
		}
		site.Location = domain.Location{Lat: floatPtr(lat), Lon: floatPtr(lon)}
		if site.CreatedAt, err = parseTime(created); err != nil {
			_ = rows.Close()
			return nil, err
		}
		site.Tests = []domain.TestRecord{}
		index[site.SiteCode] = len(sites)
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate sites: %w", err)
	}
	_ = rows.Close()

	if len(sites) == 0 {
		return []domain.Site{}, nil
	}

	tests, err := s.db.QueryContext(ctx, `
		SELECT t.site_code, t.id, t.sample_date, t.season, t.metals, t.hpi, t.hei, t.recorded_at
		FROM site_tests t JOIN sites s ON s.site_code = t.site_code `+where+`
		ORDER BY s.seq, t.seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("query tests: %w", err)
	}
	defer tests.Close()

	for tests.Next() {
		code, test, err := scanTest(tests)
		if err != nil {
			return nil, err
		}
		i := index[code]
		sites[i].Tests = append(sites[i].Tests, test)
	}
	if err := tests.Err(); err != nil {
		return nil, fmt.Errorf("iterate tests: %w", err)
	}
	return sites, nil
}

func scanTest(rows *sql.Rows) (string, domain.TestRecord, error) {
	var (
		code     string
		test     domain.TestRecord
		date     sql.NullString
		season   sql.NullString
		metals   string
		hpi, hei sql.NullFloat64
		recorded string
	)
	if err := rows.Scan(&code, &test.ID, &date, &season, &metals, &hpi, &hei, &recorded); err != nil {
		return "", test, fmt.Errorf("scan test: %w", err)
	}
	if date.Valid {
		d, err := parseTime(date.String)
		if err != nil {
			return "", test, err
		}
		test.Date = &d
	}
	if season.Valid {
		v := season.String
		test.Season = &v
	}
	if err := json.Unmarshal([]byte(metals), &test.Metals); err != nil {
		return "", test, fmt.Errorf("decode metals of test %s: %w", test.ID, err)
	}
	test.HPI = domain.IndexFromPtr(floatPtr(hpi))
	test.HEI = domain.IndexFromPtr(floatPtr(hei))
	var err error
	if test.RecordedAt, err = parseTime(recorded); err != nil {
		return "", test, err
	}
	return code, test, nil
}

func (s *Store) PutNarrative(ctx context.Context, testID string, n domain.Narrative) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode narrative: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO test_narratives (test_id, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (test_id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		testID, string(body), formatTime(s.clock.Now()),
	)
	if err != nil {
		return fmt.Errorf("put narrative %s: %w", testID, err)
	}
	return nil
}

func (s *Store) GetNarrative(ctx context.Context, testID string) (domain.Narrative, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx, "SELECT body FROM test_narratives WHERE test_id = ?", testID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Narrative{}, false, nil
	}
	if err != nil {
		return domain.Narrative{}, false, fmt.Errorf("get narrative %s: %w", testID, err)
	}
	var n domain.Narrative
	if err := json.Unmarshal([]byte(body), &n); err != nil {
		return domain.Narrative{}, false, fmt.Errorf("decode narrative %s: %w", testID, err)
	}
	return n, true, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
