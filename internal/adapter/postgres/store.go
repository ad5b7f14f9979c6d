// Package postgres persists sites, tests and narratives in PostgreSQL using
// a pgx connection pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
)

var (
	_ domain.SiteRepository  = (*Store)(nil)
	_ domain.EnrichmentStore = (*Store)(nil)
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sites (
		site_code  TEXT PRIMARY KEY,
		site_area  TEXT NOT NULL,
		state      TEXT NOT NULL,
		lat        DOUBLE PRECISION,
		lon        DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL,
		seq        BIGSERIAL
	)`,
	`CREATE INDEX IF NOT EXISTS sites_state_idx ON sites (state)`,
	`CREATE TABLE IF NOT EXISTS site_tests (
		id          TEXT PRIMARY KEY,
		site_code   TEXT NOT NULL REFERENCES sites (site_code),
		seq         INTEGER NOT NULL,
		sample_date TIMESTAMPTZ,
		season      TEXT,
		metals      JSONB NOT NULL,
		hpi         DOUBLE PRECISION,
		hei         DOUBLE PRECISION,
		recorded_at TIMESTAMPTZ NOT NULL,
		UNIQUE (site_code, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS test_narratives (
		test_id    TEXT PRIMARY KEY,
		body       JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// Store implements domain.SiteRepository and domain.EnrichmentStore on PostgreSQL.
type Store struct {
	pool  *pgxpool.Pool
	clock clockwork.Clock
}

// Open connects to dsn, verifies the connection and applies the schema.
// A nil clock uses real time.
func Open(ctx context.Context, dsn string, clock clockwork.Clock) (*Store, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply postgres schema: %w", err)
		}
	}
	return &Store{pool: pool, clock: clock}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// AppendTest upserts the site and appends the test in one transaction. The
// site row is locked so concurrent appends to the same site serialize.
func (s *Store) AppendTest(ctx context.Context, seed domain.SiteSeed, test domain.TestRecord) (created bool, err error) {
	if seed.SiteCode == "" {
		return false, domain.ErrMissingSiteCode
	}

	metals, err := json.Marshal(test.Metals)
	if err != nil {
		return false, fmt.Errorf("encode metals: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `
		INSERT INTO sites (site_code, site_area, state, lat, lon, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (site_code) DO NOTHING`,
		seed.SiteCode, seed.SiteArea, seed.State,
		seed.Location.Lat, seed.Location.Lon, s.clock.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("upsert site %s: %w", seed.SiteCode, err)
	}
	created = tag.RowsAffected() == 1

	if _, err = tx.Exec(ctx, `SELECT 1 FROM sites WHERE site_code = $1 FOR UPDATE`, seed.SiteCode); err != nil {
		return false, fmt.Errorf("lock site %s: %w", seed.SiteCode, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO site_tests (id, site_code, seq, sample_date, season, metals, hpi, hei, recorded_at)
		VALUES ($1, $2, (SELECT COALESCE(MAX(seq), 0) + 1 FROM site_tests WHERE site_code = $2), $3, $4, $5, $6, $7, $8)`,
		test.ID, seed.SiteCode, test.Date, test.Season, metals,
		test.HPI.Ptr(), test.HEI.Ptr(), test.RecordedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("append test to %s: %w", seed.SiteCode, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

func (s *Store) GetSite(ctx context.Context, siteCode string) (domain.Site, error) {
	sites, err := s.query(ctx, "WHERE s.site_code = $1", siteCode)
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
	return s.query(ctx, "WHERE s.state = $1", state)
}

func (s *Store) query(ctx context.Context, where string, args ...any) ([]domain.Site, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.site_code, s.site_area, s.state, s.lat, s.lon, s.created_at
		FROM sites s `+where+`
		ORDER BY s.seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	sites, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Site, error) {
		var site domain.Site
		err := row.Scan(&site.SiteCode, &site.SiteArea, &site.State,
			&site.Location.Lat, &site.Location.Lon, &site.CreatedAt)
		site.CreatedAt = site.CreatedAt.UTC()
		site.Tests = []domain.TestRecord{}
		return site, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan sites: %w", err)
	}
	if len(sites) == 0 {
		return []domain.Site{}, nil
	}

	index := make(map[string]int, len(sites))
	for i, site := range sites {
		index[site.SiteCode] = i
	}

	rows, err = s.pool.Query(ctx, `
		SELECT t.site_code, t.id, t.sample_date, t.season, t.metals, t.hpi, t.hei, t.recorded_at
		FROM site_tests t JOIN sites s ON s.site_code = t.site_code `+where+`
		ORDER BY s.seq, t.seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("query tests: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			code     string
			test     domain.TestRecord
			metals   []byte
			hpi, hei *float64
		)
		if err := rows.Scan(&code, &test.ID, &test.Date, &test.Season, &metals, &hpi, &hei, &test.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan test: %w", err)
		}
		if err := json.Unmarshal(metals, &test.Metals); err != nil {
			return nil, fmt.Errorf("decode metals of test %s: %w", test.ID, err)
		}
		if test.Date != nil {
			d := test.Date.UTC()
			test.Date = &d
		}
		test.HPI = domain.IndexFromPtr(hpi)
		test.HEI = domain.IndexFromPtr(hei)
		test.RecordedAt = test.RecordedAt.UTC()

		i := index[code]
		sites[i].Tests = append(sites[i].Tests, test)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tests: %w", err)
	}
	return sites, nil
}

func (s *Store) PutNarrative(ctx context.Context, testID string, n domain.Narrative) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode narrative: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO test_narratives (test_id, body, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (test_id) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		testID, body, s.clock.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("put narrative %s: %w", testID, err)
	}
	return nil
}

func (s *Store) GetNarrative(ctx context.Context, testID string) (domain.Narrative, bool, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, "SELECT body FROM test_narratives WHERE test_id = $1", testID).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Narrative{}, false, nil
	}
	if err != nil {
		return domain.Narrative{}, false, fmt.Errorf("get narrative %s: %w", testID, err)
	}
	var n domain.Narrative
	if err := json.Unmarshal(body, &n); err != nil {
		return domain.Narrative{}, false, fmt.Errorf("decode narrative %s: %w", testID, err)
	}
	return n, true, nil
}
