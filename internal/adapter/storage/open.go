// Package storage selects the site repository backend from configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/couchcryptid/groundwater-etl/internal/adapter/memory"
	"github.com/couchcryptid/groundwater-etl/internal/adapter/postgres"
	"github.com/couchcryptid/groundwater-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/groundwater-etl/internal/config"
	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Backend is a site repository that also stores narratives.
type Backend interface {
	domain.SiteRepository
	domain.EnrichmentStore
	CheckReadiness(ctx context.Context) error
}

// Open returns the backend named by cfg.StoreDriver and a function that
// releases it.
func Open(ctx context.Context, cfg *config.Config, clock clockwork.Clock) (Backend, func() error, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory, "":
		return memory.NewStore(clock), func() error { return nil }, nil
	case config.StoreSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath, clock)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.StorePostgres:
		s, err := postgres.Open(ctx, cfg.PostgresDSN, clock)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { s.Close(); return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
