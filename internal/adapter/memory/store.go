// Package memory provides process-local implementations of the site
// repository and enrichment store.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Store keeps sites and narratives in memory. It implements
// domain.SiteRepository and domain.EnrichmentStore. All appends are
// serialized by a single mutex.
type Store struct {
	mu         sync.RWMutex
	clock      clockwork.Clock
	sites      map[string]*domain.Site
	order      []string
	narratives map[string]domain.Narrative
}

// NewStore creates an empty store. A nil clock uses real time.
func NewStore(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock:      clock,
		sites:      make(map[string]*domain.Site),
		narratives: make(map[string]domain.Narrative),
	}
}

// CheckReadiness always succeeds; the store lives in process.
func (s *Store) CheckReadiness(context.Context) error {
	return nil
}

func (s *Store) AppendTest(ctx context.Context, seed domain.SiteSeed, test domain.TestRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if seed.SiteCode == "" {
		return false, domain.ErrMissingSiteCode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	site, ok := s.sites[seed.SiteCode]
	if !ok {
		created := domain.NewSite(seed, s.clock.Now().UTC())
		site = &created
		s.sites[seed.SiteCode] = site
		s.order = append(s.order, seed.SiteCode)
	}
	site.Tests = append(site.Tests, cloneTest(test))
	return !ok, nil
}

func (s *Store) GetSite(ctx context.Context, siteCode string) (domain.Site, error) {
	if err := ctx.Err(); err != nil {
		return domain.Site{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	site, ok := s.sites[siteCode]
	if !ok {
		return domain.Site{}, domain.ErrSiteNotFound
	}
	return cloneSite(site), nil
}

func (s *Store) ListSites(ctx context.Context) ([]domain.Site, error) {
	return s.list(ctx, func(*domain.Site) bool { return true })
}

func (s *Store) ListSitesByState(ctx context.Context, state string) ([]domain.Site, error) {
	return s.list(ctx, func(site *domain.Site) bool { return site.State == state })
}

func (s *Store) list(ctx context.Context, keep func(*domain.Site) bool) ([]domain.Site, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Site, 0, len(s.order))
	for _, code := range s.order {
		site := s.sites[code]
		if keep(site) {
			out = append(out, cloneSite(site))
		}
	}
	return out, nil
}

func (s *Store) PutNarrative(ctx context.Context, testID string, n domain.Narrative) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.narratives[testID] = n
	return nil
}

func (s *Store) GetNarrative(ctx context.Context, testID string) (domain.Narrative, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Narrative{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.narratives[testID]
	return n, ok, nil
}

// cloneSite copies the history so callers cannot alias stored state.
func cloneSite(site *domain.Site) domain.Site {
	out := *site
	out.Tests = make([]domain.TestRecord, len(site.Tests))
	for i, t := range site.Tests {
		out.Tests[i] = cloneTest(t)
	}
	return out
}

func cloneTest(t domain.TestRecord) domain.TestRecord {
	t.Metals = slices.Clone(t.Metals)
	return t
}
