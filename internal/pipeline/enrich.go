package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/groundwater-etl/internal/domain"
)

// SiteReader is the read side of domain.SiteRepository.
type SiteReader interface {
	GetSite(ctx context.Context, siteCode string) (domain.Site, error)
}

// Enrichment is the outcome of annotating a site's latest test.
type Enrichment struct {
	Site      domain.Site       `json:"site"`
	Test      domain.TestRecord `json:"latestTest"`
	Narrative domain.Narrative  `json:"narrative"`
}

// Enricher attaches narratives to stored tests.
type Enricher struct {
	sites     SiteReader
	store     domain.EnrichmentStore
	annotator domain.Annotator
	timeout   time.Duration
	logger    *slog.Logger
}

// NewEnricher creates an Enricher. A nil annotator disables enrichment.
func NewEnricher(sites SiteReader, store domain.EnrichmentStore, annotator domain.Annotator, timeout time.Duration, logger *slog.Logger) *Enricher {
	return &Enricher{
		sites:     sites,
		store:     store,
		annotator: annotator,
		timeout:   timeout,
		logger:    logger,
	}
}

// Enabled reports whether an annotator is configured.
func (e *Enricher) Enabled() bool {
	return e.annotator != nil
}

// EnrichLatest annotates the site's most recently uploaded test and stores
// the narrative under the test ID. Annotator failures store the fallback
// narrative instead of failing. Returns domain.ErrSiteNotFound,
// domain.ErrNoTests or domain.ErrAnnotatorDisabled.
func (e *Enricher) EnrichLatest(ctx context.Context, siteCode string) (Enrichment, error) {
	site, err := e.sites.GetSite(ctx, siteCode)
	if err != nil {
		return Enrichment{}, err
	}
	test, ok := domain.LatestTest(site)
	if !ok {
		return Enrichment{}, domain.ErrNoTests
	}
	if e.annotator == nil {
		return Enrichment{}, domain.ErrAnnotatorDisabled
	}

	n := domain.AnnotateTest(ctx, domain.SummarizeSite(site), test, e.annotator, e.timeout, e.logger)
	if err := e.store.PutNarrative(ctx, test.ID, n); err != nil {
		return Enrichment{}, fmt.Errorf("store narrative for test %s: %w", test.ID, err)
	}

	e.logger.Info("narrative stored", "site_code", siteCode, "test_id", test.ID, "source", n.Source)
	return Enrichment{Site: site, Test: test, Narrative: n}, nil
}
