package domain

import "context"

// SiteRepository stores sites and their append-only test histories.
type SiteRepository interface {
	// AppendTest finds the site for seed.SiteCode, creating it from the seed
	// when absent, and appends test to its history. Existing sites keep
	// their metadata. Reports whether the site was created.
	AppendTest(ctx context.Context, seed SiteSeed, test TestRecord) (created bool, err error)

	// GetSite returns the site with the given code, or ErrSiteNotFound.
	GetSite(ctx context.Context, siteCode string) (Site, error)

	// ListSites returns every site in creation order.
	ListSites(ctx context.Context) ([]Site, error)

	// ListSitesByState returns the sites whose State matches exactly.
	ListSitesByState(ctx context.Context, state string) ([]Site, error)
}

// EnrichmentStore keeps narratives apart from the immutable test records,
// keyed by test ID. Putting a narrative twice replaces the first.
type EnrichmentStore interface {
	PutNarrative(ctx context.Context, testID string, n Narrative) error
	GetNarrative(ctx context.Context, testID string) (Narrative, bool, error)
}
