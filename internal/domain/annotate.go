package domain

import (
	"context"
	"log/slog"
	"time"
)

// AnnotateTest asks the annotator for a narrative of test, bounded by
// timeout. Annotator failures degrade to FallbackNarrative; the returned
// narrative can always be stored.
func AnnotateTest(ctx context.Context, site SiteSummary, test TestRecord, annotator Annotator, timeout time.Duration, logger *slog.Logger) Narrative {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	n, err := annotator.Annotate(ctx, site, test)
	if err != nil {
		logger.Warn("narrative annotation failed",
			"site_code", site.SiteCode,
			"test_id", test.ID,
			"error", err,
		)
		n = FallbackNarrative()
	}
	if n.Source == "" {
		n.Source = SourceAnnotator
	}
	if n.GeneratedAt.IsZero() {
		n.GeneratedAt = clock.Now().UTC()
	}
	return n
}
