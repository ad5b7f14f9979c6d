package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/couchcryptid/groundwater-etl/internal/observability"
)

// recorder appends assembled tests and keeps the domain metrics.
type recorder struct {
	repo    Appender
	metrics *observability.Metrics
}

func (r *recorder) record(ctx context.Context, st domain.SiteTest) (domain.RecordedTest, error) {
	created, err := r.repo.AppendTest(ctx, st.Seed, st.Test)
	if err != nil {
		r.metrics.StoreErrors.Inc()
		return domain.RecordedTest{}, fmt.Errorf("append test to site %s: %w", st.Seed.SiteCode, err)
	}

	ev := domain.NewRecordedTest(st, created)
	r.metrics.TestsRecorded.Inc()
	if created {
		r.metrics.SitesCreated.Inc()
	}
	if st.Test.HPI.Valid {
		r.metrics.HPI.Observe(st.Test.HPI.Value)
	}
	r.metrics.RiskLevels.WithLabelValues(string(ev.RiskLevel)).Inc()
	return ev, nil
}
