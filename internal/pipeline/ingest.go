package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/couchcryptid/groundwater-etl/internal/observability"
)

// IngestResult reports what happened to one uploaded row.
type IngestResult struct {
	Row         int              `json:"row"` // 1-based data row number
	SiteCode    string           `json:"siteCode"`
	SiteCreated bool             `json:"siteCreated"`
	TestID      string           `json:"testId,omitempty"`
	HPI         domain.Index     `json:"HPI"`
	HEI         domain.Index     `json:"HEI"`
	RiskLevel   domain.RiskLevel `json:"riskLevel,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// Ingester runs the transform and load stages synchronously over an
// in-memory upload, bypassing Kafka.
type Ingester struct {
	recorder  *recorder
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewIngester creates an Ingester. A nil publisher skips the sink.
func NewIngester(repo Appender, pub Publisher, logger *slog.Logger, metrics *observability.Metrics) *Ingester {
	return &Ingester{
		recorder:  &recorder{repo: repo, metrics: metrics},
		publisher: pub,
		logger:    logger,
		metrics:   metrics,
	}
}

// IngestRows appends every row to its site in order. A failing row is
// reported in its result and does not stop the rest. The returned error is
// only set when ctx is cancelled; results then cover the rows handled so far.
func (in *Ingester) IngestRows(ctx context.Context, rows []domain.RawRow) ([]IngestResult, error) {
	results := make([]IngestResult, 0, len(rows))
	recorded := make([]domain.RecordedTest, 0, len(rows))

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		in.metrics.RowsConsumed.Inc()

		res := IngestResult{Row: i + 1}
		st, err := domain.BuildSiteTest(domain.ParseRow(row))
		if err != nil {
			in.metrics.TransformErrors.Inc()
			in.logger.Warn("row rejected", "row", res.Row, "error", err)
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		res.SiteCode = st.Seed.SiteCode
		res.TestID = st.Test.ID
		res.HPI = st.Test.HPI
		res.HEI = st.Test.HEI

		ev, err := in.recorder.record(ctx, st)
		if err != nil {
			in.logger.Error("append test failed", "row", res.Row, "site_code", res.SiteCode, "error", err)
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		res.SiteCreated = ev.SiteCreated
		res.RiskLevel = ev.RiskLevel
		results = append(results, res)
		recorded = append(recorded, ev)
	}

	if in.publisher != nil && len(recorded) > 0 {
		if err := in.publisher.PublishBatch(ctx, recorded); err != nil {
			in.logger.Error("publish recorded tests failed", "error", err, "batch_size", len(recorded))
			in.metrics.PublishErrors.Inc()
		} else {
			in.metrics.EventsPublished.Add(float64(len(recorded)))
		}
	}
	return results, nil
}
