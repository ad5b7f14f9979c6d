package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/couchcryptid/groundwater-etl/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer converts a raw event into a test ready to append to its site.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.SiteTest, error)
}

// Appender is the write side of domain.SiteRepository.
type Appender interface {
	AppendTest(ctx context.Context, seed domain.SiteSeed, test domain.TestRecord) (bool, error)
}

// Publisher announces recorded tests downstream.
type Publisher interface {
	PublishBatch(ctx context.Context, events []domain.RecordedTest) error
}

// Pipeline orchestrates the extract-transform-load loop. Rows within a batch
// are appended one at a time, in source order.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	recorder    *recorder
	publisher   Publisher
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability. A nil
// publisher skips the sink.
func New(e BatchExtractor, t Transformer, repo Appender, pub Publisher, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		recorder:    &recorder{repo: repo, metrics: metrics},
		publisher:   pub,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil if the pipeline has loaded at least one row,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any messages yet")
	}
	return nil
}

// Ready reports whether at least one row has been loaded.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// Run executes the batch ETL loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-transform-load cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.RowsConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))

	loaded, storeFailed, ok := p.transformAndLoad(ctx, rawBatch)
	if !ok {
		return false
	}

	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	if storeFailed {
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}
	*backoff = 200 * time.Millisecond
	return true
}

// transformAndLoad appends each row of the batch to its site in order,
// publishes the recorded tests and commits offsets. It returns the number of
// appended rows, whether any append failed, and false if the pipeline should
// stop. Rows appended before a cancellation are still published and
// committed so a redelivery cannot append them twice.
func (p *Pipeline) transformAndLoad(ctx context.Context, rawBatch []domain.RawEvent) (loaded int, storeFailed, ok bool) {
	recorded := make([]domain.RecordedTest, 0, len(rawBatch))
	handled := make([]domain.RawEvent, 0, len(rawBatch))

	flush := func() {
		flushCtx := context.WithoutCancel(ctx)
		p.publish(flushCtx, recorded)
		for _, raw := range handled {
			p.commitOffset(flushCtx, raw)
		}
	}

	for _, raw := range rawBatch {
		if ctx.Err() != nil {
			// Unhandled rows are redelivered to the next group member.
			flush()
			return loaded, storeFailed, false
		}

		st, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.logger.Warn("transform failed, skipping row",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			handled = append(handled, raw)
			continue
		}

		ev, err := p.recorder.record(ctx, st)
		if err != nil {
			if ctx.Err() != nil {
				flush()
				return loaded, storeFailed, false
			}
			p.logger.Error("append test failed, skipping row",
				"error", err,
				"site_code", st.Seed.SiteCode,
				"test_id", st.Test.ID,
				"offset", raw.Offset,
			)
			storeFailed = true
			handled = append(handled, raw)
			continue
		}

		p.logger.Debug("test recorded",
			"site_code", ev.SiteCode,
			"test_id", ev.Test.ID,
			"site_created", ev.SiteCreated,
			"risk_level", ev.RiskLevel,
		)
		recorded = append(recorded, ev)
		handled = append(handled, raw)
		loaded++
	}

	flush()
	return loaded, storeFailed, true
}

func (p *Pipeline) publish(ctx context.Context, events []domain.RecordedTest) {
	if p.publisher == nil || len(events) == 0 {
		return
	}
	if err := p.publisher.PublishBatch(ctx, events); err != nil {
		p.logger.Error("publish recorded tests failed", "error", err, "batch_size", len(events))
		p.metrics.PublishErrors.Inc()
		return
	}
	p.metrics.EventsPublished.Add(float64(len(events)))
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
