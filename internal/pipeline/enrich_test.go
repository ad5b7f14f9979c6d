package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/groundwater-etl/internal/adapter/memory"
	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/couchcryptid/groundwater-etl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnnotator struct {
	result domain.Narrative
	err    error
	tests  []string
}

func (s *stubAnnotator) Annotate(_ context.Context, _ domain.SiteSummary, test domain.TestRecord) (domain.Narrative, error) {
	s.tests = append(s.tests, test.ID)
	return s.result, s.err
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore(nil)
	seed := domain.SiteSeed{SiteCode: "PN-001", State: "Maharashtra"}
	_, err := store.AppendTest(context.Background(), seed, domain.TestRecord{ID: "t-1"})
	require.NoError(t, err)
	_, err = store.AppendTest(context.Background(), seed, domain.TestRecord{ID: "t-2"})
	require.NoError(t, err)
	return store
}

func TestEnricher_EnrichLatest(t *testing.T) {
	store := seededStore(t)
	ann := &stubAnnotator{result: domain.Narrative{SiteInterpretation: "Lead exceeds the limit."}}
	e := pipeline.NewEnricher(store, store, ann, time.Second, discardLogger())

	out, err := e.EnrichLatest(context.Background(), "PN-001")
	require.NoError(t, err)

	assert.Equal(t, []string{"t-2"}, ann.tests, "latest upload is annotated")
	assert.Equal(t, "t-2", out.Test.ID)
	assert.Equal(t, "Lead exceeds the limit.", out.Narrative.SiteInterpretation)
	assert.Equal(t, "annotator", out.Narrative.Source)

	stored, ok, err := store.GetNarrative(context.Background(), "t-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, out.Narrative, stored)
}

func TestEnricher_CachedNarrativeKeepsSource(t *testing.T) {
	store := seededStore(t)
	ann := &stubAnnotator{result: domain.Narrative{Source: domain.SourceAnnotator, Cached: true}}
	e := pipeline.NewEnricher(store, store, ann, time.Second, discardLogger())

	_, err := e.EnrichLatest(context.Background(), "PN-001")
	require.NoError(t, err)

	stored, ok, err := store.GetNarrative(context.Background(), "t-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.SourceAnnotator, stored.Source)
	assert.True(t, stored.Cached)
}

func TestEnricher_AnnotatorFailureStoresFallback(t *testing.T) {
	store := seededStore(t)
	e := pipeline.NewEnricher(store, store, &stubAnnotator{err: errors.New("quota exceeded")}, time.Second, discardLogger())

	out, err := e.EnrichLatest(context.Background(), "PN-001")
	require.NoError(t, err)
	assert.Equal(t, "fallback", out.Narrative.Source)

	stored, ok, err := store.GetNarrative(context.Background(), "t-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.FallbackNarrative().SiteInterpretation, stored.SiteInterpretation)
}

func TestEnricher_Errors(t *testing.T) {
	store := seededStore(t)
	_, err := store.AppendTest(context.Background(), domain.SiteSeed{SiteCode: "EMPTY"}, domain.TestRecord{ID: "x"})
	require.NoError(t, err)

	t.Run("unknown site", func(t *testing.T) {
		e := pipeline.NewEnricher(store, store, &stubAnnotator{}, time.Second, discardLogger())
		_, err := e.EnrichLatest(context.Background(), "NOPE")
		require.ErrorIs(t, err, domain.ErrSiteNotFound)
	})

	t.Run("disabled", func(t *testing.T) {
		e := pipeline.NewEnricher(store, store, nil, time.Second, discardLogger())
		assert.False(t, e.Enabled())
		_, err := e.EnrichLatest(context.Background(), "PN-001")
		require.ErrorIs(t, err, domain.ErrAnnotatorDisabled)
	})

	t.Run("not found before disabled", func(t *testing.T) {
		e := pipeline.NewEnricher(store, store, nil, time.Second, discardLogger())
		_, err := e.EnrichLatest(context.Background(), "NOPE")
		require.ErrorIs(t, err, domain.ErrSiteNotFound)
	})
}

type emptySiteReader struct{}

func (emptySiteReader) GetSite(context.Context, string) (domain.Site, error) {
	return domain.Site{SiteCode: "PN-001", Tests: []domain.TestRecord{}}, nil
}

func TestEnricher_NoTests(t *testing.T) {
	e := pipeline.NewEnricher(emptySiteReader{}, memory.NewStore(nil), nil, time.Second, discardLogger())

	_, err := e.EnrichLatest(context.Background(), "PN-001")
	require.ErrorIs(t, err, domain.ErrNoTests)
}
