package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAnnotatorDisabled is returned when enrichment is requested but no annotator is configured.
	ErrAnnotatorDisabled = errors.New("narrative annotator is disabled")

	// ErrNoTests is returned when enrichment is requested for a site without tests.
	ErrNoTests = errors.New("no tests available for this site")
)

// Narrative sources.
const (
	SourceAnnotator = "annotator" // both prompts answered
	SourcePartial   = "partial"   // one prompt answered, the other half is fallback text
	SourceFallback  = "fallback"
)

// Narrative is the free-text interpretation of one test.
type Narrative struct {
	SiteInterpretation    string `json:"siteInterpretation"`
	SiteImpact            string `json:"siteImpact"`
	PolicyRecommendations string `json:"policyRecommendations"`
	BaselinePrediction    string `json:"baselinePrediction"`
	WithPolicyPrediction  string `json:"withPolicyPrediction"`
	EffectOfPolicy        string `json:"effectOfPolicy"`

	IgeoFinding string `json:"igeoFinding"`
	CFFinding   string `json:"cfFinding"`
	EFFinding   string `json:"efFinding"`
	ERIFinding  string `json:"eriFinding"`

	Source      string    `json:"source"`
	Cached      bool      `json:"cached,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Cacheable reports whether n is complete. Partial and fallback narratives
// are regenerated on the next request.
func (n Narrative) Cacheable() bool {
	return n.Source == SourceAnnotator
}

// FallbackNarrative is stored when the annotator fails.
func FallbackNarrative() Narrative {
	return Narrative{
		SiteInterpretation:    "Interpretation unavailable.",
		SiteImpact:            "Impact unavailable.",
		PolicyRecommendations: "Recommendation unavailable.",
		BaselinePrediction:    "baselinePrediction unavailable",
		WithPolicyPrediction:  "withPolicyPrediction unavailable",
		EffectOfPolicy:        "Unavailable.",
		IgeoFinding:           "Interpretation unavailable",
		CFFinding:             "Interpretation unavailable",
		EFFinding:             "Interpretation unavailable",
		ERIFinding:            "Interpretation unavailable",
		Source:                SourceFallback,
	}
}

// SiteSummary is the site metadata sent to an annotator alongside a test.
type SiteSummary struct {
	SiteArea string
	State    string
	SiteCode string
	Location Location
}

// SummarizeSite extracts the annotator-facing metadata of a site.
func SummarizeSite(s Site) SiteSummary {
	return SiteSummary{
		SiteArea: s.SiteArea,
		State:    s.State,
		SiteCode: s.SiteCode,
		Location: s.Location,
	}
}

// Annotator produces a narrative interpretation for a test.
type Annotator interface {
	Annotate(ctx context.Context, site SiteSummary, test TestRecord) (Narrative, error)
}
