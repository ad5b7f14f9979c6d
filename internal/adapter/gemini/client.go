// Package gemini implements domain.Annotator on the Google Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/couchcryptid/groundwater-etl/internal/observability"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// generator sends one prompt and returns the raw text reply.
type generator interface {
	generate(ctx context.Context, model, prompt string) (string, error)
}

// Client implements domain.Annotator. Each annotation issues two prompts:
// site insights with predictions, and per-index findings.
type Client struct {
	gen     generator
	model   string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// Options configure NewClient.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string // overrides the API endpoint; empty uses the default
}

// NewClient creates a Gemini annotator.
func NewClient(ctx context.Context, opts Options, metrics *observability.Metrics, logger *slog.Logger) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newClient(&genaiGenerator{client: client}, opts.Model, metrics, logger), nil
}

func newClient(gen generator, model string, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{gen: gen, model: model, metrics: metrics, logger: logger}
}

// Annotate asks for insights and index findings. A failed half is filled
// with the fallback texts and marks the narrative partial; an error is
// returned only when both fail.
func (c *Client) Annotate(ctx context.Context, site domain.SiteSummary, test domain.TestRecord) (domain.Narrative, error) {
	n := domain.FallbackNarrative()

	var ins insights
	insErr := c.ask(ctx, insightsPrompt(site, test), &ins)
	if insErr == nil {
		n.SiteInterpretation = ins.SiteInterpretation
		n.SiteImpact = ins.SiteImpact
		n.PolicyRecommendations = ins.PolicyRecommendations
		n.BaselinePrediction = ins.BaselinePrediction
		n.WithPolicyPrediction = ins.WithPolicyPrediction
		n.EffectOfPolicy = ins.EffectOfPolicy
	} else {
		c.logger.Warn("gemini insights failed", "site_code", site.SiteCode, "test_id", test.ID, "error", insErr)
	}

	var fnd findings
	fndErr := c.ask(ctx, findingsPrompt(test), &fnd)
	if fndErr == nil {
		n.IgeoFinding = fnd.Igeo
		n.CFFinding = fnd.CF
		n.EFFinding = fnd.EF
		n.ERIFinding = fnd.ERI
	} else {
		c.logger.Warn("gemini index findings failed", "site_code", site.SiteCode, "test_id", test.ID, "error", fndErr)
	}

	if insErr != nil && fndErr != nil {
		return domain.Narrative{}, errors.Join(insErr, fndErr)
	}
	n.Source = domain.SourceAnnotator
	if insErr != nil || fndErr != nil {
		n.Source = domain.SourcePartial
	}
	return n, nil
}

// ask sends prompt and decodes the JSON object in the reply into out.
func (c *Client) ask(ctx context.Context, prompt string, out any) error {
	start := time.Now()
	text, err := c.gen.generate(ctx, c.model, prompt)
	c.metrics.AnnotatorDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.AnnotatorRequests.WithLabelValues("error").Inc()
		return fmt.Errorf("generate content: %w", err)
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), out); err != nil {
		c.metrics.AnnotatorRequests.WithLabelValues("invalid").Inc()
		return fmt.Errorf("decode reply: %w", err)
	}
	c.metrics.AnnotatorRequests.WithLabelValues("success").Inc()
	return nil
}

var (
	fencePattern  = regexp.MustCompile("```(?:json)?")
	objectPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

// extractJSON strips Markdown code fences and returns the outermost object.
func extractJSON(text string) string {
	text = strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))
	if m := objectPattern.FindString(text); m != "" {
		return m
	}
	return text
}

type insights struct {
	SiteInterpretation    string `json:"siteInterpretation"`
	SiteImpact            string `json:"siteImpact"`
	PolicyRecommendations string `json:"policyRecommendations"`
	BaselinePrediction    string `json:"baselinePrediction"`
	WithPolicyPrediction  string `json:"withPolicyPrediction"`
	EffectOfPolicy        string `json:"effectOfPolicy"`
}

type findings struct {
	Igeo string `json:"igeo_Finding"`
	CF   string `json:"cf_Finding"`
	EF   string `json:"ef_Finding"`
	ERI  string `json:"eri_Finding"`
}

// genaiGenerator adapts the genai client to generator.
type genaiGenerator struct {
	client *genai.Client
}

func (g *genaiGenerator) generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
