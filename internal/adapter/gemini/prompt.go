package gemini

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/groundwater-etl/internal/domain"
)

func insightsPrompt(site domain.SiteSummary, test domain.TestRecord) string {
	var b strings.Builder
	b.WriteString("You are an environmental analyst. Based on this site data, generate concise insights and numeric future predictions:\n\n")
	fmt.Fprintf(&b, "Site Area: %s\n", site.SiteArea)
	fmt.Fprintf(&b, "State: %s\n", site.State)
	fmt.Fprintf(&b, "Location: lat %s, lon %s\n", coord(site.Location.Lat), coord(site.Location.Lon))
	fmt.Fprintf(&b, "Date: %s\n", sampleDate(test))
	b.WriteString("Metals (mg/L):\n")
	parts := make([]string, len(test.Metals))
	for i, m := range test.Metals {
		parts[i] = fmt.Sprintf("%s: %g", m.Metal, m.Concentration)
	}
	b.WriteString(strings.Join(parts, ", "))
	fmt.Fprintf(&b, "\nHPI: %s\nHEI: %s\n\n", test.HPI, test.HEI)
	b.WriteString(`Respond ONLY in JSON format with this structure:
{
  "siteInterpretation": "2 line interpretation",
  "siteImpact": "2 line description of potential impact",
  "policyRecommendations": "3.5 line recommendation for policy makers",
  "baselinePrediction": "a plain string with the predicted values of all metals assuming no policies are applied",
  "withPolicyPrediction": "a plain string with the predicted values of all metals assuming the recommended policies are applied effectively",
  "effectOfPolicy": "2 lines explaining how policies could change metal concentrations and risks"
}

Rules:
- baselinePrediction = extrapolated numeric values based only on current data, assuming no policies are applied.
- withPolicyPrediction = numeric values assuming the recommended policies are applied effectively.
- Predictions must always include ALL metals (`)
	b.WriteString(strings.Join(domain.KnownMetals(), ", "))
	b.WriteString(`) even if their current value is missing.
- Predictions must be numeric (no text like 'slight increase').
- Keep predictions realistic: within ±20% of current values unless strongly justified.
`)
	return b.String()
}

func findingsPrompt(test domain.TestRecord) string {
	var b strings.Builder
	b.WriteString("You are an environmental analyst. Given the following metal indices for a site, generate concise findings:\n\nMetals:\n")
	for _, m := range test.Metals {
		fmt.Fprintf(&b, "%s: Igeo=%s, CF=%s, EF=%s, ERI=%s\n", m.Metal, m.Igeo, m.CF, m.EF, m.ERI)
	}
	b.WriteString(`
Respond ONLY in JSON format with four fields:
{
  "igeo_Finding": "Brief interpretation of Igeo values",
  "cf_Finding": "Brief interpretation of CF values",
  "ef_Finding": "Brief interpretation of EF values",
  "eri_Finding": "Brief interpretation of ERI values"
}
`)
	return b.String()
}

func coord(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%g", *v)
}

func sampleDate(test domain.TestRecord) string {
	if test.Date == nil {
		return "unknown"
	}
	return test.Date.Format("2006-01-02")
}
