package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/couchcryptid/groundwater-etl/internal/pipeline"
)

// Enricher annotates a site's latest test.
type Enricher interface {
	EnrichLatest(ctx context.Context, siteCode string) (pipeline.Enrichment, error)
}

// API serves the read side of the site repository.
type API struct {
	sites      domain.SiteRepository
	narratives domain.EnrichmentStore
	enricher   Enricher
	logger     *slog.Logger
}

// NewAPI creates the /api handlers.
func NewAPI(sites domain.SiteRepository, narratives domain.EnrichmentStore, enricher Enricher, logger *slog.Logger) *API {
	return &API{sites: sites, narratives: narratives, enricher: enricher, logger: logger}
}

func (a *API) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/data/site/{siteCode}", a.handleSite)
	mux.HandleFunc("POST /api/data/sites/{siteCode}/ai", a.handleEnrich)
	mux.HandleFunc("GET /api/data/map/{state}", a.handleMap)
	mux.HandleFunc("GET /api/data/timeline/{siteCode}", a.handleTimeline)
	mux.HandleFunc("GET /api/data/overview", a.handleOverview)
	mux.HandleFunc("GET /api/sites", a.handleSites)
}

type siteHeader struct {
	SiteArea string          `json:"siteArea"`
	State    string          `json:"State"`
	SiteCode string          `json:"siteCode"`
	Location domain.Location `json:"location"`
}

func headerOf(s domain.Site) siteHeader {
	return siteHeader{SiteArea: s.SiteArea, State: s.State, SiteCode: s.SiteCode, Location: s.Location}
}

type siteResponse struct {
	siteHeader
	LatestTest *domain.TestRecord `json:"latestTest"`
	Narrative  *domain.Narrative  `json:"narrative"`
}

func (a *API) handleSite(w http.ResponseWriter, r *http.Request) {
	site, ok := a.getSite(w, r)
	if !ok {
		return
	}

	resp := siteResponse{siteHeader: headerOf(site)}
	if t, ok := domain.LatestTest(site); ok {
		resp.LatestTest = &t
		n, found, err := a.narratives.GetNarrative(r.Context(), t.ID)
		if err != nil {
			a.serverError(w, r, err)
			return
		}
		if found {
			resp.Narrative = &n
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleEnrich(w http.ResponseWriter, r *http.Request) {
	siteCode := r.PathValue("siteCode")
	out, err := a.enricher.EnrichLatest(r.Context(), siteCode)
	switch {
	case errors.Is(err, domain.ErrSiteNotFound):
		writeMessage(w, http.StatusNotFound, "Site not found")
		return
	case errors.Is(err, domain.ErrNoTests):
		writeMessage(w, http.StatusBadRequest, "No tests available for this site")
		return
	case errors.Is(err, domain.ErrAnnotatorDisabled):
		writeMessage(w, http.StatusServiceUnavailable, "Narrative annotator is disabled")
		return
	case err != nil:
		a.serverError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "AI insights generated successfully",
		"siteCode":   siteCode,
		"latestTest": out.Test,
		"narrative":  out.Narrative,
	})
}

func (a *API) handleMap(w http.ResponseWriter, r *http.Request) {
	sites, err := a.sites.ListSitesByState(r.Context(), r.PathValue("state"))
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sites": domain.MapSites(sites)})
}

func (a *API) handleTimeline(w http.ResponseWriter, r *http.Request) {
	site, ok := a.getSite(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"site":     headerOf(site),
		"timeline": domain.Timeline(site),
	})
}

func (a *API) handleOverview(w http.ResponseWriter, r *http.Request) {
	sites, err := a.sites.ListSites(r.Context())
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "riskSummary": domain.RiskSummary(sites)})
}

func (a *API) handleSites(w http.ResponseWriter, r *http.Request) {
	sites, err := a.sites.ListSites(r.Context())
	if err != nil {
		a.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sites)
}

// getSite loads the {siteCode} path site, writing 404 or 500 on failure.
func (a *API) getSite(w http.ResponseWriter, r *http.Request) (domain.Site, bool) {
	site, err := a.sites.GetSite(r.Context(), r.PathValue("siteCode"))
	if errors.Is(err, domain.ErrSiteNotFound) {
		writeMessage(w, http.StatusNotFound, "Site not found")
		return domain.Site{}, false
	}
	if err != nil {
		a.serverError(w, r, err)
		return domain.Site{}, false
	}
	return site, true
}

func (a *API) serverError(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeMessage(w, http.StatusInternalServerError, "Server Error")
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
