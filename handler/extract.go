package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Glyph8/navermapCrawling/common/config"
	"github.com/Glyph8/navermapCrawling/common/crawler"
	"github.com/Glyph8/navermapCrawling/common/utils"
	"github.com/Glyph8/navermapCrawling/crawlers"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// ExtractHandler runs a site schema against posted detail html, so selector
// changes can be checked without a browser
type ExtractHandler struct {
	cfg    config.Config
	router *chi.Mux
}

func NewExtractHandler(cfg config.Config) *ExtractHandler {
	router := chi.NewRouter()

	h := &ExtractHandler{
		cfg:    cfg,
		router: router,
	}

	router.Post("/", h.handleExtract)
	router.Get("/sites", h.handleListSites)
	return h
}

func (h *ExtractHandler) Router() *chi.Mux {
	return h.router
}

type ExtractParams struct {
	Site   string `json:"site"`
	Schema string `json:"schema"`
	HTML   string `json:"html" validate:"required"`
	// Region, when set, is matched against the extracted address
	Region string `json:"region"`
}

type ExtractedField struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Missing bool   `json:"missing"`
}

type ExtractResponse struct {
	Site        string           `json:"site"`
	Schema      string           `json:"schema"`
	Key         string           `json:"key"`
	Fields      []ExtractedField `json:"fields"`
	RegionMatch *bool            `json:"region_match,omitempty"`
}

func (h *ExtractHandler) handleExtract(w http.ResponseWriter, r *http.Request) {
	var p ExtractParams

	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	validate := validator.New()
	if err := validate.Struct(p); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	siteName := lo.CoalesceOrEmpty(p.Site, h.cfg.Crawl.Site)
	schema := lo.CoalesceOrEmpty(p.Schema, h.cfg.Crawl.Schema)
	preview, err := crawlers.ExtractHTML(r.Context(), siteName, schema, p.HTML, p.Region, h.cfg.Crawl.RegionTokens)
	switch {
	case errors.Is(err, crawler.ErrUnknownSite), errors.Is(err, crawler.ErrInvalidSite):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		utils.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	rec := preview.Record
	resp := ExtractResponse{
		Site:   siteName,
		Schema: rec.Schema(),
		Key:    rec.Key(),
		Fields: lo.Map(rec.Fields(), func(field string, _ int) ExtractedField {
			value, _ := rec.Get(field)
			return ExtractedField{Field: field, Value: value, Missing: rec.IsMissing(field)}
		}),
		RegionMatch: preview.RegionMatch,
	}

	utils.WriteJSON(w, http.StatusOK, resp)
}

func (h *ExtractHandler) handleListSites(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, crawler.SiteNames())
}
