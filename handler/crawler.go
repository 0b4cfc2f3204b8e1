package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Glyph8/navermapCrawling/common/constants"
	"github.com/Glyph8/navermapCrawling/common/crawler"
	"github.com/Glyph8/navermapCrawling/common/messaging"
	"github.com/Glyph8/navermapCrawling/common/models"
	"github.com/Glyph8/navermapCrawling/common/services"
	"github.com/Glyph8/navermapCrawling/common/utils"
	"github.com/Glyph8/navermapCrawling/common/work"
	"github.com/Glyph8/navermapCrawling/crawlers"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const runLogLimit = 200

// Repositories are the stores behind the crawl endpoints; each may be nil
// when Postgres is disabled
type Repositories struct {
	Runs   services.RunService
	Logs   services.LogStore
	Places services.PlaceService
}

type CrawlerHandler struct {
	dispatcher crawlers.Dispatcher
	work       *work.WorkManager
	repos      Repositories
	router     *chi.Mux
}

func NewCrawlerHandler(dispatcher crawlers.Dispatcher, wm *work.WorkManager, repos Repositories) *CrawlerHandler {
	router := chi.NewRouter()

	h := &CrawlerHandler{
		dispatcher: dispatcher,
		work:       wm,
		repos:      repos,
		router:     router,
	}

	router.Post("/", h.handleRunCrawl)
	router.Get("/", h.handleListRuns)
	router.Get("/{runID}", h.handleGetRun)
	router.Delete("/{runID}", h.handleCancelRun)
	router.Get("/{runID}/places", h.handleListPlaces)
	return h
}

func (h *CrawlerHandler) Router() *chi.Mux {
	return h.router
}

type CrawlRunParams struct {
	RunID      string           `json:"run_id" validate:"omitempty,max=64"`
	Site       string           `json:"site"`
	Schema     string           `json:"schema"`
	Regions    []string         `json:"regions" validate:"dive,required"`
	Categories []string         `json:"categories" validate:"dive,required"`
	Searches   []crawler.Search `json:"searches" validate:"dive"`
}

func (h *CrawlerHandler) handleRunCrawl(w http.ResponseWriter, r *http.Request) {
	var p CrawlRunParams

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

	req := messaging.CrawlRequest{
		Type:       constants.CrawlRunAction,
		RunID:      p.RunID,
		Site:       p.Site,
		Schema:     p.Schema,
		Regions:    p.Regions,
		Categories: p.Categories,
		Searches:   p.Searches,
	}

	runID, err := h.dispatcher.Submit(r.Context(), req)
	switch {
	case errors.Is(err, work.ErrAlreadyRunning):
		utils.WriteError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, crawlers.ErrNoSearches), errors.Is(err, crawler.ErrUnknownSite), errors.Is(err, crawler.ErrInvalidSite):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Error().Err(err).Msg("Failed to submit crawl run")
		utils.WriteError(w, http.StatusInternalServerError, "Failed to submit crawl run")
		return
	}

	utils.WriteJSON(w, http.StatusAccepted, map[string]string{"message": "accepted", "run_id": runID})
}

func (h *CrawlerHandler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 20
	}

	running, err := h.work.ListRunningWorks(r.Context())
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to list running runs")
		return
	}

	if h.repos.Runs == nil {
		runs := lo.Map(running, func(id string, _ int) models.CrawlRun {
			return models.CrawlRun{ID: id, Status: models.RunStatusRunning}
		})
		utils.WriteJSON(w, http.StatusOK, runs)
		return
	}

	runs, err := h.repos.Runs.ListRecent(r.Context(), limit)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to get runs")
		return
	}
	utils.WriteJSON(w, http.StatusOK, runs)
}

func (h *CrawlerHandler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	running, err := h.work.IsRunning(r.Context(), runID)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to get run state")
		return
	}

	detail := models.RunDetailResponse{
		Run:     models.CrawlRun{ID: runID, Status: models.RunStatusRunning},
		Running: running,
		Logs:    []models.CrawlLogResponse{},
	}

	if h.repos.Runs == nil {
		if !running {
			utils.WriteError(w, http.StatusNotFound, "Run not found")
			return
		}
		utils.WriteJSON(w, http.StatusOK, detail)
		return
	}

	run, err := h.repos.Runs.GetByID(r.Context(), runID)
	if errors.Is(err, pgx.ErrNoRows) {
		utils.WriteError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}
	detail.Run = run

	if h.repos.Logs != nil {
		logs, err := h.repos.Logs.ListByRun(r.Context(), runID, runLogLimit)
		if err != nil {
			utils.WriteError(w, http.StatusInternalServerError, "Failed to get run logs")
			return
		}
		detail.Logs = lo.Map(logs, func(l models.CrawlLog, _ int) models.CrawlLogResponse {
			return l.Response()
		})
	}

	utils.WriteJSON(w, http.StatusOK, detail)
}

func (h *CrawlerHandler) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	cancelled, err := h.dispatcher.Cancel(r.Context(), runID)
	if err != nil {
		log.Error().Err(err).Str("run", runID).Msg("Failed to cancel crawl run")
		utils.WriteError(w, http.StatusInternalServerError, "Failed to cancel crawl run")
		return
	}
	if !cancelled {
		utils.WriteError(w, http.StatusNotFound, "Run is not running")
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "cancelled", "run_id": runID})
}

func (h *CrawlerHandler) handleListPlaces(w http.ResponseWriter, r *http.Request) {
	if h.repos.Places == nil {
		utils.WriteError(w, http.StatusServiceUnavailable, "Place storage is disabled")
		return
	}

	runID := chi.URLParam(r, "runID")
	page, limit, offset := utils.PageParams(r, 20, 100)

	places, err := h.repos.Places.ListByRun(r.Context(), runID, limit, offset)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to get places")
		return
	}

	total, err := h.repos.Places.CountByRun(r.Context(), runID)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to count places")
		return
	}
	utils.WritePagination(w, http.StatusOK, places, page, limit, total)
}
