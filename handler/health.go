package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Glyph8/navermapCrawling/common/utils"
	"github.com/go-chi/chi/v5"
)

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db     Pinger
	router *chi.Mux
}

// NewHealthHandler reports database health through db, which may be nil
func NewHealthHandler(db Pinger) *HealthHandler {
	h := &HealthHandler{
		db: db,
	}

	r := chi.NewRouter()
	r.Get("/", h.handleHealthCheck)
	r.Get("/database", h.handleDatabaseHealth)

	h.router = r
	return h
}

func (h *HealthHandler) Router() *chi.Mux {
	return h.router
}

func (h *HealthHandler) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "navermap-crawler",
	}

	utils.WriteJSON(w, http.StatusOK, response)
}

func (h *HealthHandler) handleDatabaseHealth(w http.ResponseWriter, r *http.Request) {
	database := map[string]interface{}{"status": "disabled"}
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"database":  database,
	}

	if h.db == nil {
		utils.WriteJSON(w, http.StatusOK, response)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		response["status"] = "unhealthy"
		database["status"] = "unhealthy"
		database["error"] = err.Error()
		utils.WriteJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	database["status"] = "healthy"
	utils.WriteJSON(w, http.StatusOK, response)
}
