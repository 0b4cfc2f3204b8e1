package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Glyph8/navermapCrawling/common"
	"github.com/Glyph8/navermapCrawling/common/config"
	"github.com/Glyph8/navermapCrawling/common/db"
	"github.com/Glyph8/navermapCrawling/common/utils"
	"github.com/Glyph8/navermapCrawling/common/work"
	"github.com/Glyph8/navermapCrawling/crawlers"
	"github.com/Glyph8/navermapCrawling/handler"
	"github.com/Glyph8/navermapCrawling/middlewares"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

type AppHttpServer struct {
	router      *chi.Mux
	cfg         config.Config
	server      *http.Server
	db          *db.DB
	dispatcher  crawlers.Dispatcher
	workManager *work.WorkManager
	repos       handler.Repositories
}

func NewAppHttpServer(cfg config.Config) *AppHttpServer {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", middlewares.ApiKeyHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Set a timeout value on the request context (ctx), that will signal
	// through ctx.Done() that the request has timed out and further
	// processing should be stopped.
	r.Use(middleware.Timeout(2 * time.Minute))

	return &AppHttpServer{
		router: r,
		cfg:    cfg,
		server: &http.Server{
			Addr:         cfg.Listen.Addr(),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetDB sets the database dependency
func (s *AppHttpServer) SetDB(db *db.DB) {
	s.db = db
}

// SetDispatcher sets where submitted runs are sent
func (s *AppHttpServer) SetDispatcher(dispatcher crawlers.Dispatcher, wm *work.WorkManager) {
	s.dispatcher = dispatcher
	s.workManager = wm
}

func (s *AppHttpServer) SetRepositories(repos handler.Repositories) {
	s.repos = repos
}

func (s *AppHttpServer) setupRoute() {
	r := s.router

	if s.db == nil {
		log.Warn().Msg("DB dependency not set, runs and places are not persisted")
	}

	// Public health endpoint (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": common.AppName})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middlewares.ApiKey(s.cfg.Security.BackendApiKey))

		var pinger handler.Pinger
		if s.db != nil {
			pinger = s.db
		}

		crawlerHandler := handler.NewCrawlerHandler(s.dispatcher, s.workManager, s.repos)
		extractHandler := handler.NewExtractHandler(s.cfg)
		healthHandler := handler.NewHealthHandler(pinger)

		r.Mount("/crawls", crawlerHandler.Router())
		r.Mount("/extract", extractHandler.Router())
		r.Mount("/health", healthHandler.Router())
	})
}

func (s *AppHttpServer) start() error {
	log.Info().Str("address", s.cfg.Listen.Addr()).Msg("Starting up server...")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// stop gracefully shuts down the server
func (s *AppHttpServer) stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
