package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"dhc_scraper/captcha"
	"dhc_scraper/config"
	"dhc_scraper/models"
	"dhc_scraper/services"
	"dhc_scraper/storage"
)

// QueryExecutor runs one case query end to end. Satisfied by
// scraper.Executor.
type QueryExecutor interface {
	Execute(ctx context.Context, req models.QueryRequest) (*models.CaseRecord, error)
}

// MaintenanceRunner kicks off a maintenance cycle out of schedule.
// Satisfied by scheduler.Scheduler.
type MaintenanceRunner interface {
	TriggerNow()
}

// Server exposes the query executor, the audit log and the document
// cache over HTTP.
type Server struct {
	cfg         *config.Config
	portal      *config.PortalConfig
	executor    QueryExecutor
	store       storage.QueryStore
	docs        *services.DocumentService
	manual      *captcha.ManualOverride // nil unless manual captcha is enabled
	maintenance MaintenanceRunner       // nil in one-shot mode
}

func NewServer(cfg *config.Config, portal *config.PortalConfig, executor QueryExecutor, store storage.QueryStore, docs *services.DocumentService, manual *captcha.ManualOverride, maintenance MaintenanceRunner) *Server {
	return &Server{
		cfg:         cfg,
		portal:      portal,
		executor:    executor,
		store:       store,
		docs:        docs,
		manual:      manual,
		maintenance: maintenance,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Get("/history", s.handleHistory)
		r.Get("/download", s.handleDownload)
		r.Get("/case-types", s.handleCaseTypes)
		r.Get("/years", s.handleYears)

		r.Get("/captcha/pending", s.handleCaptchaPending)
		r.Post("/captcha/answer", s.handleCaptchaAnswer)

		r.Post("/maintenance/run", s.handleMaintenanceRun)
	})

	return r
}

// HTTPServer wraps the router with production timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.Router(),
		// Queries block on a real browser round trip, so the write
		// timeout has to cover the whole portal exchange.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
}
