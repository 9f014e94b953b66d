package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/finlens/finlens/internal/config"
	"github.com/finlens/finlens/internal/extractor"
	"github.com/finlens/finlens/internal/llm"
	"github.com/finlens/finlens/internal/market"
	"github.com/finlens/finlens/internal/session"
)

// Server is the HTTP API server for finlens.
type Server struct {
	router    chi.Router
	extractor *extractor.Extractor
	sessions  *session.Store
	llmClient llm.Client
	llmStats  *llm.Stats
	market    *market.Gateway
	log       *slog.Logger
	cfg       config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(ext *extractor.Extractor, store *session.Store, client llm.Client, stats *llm.Stats, gw *market.Gateway, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		extractor: ext,
		sessions:  store,
		llmClient: client,
		llmStats:  stats,
		market:    gw,
		log:       log,
		cfg:       cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/documents", s.handleUploadDocument)

		r.Get("/api/sessions/{sessionID}", s.handleGetSession)
		r.Post("/api/sessions/{sessionID}/ask", s.handleAsk)
		r.Post("/api/sessions/{sessionID}/reset", s.handleResetError)
		r.Delete("/api/sessions/{sessionID}", s.handleDeleteSession)

		r.Get("/api/quotes/{symbol}", s.handleQuote)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.llmStats.Snapshot())
}
