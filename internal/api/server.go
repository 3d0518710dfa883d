package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/docscope/internal/analyzer"
	"github.com/dgallion1/docscope/internal/config"
	"github.com/dgallion1/docscope/internal/session"
	"github.com/dgallion1/docscope/internal/web"
)

// Server is the HTTP console for docscope.
type Server struct {
	router   chi.Router
	sessions *session.Manager
	analyzer *analyzer.Client
	static   http.Handler
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(sessions *session.Manager, client *analyzer.Client, log *slog.Logger, cfg config.Config) (*Server, error) {
	static, err := web.Handler()
	if err != nil {
		return nil, err
	}
	s := &Server{
		sessions: sessions,
		analyzer: client,
		static:   static,
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleIndex)
	r.Handle("/static/*", http.StripPrefix("/static", s.static))

	r.Route("/api", func(r chi.Router) {
		r.Get("/connectivity", s.handleConnectivity)
		r.Get("/stats/analyzer", s.handleAnalyzerStats)

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(s.sessions, s.log))

			r.With(CreateSession(s.sessions, s.log)).Post("/file", s.handleSelectFile)
			r.Delete("/file", s.handleClearFile)
			r.Post("/analyze", s.handleAnalyze)
			r.Get("/status", s.handleStatus)
			r.Get("/report.md", s.handleReport)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := web.Index()
	if err != nil {
		http.Error(w, "index not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}
