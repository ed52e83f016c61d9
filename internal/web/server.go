// Package web serves the variance page, downloads and the JSON API.
package web

import (
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cleared-dev/fpa/internal/config"
	"github.com/cleared-dev/fpa/internal/insights"
	"github.com/cleared-dev/fpa/internal/logging"
	"github.com/cleared-dev/fpa/internal/metrics"
	"github.com/cleared-dev/fpa/internal/session"
	"github.com/cleared-dev/fpa/internal/variance"
)

const (
	sessionCookie = "fpa_session"
	// multipart envelope allowance on top of the file cap
	formOverhead = 64 << 10
)

// Options wires a Server. Insights may be nil; the page then hides the
// Generate Analysis action.
type Options struct {
	Config   *config.Config
	Insights insights.Generator
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Server holds the handler dependencies.
type Server struct {
	cfg      *config.Config
	calc     *variance.Calculator
	sessions *session.Store
	insights insights.Generator
	metrics  *metrics.Metrics
	logger   *slog.Logger
	page     *template.Template
}

// New builds a Server. A nil config means config.Default().
func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		cfg:      cfg,
		calc:     variance.NewCalculator(variance.ZeroForecastPolicy(cfg.Analysis.ZeroForecast)),
		sessions: session.NewStore(cfg.Server.SessionTTL),
		insights: opts.Insights,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "web"),
		page:     pageTemplate,
	}
}

// Routes returns the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(structuredLogger(s.logger))
	r.Use(recoverer(s.logger))

	r.Get("/", s.handlePage)
	r.Post("/upload", s.handleUpload)
	r.Post("/sample", s.handleSample)
	r.Get("/sample.csv", s.handleSampleCSV)
	r.Post("/analyze", s.handleAnalyze)
	r.Post("/reset", s.handleReset)
	r.Get("/chart.{format}", s.handleChart)
	r.Get("/export.{format}", s.handleExport)

	r.Route("/api", func(r chi.Router) {
		r.Get("/analysis", s.handleAPIAnalysis)
		r.Post("/variance", s.handleAPIVariance)
		r.Post("/insights", s.handleAPIInsights)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/version", s.handleVersion)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	return r
}

// HTTPServer returns an http.Server bound to the configured address.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Routes(),
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
	}
}

// sessionID returns the caller's session id, minting one and setting the
// cookie when absent or invalid.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && session.ValidID(c.Value) {
		return c.Value
	}
	id := session.NewID()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (s *Server) uploadLimit() int64 {
	return s.cfg.Upload.MaxBytes
}
