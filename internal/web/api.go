package web

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/cleared-dev/fpa/internal/export"
	"github.com/cleared-dev/fpa/internal/ingest"
	"github.com/cleared-dev/fpa/internal/variance"
)

// handleAPIAnalysis returns the caller's current session analysis.
func (s *Server) handleAPIAnalysis(w http.ResponseWriter, r *http.Request) {
	st := s.sessions.Get(s.sessionID(w, r))
	if st.Analysis == nil {
		renderError(w, r, errNoData)
		return
	}
	render.JSON(w, r, export.NewDocument(st.Analysis, st.Insights))
}

// handleAPIVariance is stateless: the request body is a CSV, the response
// the augmented dataset. ?zero_forecast=marker|error overrides the
// configured policy for this call.
func (s *Server) handleAPIVariance(w http.ResponseWriter, r *http.Request) {
	limit := s.uploadLimit()
	r.Body = http.MaxBytesReader(w, r.Body, limit+1)

	calc := s.calc
	switch p := variance.ZeroForecastPolicy(r.URL.Query().Get("zero_forecast")); p {
	case "":
	case variance.ZeroForecastMarker, variance.ZeroForecastError:
		calc = variance.NewCalculator(p)
	default:
		renderError(w, r, newAPIError(http.StatusBadRequest, "INVALID_PARAMETER",
			"zero_forecast must be marker or error", string(p)))
		return
	}

	tbl, err := ingest.Load(r.Body, limit)
	if err != nil {
		s.metrics.Ingestion("api", err)
		renderError(w, r, apiErrorFor(err))
		return
	}

	a, err := calc.Calculate(tbl)
	s.metrics.Ingestion("api", err)
	if err != nil {
		renderError(w, r, apiErrorFor(err))
		return
	}
	s.metrics.RowsAnalyzed(len(a.Rows))
	s.logger.InfoContext(r.Context(), "variance computed", slog.Int("rows", len(a.Rows)))
	render.JSON(w, r, export.NewDocument(a, ""))
}

// handleAPIInsights generates insights for the session dataset and returns
// them as JSON.
func (s *Server) handleAPIInsights(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	st := s.sessions.Get(id)
	if st.Analysis == nil {
		renderError(w, r, errNoData)
		return
	}
	if s.insights == nil {
		renderError(w, r, errAIDisabled)
		return
	}

	text, err := s.generateInsights(r, id, st)
	if err != nil {
		renderError(w, r, apiErrorFor(err))
		return
	}
	render.JSON(w, r, map[string]string{"insights": text})
}
