package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/cleared-dev/fpa/internal/buildinfo"
	"github.com/cleared-dev/fpa/internal/chart"
	"github.com/cleared-dev/fpa/internal/export"
	"github.com/cleared-dev/fpa/internal/ingest"
	"github.com/cleared-dev/fpa/internal/model"
	"github.com/cleared-dev/fpa/internal/session"
)

const exportBaseName = "variance_analysis"

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	flash := s.sessions.TakeFlash(id)
	st := s.sessions.Get(id)

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, s.pageData(st, flash)); err != nil {
		s.logger.ErrorContext(r.Context(), "rendering page", slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

// handleUpload is one ingestion event: on any failure the previous dataset
// is discarded and the reason is flashed on the page.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	limit := s.uploadLimit()
	r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)

	tbl, name, err := s.readUpload(r, limit)
	if err == nil {
		err = s.ingest(r, id, tbl, session.SourceUpload, name)
	} else {
		s.metrics.Ingestion(string(session.SourceUpload), err)
	}
	if err != nil {
		s.logger.WarnContext(r.Context(), "upload rejected", slog.String("file", name), slog.Any("error", err))
		s.sessions.Fail(id, flashMessage(err))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) readUpload(r *http.Request, limit int64) (model.Table, string, error) {
	if err := r.ParseMultipartForm(limit + formOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return model.Table{}, "", fmt.Errorf("%w: larger than the %s limit", ingest.ErrFileTooLarge, humanLimit(limit))
		}
		return model.Table{}, "", fmt.Errorf("reading upload form: %w", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, hdr, err := r.FormFile("file")
	if err != nil {
		return model.Table{}, "", errMissingFile
	}
	defer f.Close()

	if err := ingest.CheckSize(hdr.Size, limit); err != nil {
		return model.Table{}, hdr.Filename, err
	}
	tbl, err := ingest.Load(f, limit)
	return tbl, hdr.Filename, err
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	if err := s.ingest(r, id, ingest.Sample(), session.SourceSample, ingest.SampleFileName); err != nil {
		s.sessions.Fail(id, flashMessage(err))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ingest runs the variance transform and replaces the session dataset.
func (s *Server) ingest(r *http.Request, id string, tbl model.Table, src session.Source, name string) error {
	a, err := s.calc.Calculate(tbl)
	s.metrics.Ingestion(string(src), err)
	if err != nil {
		return err
	}
	s.metrics.RowsAnalyzed(len(a.Rows))
	s.sessions.Load(id, tbl, a, src, name)
	s.logger.InfoContext(r.Context(), "dataset loaded",
		slog.String("source", string(src)),
		slog.String("file", name),
		slog.Int("rows", len(a.Rows)))
	return nil
}

func (s *Server) handleSampleCSV(w http.ResponseWriter, r *http.Request) {
	attachment(w, "text/csv; charset=utf-8", ingest.SampleFileName)
	_, _ = io.WriteString(w, ingest.SampleCSV)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(s.sessionID(w, r))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	st := s.sessions.Get(id)

	switch {
	case st.Analysis == nil:
		s.sessions.SetFlash(id, errNoData.Message)
	case s.insights == nil:
		s.sessions.SetFlash(id, errAIDisabled.Message)
	default:
		_, err := s.generateInsights(r, id, st)
		switch {
		case errors.Is(err, errDatasetChanged):
			s.sessions.SetFlash(id, errDatasetChanged.Message)
		case err != nil:
			s.sessions.SetFlash(id, "AI analysis failed: "+err.Error())
		}
	}
	http.Redirect(w, r, "/#insights", http.StatusSeeOther)
}

// generateInsights asks the model about the session's dataset and stores the
// reply. The call is bounded so a response can still be written before the
// server's WriteTimeout, and a reply for a dataset replaced in the meantime is
// dropped.
func (s *Server) generateInsights(r *http.Request, id string, st session.State) (string, error) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Server.AIDeadline())
	defer cancel()

	text, err := s.insights.Generate(ctx, st.Analysis)
	if err != nil {
		return "", err
	}
	if !s.sessions.SetInsights(id, st.Generation, text) {
		return "", errDatasetChanged
	}
	return text, nil
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	format := chart.Format(chi.URLParam(r, "format"))
	if format != chart.SVG && format != chart.PNG {
		renderError(w, r, errBadFormat)
		return
	}
	st := s.sessions.Get(s.sessionID(w, r))

	var buf bytes.Buffer
	if err := chart.RenderBars(&buf, st.Analysis, format); err != nil {
		if errors.Is(err, chart.ErrNoData) {
			renderError(w, r, errNoData)
			return
		}
		s.logger.ErrorContext(r.Context(), "rendering chart", slog.Any("error", err))
		renderError(w, r, errInternal)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := export.Format(chi.URLParam(r, "format"))
	st := s.sessions.Get(s.sessionID(w, r))

	var buf bytes.Buffer
	var err error
	switch format {
	case export.FormatCSV:
		err = export.WriteCSV(&buf, st.Analysis)
	case export.FormatJSON:
		err = export.WriteJSON(&buf, st.Analysis, st.Insights)
	case export.FormatXLSX:
		err = export.WriteXLSX(&buf, st.Analysis)
	case export.FormatPDF:
		err = export.WritePDF(&buf, export.Report{
			Title:       s.cfg.Server.Title,
			Analysis:    st.Analysis,
			Insights:    st.Insights,
			GeneratedAt: time.Now(),
		})
	default:
		renderError(w, r, errBadFormat)
		return
	}
	if err != nil {
		apiErr := apiErrorFor(err)
		if apiErr == errInternal {
			s.logger.ErrorContext(r.Context(), "exporting analysis", slog.String("format", string(format)), slog.Any("error", err))
		}
		renderError(w, r, apiErr)
		return
	}

	attachment(w, format.ContentType(), exportBaseName+"."+string(format))
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, buildinfo.Get())
}

func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}
