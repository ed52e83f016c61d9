package web

import (
	"embed"
	"html/template"
	"strconv"
	"time"

	"github.com/cleared-dev/fpa/internal/ingest"
	"github.com/cleared-dev/fpa/internal/model"
	"github.com/cleared-dev/fpa/internal/session"
	"github.com/cleared-dev/fpa/internal/variance"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"amount":  model.FormatAmount,
	"percent": model.FormatPercent,
	"signClass": func(r model.Row) string {
		switch r.Variance.Sign() {
		case -1:
			return "neg"
		case 1:
			return "pos"
		}
		return ""
	},
}).ParseFS(templateFS, "templates/index.html"))

type pageData struct {
	Title         string
	Flash         string
	MaxUpload     string
	AIEnabled     bool
	HasData       bool
	Source        session.Source
	FileName      string
	LoadedAt      time.Time
	Raw           *model.Table
	Analysis      *model.Analysis
	Totals        model.Totals
	Duplicates    []string
	Insights      string
	StrictMode    bool
	ChartRendered bool
}

func (s *Server) pageData(st session.State, flash string) pageData {
	d := pageData{
		Title:      s.cfg.Server.Title,
		Flash:      flash,
		MaxUpload:  humanLimit(s.uploadLimit()),
		AIEnabled:  s.insights != nil,
		HasData:    st.HasData(),
		Source:     st.Source,
		FileName:   st.FileName,
		LoadedAt:   st.LoadedAt,
		Raw:        st.Raw,
		Analysis:   st.Analysis,
		Insights:   st.Insights,
		StrictMode: s.calc.Policy() == variance.ZeroForecastError,
	}
	if st.Analysis != nil {
		d.Totals = variance.Summarize(st.Analysis)
		d.Duplicates = variance.DuplicateCategories(st.Analysis)
		d.ChartRendered = len(st.Analysis.Rows) > 0
	}
	return d
}

func humanLimit(n int64) string {
	if n <= 0 {
		n = ingest.DefaultMaxBytes
	}
	return strconv.FormatFloat(float64(n)/(1024*1024), 'f', -1, 64) + " MB"
}
