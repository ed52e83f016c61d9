package commands_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/fpa/internal/commands"
)

// runFPA executes the CLI in-process and returns stdout and stderr.
func runFPA(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	cmd := commands.NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func fixture(name string) string {
	return filepath.Join("..", "..", "testdata", name)
}

func TestAnalyze_SampleTable(t *testing.T) {
	out, _, err := runFPA(t, nil, "analyze", "--sample")
	require.NoError(t, err)

	assert.Contains(t, out, "Variance Analysis")
	assert.Contains(t, out, "Variance %")
	assert.Contains(t, out, "-5000")
	assert.Contains(t, out, "-6.67")
	assert.Contains(t, out, "Total forecast 340000, actual 353000, variance 13000 (3.82%)")
	assert.Contains(t, out, "Over forecast: 3, under: 2.")
}

func TestAnalyze_FileCSV(t *testing.T) {
	out, _, err := runFPA(t, nil, "analyze", fixture("budget_q3.csv"), "--format", "csv")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "Department,Forecast,Actual,Owner,Variance,Variance %", lines[0])
	assert.Contains(t, out, "Facilities,0,1500,Jo,1500,N/A")
}

func TestAnalyze_Stdin(t *testing.T) {
	in := strings.NewReader("Department,Forecast,Actual\nSales,200,250\n")
	out, _, err := runFPA(t, in, "analyze", "-", "--format", "csv")
	require.NoError(t, err)
	assert.Equal(t, "Department,Forecast,Actual,Variance,Variance %\nSales,200,250,50,25.00\n", out)
}

func TestAnalyze_JSON(t *testing.T) {
	out, _, err := runFPA(t, nil, "analyze", "--sample", "--format", "json")
	require.NoError(t, err)

	var doc struct {
		Rows   []map[string]any `json:"rows"`
		Totals struct {
			VariancePercent string `json:"variance_percent"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Len(t, doc.Rows, 5)
	assert.Equal(t, "3.82", doc.Totals.VariancePercent)
}

func TestAnalyze_StrictZeroForecast(t *testing.T) {
	_, _, err := runFPA(t, nil, "analyze", fixture("budget_q3.csv"), "--zero-forecast", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Facilities")
	assert.Contains(t, err.Error(), "forecast is zero")
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no input", []string{"analyze"}, "either a CSV file or --sample"},
		{"both inputs", []string{"analyze", "x.csv", "--sample"}, "either a CSV file or --sample"},
		{"missing file", []string{"analyze", "does-not-exist.csv"}, "does-not-exist.csv"},
		{"missing columns", []string{"analyze", fixture("missing_columns.csv")}, "CSV must contain columns"},
		{"header only", []string{"analyze", fixture("header_only.csv")}, "empty"},
		{"bad format", []string{"analyze", "--sample", "--format", "xml"}, "unknown format"},
		{"bad policy", []string{"analyze", "--sample", "--zero-forecast", "skip"}, "invalid config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runFPA(t, nil, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAnalyze_OutFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"v.csv", "v.json", "v.xlsx", "v.pdf", "v.svg", "v.png"} {
		path := filepath.Join(dir, name)
		_, stderr, err := runFPA(t, nil, "analyze", "--sample", "--format", "csv", "--out", path)
		require.NoError(t, err, name)
		assert.Contains(t, stderr, "Wrote "+path)

		info, err := os.Stat(path)
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}

	pdf, err := os.ReadFile(filepath.Join(dir, "v.pdf"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
}

func TestAnalyze_OutUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.docx")
	_, _, err := runFPA(t, nil, "analyze", "--sample", "--out", path)
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "partial output is removed")
}

func TestAnalyze_InsightsRequireKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("FPA_SECRETS_FILE", filepath.Join(t.TempDir(), "none.toml"))

	_, _, err := runFPA(t, nil, "analyze", "--sample", "--insights")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY not found")
}

func TestAnalyze_Insights(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-from-file", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Marketing overspent."}}]}`))
	}))
	defer srv.Close()

	secretsPath := filepath.Join(t.TempDir(), "secrets.toml")
	require.NoError(t, os.WriteFile(secretsPath, []byte("[general]\nOPENAI_API_KEY = \"sk-from-file\"\n"), 0o600))

	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("FPA_SECRETS_FILE", secretsPath)
	t.Setenv("FPA_AI_BASE_URL", srv.URL)

	out, _, err := runFPA(t, nil, "analyze", "--sample", "--insights", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"insights": "Marketing overspent."`)
}

func TestSample_Stdout(t *testing.T) {
	out, _, err := runFPA(t, nil, "sample")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Department,Forecast,Actual\nSales,100000,95000\n"))
}

func TestSample_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.csv")
	_, _, err := runFPA(t, nil, "sample", "-o", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Finance,40000,45000")
}

func TestInit_CreatesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "project")
	out, _, err := runFPA(t, nil, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized fpa project")

	cfg, err := os.ReadFile(filepath.Join(dir, "fpa.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "model: gpt-4o-mini")
	assert.Contains(t, string(cfg), "file: secrets.toml")

	secretsData, err := os.ReadFile(filepath.Join(dir, "secrets.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(secretsData), "[general]")
	assert.Contains(t, string(secretsData), "OPENAI_API_KEY")

	sample, err := os.ReadFile(filepath.Join(dir, "sample.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(sample), "Engineering,120000,125000")

	gitignore, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(gitignore), "secrets.toml")
}

func TestInit_RefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	_, _, err := runFPA(t, nil, "init", dir)
	require.NoError(t, err)

	_, _, err = runFPA(t, nil, "init", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInit_ConfigIsLoadable(t *testing.T) {
	dir := t.TempDir()
	_, _, err := runFPA(t, nil, "init", dir)
	require.NoError(t, err)

	out, _, err := runFPA(t, nil, "--config", filepath.Join(dir, "fpa.yaml"), "analyze", filepath.Join(dir, "sample.csv"), "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "HR,30000,28000,-2000,-6.67")
}

func TestExplicitConfigMustExist(t *testing.T) {
	_, _, err := runFPA(t, nil, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "analyze", "--sample")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config")
}

func TestVersion(t *testing.T) {
	out, _, err := runFPA(t, nil, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "dev")
}
