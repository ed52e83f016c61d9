package insights

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/fpa/internal/config"
	"github.com/cleared-dev/fpa/internal/ingest"
	"github.com/cleared-dev/fpa/internal/metrics"
	"github.com/cleared-dev/fpa/internal/model"
	"github.com/cleared-dev/fpa/internal/variance"
)

func sample(t *testing.T) *model.Analysis {
	t.Helper()
	a, err := variance.NewCalculator("").Calculate(ingest.Sample())
	require.NoError(t, err)
	return a
}

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.Default().AI
	cfg.BaseURL = srv.URL + "/v1"
	cfg.Timeout = 2 * time.Second
	cfg.RequestsPerMinute = 0
	c := NewClient(cfg, "sk-test")
	c.backoff = time.Millisecond
	return c
}

func reply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": RoleAssistant, "content": content}},
		},
	})
}

func TestBuildPrompt(t *testing.T) {
	msgs, err := BuildPrompt(sample(t))
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, "You are an FP&A analyst.", msgs[0].Content)

	user := msgs[1].Content
	assert.Equal(t, RoleUser, msgs[1].Role)
	assert.True(t, strings.HasPrefix(user, Instruction))
	assert.Contains(t, user, "suggest one action for next quarter")
	assert.Contains(t, user, "Data:\nDepartment,Forecast,Actual,Variance,Variance %\n")
	assert.Contains(t, user, "Marketing,50000,60000,10000,20.00")
}

func TestBuildPrompt_NoData(t *testing.T) {
	_, err := BuildPrompt(nil)
	assert.Error(t, err)
}

func TestComplete_Success(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Len(t, req.Messages, 2)

		reply(w, "**Marketing** overspent.")
	})

	got, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "**Marketing** overspent.", got, "reply is returned verbatim")
}

func TestComplete_RetriesOnceOnServerError(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusBadGateway)
			return
		}
		reply(w, "ok")
	})

	got, err := c.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestComplete_GivesUpAfterOneRetry(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(2), calls.Load())
}

func TestComplete_NoRetryOnUnauthorized(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	})

	_, err := c.Complete(context.Background(), nil)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "Incorrect API key provided")
	assert.Equal(t, int32(1), calls.Load())
}

func TestComplete_NoRetryOnBadRequest(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.Complete(context.Background(), nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestComplete_EmptyResponse(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := c.Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestComplete_TimeoutIsRetriedThenFails(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	c.timeout = 50 * time.Millisecond

	_, err := c.Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, int32(2), calls.Load())
}

func TestComplete_CanceledContext(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		reply(w, "unused")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Complete(ctx, nil)
	assert.Error(t, err)
}

type fakeCompleter struct {
	text string
	err  error
	got  []Message
}

func (f *fakeCompleter) Complete(_ context.Context, msgs []Message) (string, error) {
	f.got = msgs
	return f.text, f.err
}

func TestAnalyst_Generate(t *testing.T) {
	fc := &fakeCompleter{text: "Engineering is 4.17% over."}
	m := metrics.New()
	a := NewAnalyst(fc, nil, m)

	got, err := a.Generate(context.Background(), sample(t))
	require.NoError(t, err)
	assert.Equal(t, "Engineering is 4.17% over.", got)
	require.Len(t, fc.got, 2)
	assert.Contains(t, fc.got[1].Content, "Engineering,120000,125000,5000,4.17")
}

func TestAnalyst_GenerateError(t *testing.T) {
	fc := &fakeCompleter{err: ErrUnauthorized}
	a := NewAnalyst(fc, nil, nil)

	_, err := a.Generate(context.Background(), sample(t))
	assert.ErrorIs(t, err, ErrUnauthorized)
}
