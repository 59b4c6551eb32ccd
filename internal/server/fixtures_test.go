package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"careercoach/internal/ai"
	"careercoach/internal/config"
	"careercoach/internal/errors"
	"careercoach/internal/session"
	"careercoach/internal/types"
	"careercoach/internal/workflow"

	"github.com/stretchr/testify/require"
)

var testLogger = errors.NewLoggerWithWriter(io.Discard, slog.LevelDebug)

// fakeBackend answers each operation from a queue of scripted replies
type fakeBackend struct {
	mu        sync.Mutex
	responses map[string][]string
	failures  map[string]error
	prompts   map[string][]string
	models    map[string]*ai.ModelInfo
	rotated   []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		responses: make(map[string][]string),
		failures:  make(map[string]error),
		prompts:   make(map[string][]string),
		models: map[string]*ai.ModelInfo{
			config.OpResumeAnalysis: {Name: "gemini-2.0-flash", Available: true},
		},
	}
}

func (f *fakeBackend) script(op string, replies ...string) *fakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[op] = append(f.responses[op], replies...)
	return f
}

func (f *fakeBackend) fail(op string, err error) *fakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
	return f
}

func (f *fakeBackend) setModel(op string, info *ai.ModelInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models[op] = info
}

func (f *fakeBackend) Analyzer(op string) ai.Analyzer {
	return ai.AnalyzerFunc(func(ctx context.Context, prompt string, image *ai.Image) (string, *ai.TokenUsage, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.prompts[op] = append(f.prompts[op], prompt)
		if err := f.failures[op]; err != nil {
			return "", nil, err
		}
		queue := f.responses[op]
		if len(queue) == 0 {
			return "", nil, fmt.Errorf("no reply scripted for %s", op)
		}
		f.responses[op] = queue[1:]
		return queue[0], &ai.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}, nil
	})
}

func (f *fakeBackend) lastPrompt(op string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	prompts := f.prompts[op]
	if len(prompts) == 0 {
		return ""
	}
	return prompts[len(prompts)-1]
}

func (f *fakeBackend) Prompts() *ai.PromptResolver {
	return ai.NewPromptResolver(nil)
}

func (f *fakeBackend) ModelInfo(ctx context.Context) map[string]*ai.ModelInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.models)
}

func (f *fakeBackend) CircuitBreakerStats() map[string]any {
	return map[string]any{config.OpResumeAnalysis: map[string]any{"state": "closed"}}
}

func (f *fakeBackend) RotateAPIKey(apiKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rotated = append(f.rotated, apiKey)
}

type stubRenderer struct {
	err error
}

func (r *stubRenderer) Render(ctx context.Context, data []byte) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "aW1hZ2U=", nil
}

type testServer struct {
	*Server
	backend *fakeBackend
	http    *httptest.Server
}

func newTestServer(t *testing.T, backend *fakeBackend, mutate func(cfg *config.Config, c *Components)) *testServer {
	t.Helper()

	cfg := &config.Config{}
	cfg.Session.TTL = time.Hour
	cfg.Session.Backend = "memory"
	cfg.App.MaxFileSize = 1 << 20

	catalog, err := workflow.LoadCatalog("")
	require.NoError(t, err)

	components := Components{
		AI:        backend,
		Renderer:  &stubRenderer{},
		Catalog:   catalog,
		Snapshots: session.NewMemorySnapshots(0),
	}
	if mutate != nil {
		mutate(cfg, &components)
	}

	s := NewServer(cfg, ConfigFromApp(cfg, "test"), components, testLogger)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return &testServer{Server: s, backend: backend, http: ts}
}

type response struct {
	status int
	body   []byte
}

func (r response) decode(t *testing.T, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, into), string(r.body))
}

func (r response) errorBody(t *testing.T) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	r.decode(t, &e)
	return e
}

func (ts *testServer) do(t *testing.T, method, path, contentType string, body []byte, headers map[string]string) response {
	t.Helper()
	req, err := http.NewRequest(method, ts.http.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := ts.http.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, body: data}
}

func (ts *testServer) postJSON(t *testing.T, path string, body any) response {
	t.Helper()
	data := []byte("{}")
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		require.NoError(t, err)
	}
	return ts.do(t, http.MethodPost, path, "application/json", data, nil)
}

func (ts *testServer) get(t *testing.T, path string) response {
	t.Helper()
	return ts.do(t, http.MethodGet, path, "", nil, nil)
}

var samplePDF = []byte("%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\n%%EOF")

func questionsJSON(t *testing.T) string {
	t.Helper()
	set := types.QuestionSet{}
	for i := range ai.QuestionCount {
		set.Questions = append(set.Questions, types.InterviewQuestion{
			ID:       i + 1,
			Type:     types.QuestionTypeTechnical,
			Question: fmt.Sprintf("Question %d?", i+1),
			Category: "go",
		})
	}
	data, err := json.Marshal(set)
	require.NoError(t, err)
	return string(data)
}

// createInterview creates a session and returns its id
func (ts *testServer) createInterview(t *testing.T) string {
	t.Helper()
	resp := ts.postJSON(t, "/interview/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))

	var created struct {
		ID    string                     `json:"id"`
		State workflow.InterviewSnapshot `json:"state"`
	}
	resp.decode(t, &created)
	require.NotEmpty(t, created.ID)
	return created.ID
}

// interviewAt drives a fresh session to the first question
func (ts *testServer) interviewAt(t *testing.T) string {
	t.Helper()
	ts.backend.script(config.OpResumeAnalysis, "Seasoned Go developer").
		script(config.OpQuestions, questionsJSON(t))

	id := ts.createInterview(t)
	base := "/interview/sessions/" + id
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/resume", "application/pdf", samplePDF, nil).status)
	require.Equal(t, http.StatusOK, ts.postJSON(t, base+"/analyze", nil).status)
	require.Equal(t, http.StatusOK, ts.postJSON(t, base+"/start", nil).status)
	return id
}
