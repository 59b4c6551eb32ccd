package server

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"careercoach/internal/ai"
	"careercoach/internal/config"
	"careercoach/internal/errors"
	"careercoach/internal/types"
	"careercoach/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterviewFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t, newFakeBackend(), nil)
	ts.backend.script(config.OpScoring, "Overall Score: 85/100")
	id := ts.interviewAt(t)
	base := "/interview/sessions/" + id

	var snap workflow.InterviewSnapshot
	ts.get(t, base).decode(t, &snap)
	require.Equal(t, workflow.StageInProgress, snap.Stage)
	require.Len(t, snap.Questions, ai.QuestionCount)
	assert.Equal(t, "resume.pdf", snap.FileName)

	for i := range ai.QuestionCount {
		resp := ts.postJSON(t, base+"/recording/start", map[string]string{"microphone": "granted"})
		require.Equal(t, http.StatusOK, resp.status, string(resp.body))

		resp = ts.postJSON(t, base+"/recording/transcript", map[string][]string{
			"results": {"My answer ", fmt.Sprintf("number %d", i+1)},
		})
		require.Equal(t, http.StatusOK, resp.status, string(resp.body))
		resp.decode(t, &snap)
		assert.Equal(t, fmt.Sprintf("My answer number %d", i+1), snap.LiveTranscript)

		resp = ts.postJSON(t, base+"/recording/stop", nil)
		require.Equal(t, http.StatusOK, resp.status, string(resp.body))
		resp.decode(t, &snap)
		assert.True(t, snap.CanAdvance)

		resp = ts.postJSON(t, base+"/next", nil)
		require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	}

	ts.get(t, base).decode(t, &snap)
	require.Equal(t, workflow.StageComplete, snap.Stage)
	require.NotNil(t, snap.Report)
	assert.Equal(t, "Overall Score: 85/100", snap.Report.Feedback)
	assert.Equal(t, "My answer number 5", snap.Report.Questions[4].Answer)
	assert.Contains(t, ts.backend.lastPrompt(config.OpScoring), "My answer number 3")
}

func TestWorkflowErrorsMapToStatuses(t *testing.T) {
	ts := newTestServer(t, newFakeBackend(), nil)
	id := ts.interviewAt(t)
	base := "/interview/sessions/" + id

	resp := ts.postJSON(t, base+"/next", nil)
	assert.Equal(t, http.StatusConflict, resp.status)
	assert.Equal(t, errors.ErrCodeAnswerRequired, resp.errorBody(t).Code)

	resp = ts.postJSON(t, base+"/recording/transcript", map[string][]string{"results": {"early"}})
	assert.Equal(t, http.StatusConflict, resp.status)
	assert.Equal(t, errors.ErrCodeInvalidTransition, resp.errorBody(t).Code)

	resp = ts.postJSON(t, base+"/recording/start", map[string]string{"microphone": "denied"})
	assert.Equal(t, http.StatusConflict, resp.status)
	body := resp.errorBody(t)
	assert.Equal(t, errors.ErrCodeMicrophoneUnavailable, body.Code)
	assert.Equal(t, "Error accessing microphone. Please check your permissions.", body.Message)

	require.Equal(t, http.StatusOK, ts.postJSON(t, base+"/recording/start", nil).status)
	resp = ts.postJSON(t, base+"/next", nil)
	assert.Equal(t, http.StatusConflict, resp.status)
	assert.Equal(t, errors.ErrCodeRecordingActive, resp.errorBody(t).Code)

	resp = ts.postJSON(t, base+"/analyze", nil)
	assert.Equal(t, http.StatusConflict, resp.status)
	assert.Equal(t, errors.ErrCodeInvalidTransition, resp.errorBody(t).Code)
}

func TestAnalyzeFailures(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(b *fakeBackend, c *Components)
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name: "service failure",
			setup: func(b *fakeBackend, c *Components) {
				b.fail(config.OpResumeAnalysis, fmt.Errorf("upstream 503"))
			},
			wantStatus: http.StatusBadGateway,
			wantCode:   errors.ErrCodeServiceFailure,
			wantMsg:    ai.FailureMessage(config.OpResumeAnalysis),
		},
		{
			name: "render failure",
			setup: func(b *fakeBackend, c *Components) {
				c.Renderer = &stubRenderer{err: errors.NewRenderError("Error analyzing resume. Please try again.", fmt.Errorf("bad xref"))}
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   errors.ErrCodeRenderFailure,
			wantMsg:    "Error analyzing resume. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			ts := newTestServer(t, backend, func(cfg *config.Config, c *Components) {
				tt.setup(backend, c)
			})
			id := ts.createInterview(t)
			base := "/interview/sessions/" + id
			require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/resume", "application/pdf", samplePDF, nil).status)

			resp := ts.postJSON(t, base+"/analyze", nil)
			assert.Equal(t, tt.wantStatus, resp.status)
			body := resp.errorBody(t)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMsg, body.Message)

			var snap workflow.InterviewSnapshot
			ts.get(t, base).decode(t, &snap)
			assert.Equal(t, workflow.StageResumeUploaded, snap.Stage)
			assert.Equal(t, tt.wantMsg, snap.Error)
		})
	}
}

func TestResumeUploadFormats(t *testing.T) {
	ts := newTestServer(t, newFakeBackend(), nil)
	id := ts.createInterview(t)
	path := "/interview/sessions/" + id + "/resume"

	multipartBody := func(field, name string, content []byte) (string, []byte) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, w.Close())
		return w.FormDataContentType(), buf.Bytes()
	}

	t.Run("multipart", func(t *testing.T) {
		ct, body := multipartBody("resume", "jane-doe.pdf", samplePDF)
		resp := ts.do(t, http.MethodPost, path, ct, body, nil)
		require.Equal(t, http.StatusOK, resp.status, string(resp.body))
		var snap workflow.InterviewSnapshot
		resp.decode(t, &snap)
		assert.Equal(t, "jane-doe.pdf", snap.FileName)
		assert.Equal(t, workflow.StageResumeUploaded, snap.Stage)
	})

	t.Run("raw pdf with file name", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, path+"?filename=cv.pdf", "application/pdf", samplePDF, nil)
		require.Equal(t, http.StatusOK, resp.status)
		var snap workflow.InterviewSnapshot
		resp.decode(t, &snap)
		assert.Equal(t, "cv.pdf", snap.FileName)
	})

	tests := []struct {
		name        string
		contentType string
		body        []byte
		wantCode    string
	}{
		{name: "wrong field", wantCode: errors.ErrCodeFileMissing},
		{name: "empty pdf body", contentType: "application/pdf", wantCode: errors.ErrCodeFileMissing},
		{name: "unsupported content type", contentType: "text/plain", body: []byte("hello"), wantCode: errors.ErrCodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, body := tt.contentType, tt.body
			if ct == "" {
				ct, body = multipartBody("file", "cv.pdf", samplePDF)
			}
			resp := ts.do(t, http.MethodPost, path, ct, body, nil)
			assert.Equal(t, http.StatusBadRequest, resp.status)
			assert.Equal(t, tt.wantCode, resp.errorBody(t).Code)
		})
	}
}

func TestRequestSizeLimit(t *testing.T) {
	ts := newTestServer(t, newFakeBackend(), nil)
	ts.MaxRequestSize = 64
	limited := httptest.NewServer(ts.Handler())
	t.Cleanup(limited.Close)
	ts.http = limited
	id := ts.createInterview(t)

	resp := ts.do(t, http.MethodPost, "/interview/sessions/"+id+"/resume", "application/pdf",
		bytes.Repeat([]byte("x"), 1024), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.status)
	assert.Contains(t, resp.errorBody(t).Message, "limit is 64 bytes")
}

func TestSessionLookup(t *testing.T) {
	ts := newTestServer(t, newFakeBackend(), nil)

	resp := ts.get(t, "/interview/sessions/does-not-exist")
	assert.Equal(t, http.StatusNotFound, resp.status)
	assert.Equal(t, errors.ErrCodeSessionNotFound, resp.errorBody(t).Code)

	resp = ts.postJSON(t, "/interview/sessions/does-not-exist/analyze", nil)
	assert.Equal(t, http.StatusNotFound, resp.status)

	t.Run("expired session is served from its snapshot", func(t *testing.T) {
		id := ts.createInterview(t)
		base := "/interview/sessions/" + id
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/resume", "application/pdf", samplePDF, nil).status)

		_, ok := ts.interviews.Delete(id)
		require.True(t, ok)

		var snap workflow.InterviewSnapshot
		resp := ts.get(t, base)
		require.Equal(t, http.StatusOK, resp.status)
		resp.decode(t, &snap)
		assert.Equal(t, workflow.StageResumeUploaded, snap.Stage)
		assert.Equal(t, "resume.pdf", snap.FileName)

		// actions need the live session
		assert.Equal(t, http.StatusNotFound, ts.postJSON(t, base+"/analyze", nil).status)
	})

	t.Run("delete discards live session and snapshot", func(t *testing.T) {
		id := ts.createInterview(t)
		base := "/interview/sessions/" + id
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/resume", "application/pdf", samplePDF, nil).status)

		assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, base, "", nil, nil).status)
		assert.Equal(t, http.StatusNotFound, ts.get(t, base).status)
		assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, base, "", nil, nil).status)
	})
}

func TestCancelWithoutPendingRequest(t *testing.T) {
	ts := newTestServer(t, newFakeBackend(), nil)
	id := ts.createInterview(t)

	resp := ts.postJSON(t, "/interview/sessions/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.status)
	var snap workflow.InterviewSnapshot
	resp.decode(t, &snap)
	assert.Equal(t, workflow.StageIdle, snap.Stage)
}

func TestQuestionnaireOverHTTP(t *testing.T) {
	ts := newTestServer(t, newFakeBackend(), nil)
	ts.backend.script(config.OpQuestionnaire, "You thrive in analytical roles.")

	var catalog struct {
		Questions []types.QuestionnaireQuestion `json:"questions"`
	}
	ts.get(t, "/questionnaire/questions").decode(t, &catalog)
	require.NotEmpty(t, catalog.Questions)

	resp := ts.postJSON(t, "/questionnaire/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.status)
	var created struct {
		ID    string                         `json:"id"`
		State workflow.QuestionnaireSnapshot `json:"state"`
	}
	resp.decode(t, &created)
	assert.Equal(t, len(catalog.Questions), created.State.Total)
	base := "/questionnaire/sessions/" + created.ID

	resp = ts.postJSON(t, base+"/answers", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, errors.ErrCodeInvalidRequest, resp.errorBody(t).Code)

	resp = ts.postJSON(t, base+"/answers", map[string]int{"option": 99})
	assert.Equal(t, http.StatusBadRequest, resp.status)

	var snap workflow.QuestionnaireSnapshot
	for i := range catalog.Questions {
		resp = ts.postJSON(t, base+"/answers", map[string]int{"option": i % len(catalog.Questions[i].Options)})
		require.Equal(t, http.StatusOK, resp.status, string(resp.body))
		resp.decode(t, &snap)
	}

	assert.Equal(t, workflow.QuestionnaireComplete, snap.Stage)
	require.NotNil(t, snap.Report)
	assert.Equal(t, "You thrive in analytical roles.", snap.Report.Analysis)
	assert.Len(t, snap.Report.Responses, len(catalog.Questions))
	assert.Contains(t, ts.backend.lastPrompt(config.OpQuestionnaire), catalog.Questions[1].Options[1])

	resp = ts.postJSON(t, base+"/answers", map[string]int{"option": 0})
	assert.Equal(t, http.StatusConflict, resp.status)

	ts.get(t, base).decode(t, &snap)
	assert.Equal(t, workflow.QuestionnaireComplete, snap.Stage)
}

func TestResumeReview(t *testing.T) {
	ts := newTestServer(t, newFakeBackend(), nil)
	ts.backend.script(config.OpResumeReview, "  ATS Score: 72/100\n")

	resp := ts.do(t, http.MethodPost, "/resume/review?filename=cv.pdf", "application/pdf", samplePDF, nil)
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))

	var review types.ResumeReviewOutput
	resp.decode(t, &review)
	assert.Equal(t, "cv.pdf", review.FileName)
	assert.Equal(t, "ATS Score: 72/100", review.Report)

	ts.backend.fail(config.OpResumeReview, fmt.Errorf("quota exceeded"))
	resp = ts.do(t, http.MethodPost, "/resume/review", "application/pdf", samplePDF, nil)
	assert.Equal(t, http.StatusBadGateway, resp.status)
	assert.Equal(t, errors.ErrCodeServiceFailure, resp.errorBody(t).Code)
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t, newFakeBackend(), func(cfg *config.Config, c *Components) {
		cfg.Server.APIKeys = []string{"secret-key-123456"}
	})

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
	}{
		{name: "missing key", wantStatus: http.StatusUnauthorized},
		{name: "wrong key", headers: map[string]string{"X-API-Key": "nope"}, wantStatus: http.StatusUnauthorized},
		{name: "header key", headers: map[string]string{"X-API-Key": "secret-key-123456"}, wantStatus: http.StatusCreated},
		{name: "bearer token", headers: map[string]string{"Authorization": "Bearer secret-key-123456"}, wantStatus: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/questionnaire/sessions", "application/json", []byte("{}"), tt.headers)
			assert.Equal(t, tt.wantStatus, resp.status)
		})
	}

	assert.Equal(t, http.StatusOK, ts.get(t, "/how-it-works").status)
	assert.Equal(t, http.StatusUnauthorized, ts.get(t, "/interview/sessions/any").status)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, newFakeBackend(), nil)

	resp := ts.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.status)
	var health map[string]any
	resp.decode(t, &health)
	assert.Equal(t, "healthy", health["status"])
	assert.Contains(t, health, "circuit_breakers")

	ts.backend.setModel(config.OpScoring, &ai.ModelInfo{Name: "gemini-2.0-flash", Error: "model not found"})
	resp = ts.get(t, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.status)
	resp.decode(t, &health)
	assert.Equal(t, "degraded", health["status"])
}

func TestStatsAndHowItWorks(t *testing.T) {
	ts := newTestServer(t, newFakeBackend(), nil)
	ts.createInterview(t)

	var stats struct {
		Sessions     map[string]any `json:"sessions"`
		RateLimiting map[string]any `json:"rate_limiting"`
	}
	ts.get(t, "/stats").decode(t, &stats)
	assert.EqualValues(t, 1, stats.Sessions["interview"])
	assert.Equal(t, false, stats.RateLimiting["enabled"])

	var page struct {
		Intro string                 `json:"intro"`
		Steps []types.HowItWorksStep `json:"steps"`
	}
	ts.get(t, "/how-it-works").decode(t, &page)
	assert.True(t, strings.HasPrefix(page.Intro, "Our AI-powered platform"))
	require.Len(t, page.Steps, 4)
	assert.Equal(t, "Upload Your Resume", page.Steps[0].Title)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.NewFileMissingError("x"), http.StatusBadRequest},
		{errors.NewValidationError(errors.ErrCodeInvalidFormat, "x", nil), http.StatusBadRequest},
		{errors.NewWorkflowError(errors.ErrCodeSessionNotFound, "x"), http.StatusNotFound},
		{errors.NewWorkflowError(errors.ErrCodeRequestInFlight, "x"), http.StatusConflict},
		{errors.NewWorkflowError(errors.ErrCodeRequestCanceled, "x"), http.StatusConflict},
		{errors.NewMicrophoneError("x", nil), http.StatusConflict},
		{errors.NewRenderError("x", nil), http.StatusUnprocessableEntity},
		{errors.NewServiceError("x", nil), http.StatusBadGateway},
		{errors.NewMalformedResponseError("x", nil), http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", &http.MaxBytesError{Limit: 10}), http.StatusRequestEntityTooLarge},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
