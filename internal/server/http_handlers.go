package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"time"

	"careercoach/internal/content"
	"careercoach/internal/errors"
)

const defaultHealthCheckTimeout = 5 * time.Second

// healthHandler reports model availability, circuit breakers and session counts
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	timeout := s.AppConfig.Observability.HealthCheck.AIModelCheckTimeout
	if timeout <= 0 {
		timeout = s.AppConfig.Observability.HealthCheck.Timeout
	}
	if timeout <= 0 {
		timeout = defaultHealthCheckTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	models := s.components.AI.ModelInfo(ctx)
	healthy := true
	for _, info := range models {
		if info == nil || !info.Available {
			healthy = false
			break
		}
	}

	response := map[string]any{
		"status":           "healthy",
		"service":          "careercoach",
		"version":          s.Version,
		"ai_models":        models,
		"circuit_breakers": s.components.AI.CircuitBreakerStats(),
		"sessions": map[string]int{
			"interview":     s.interviews.Len(),
			"questionnaire": s.questionnaires.Len(),
		},
	}
	if watchers := s.watcherStatus(); len(watchers) > 0 {
		response["watchers"] = watchers
	}

	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

func (s *Server) watcherStatus() map[string]any {
	watchers := make(map[string]any)
	if s.promptWatcher != nil {
		watchers["prompts"] = map[string]any{
			"running":       s.promptWatcher.IsRunning(),
			"watched_files": s.promptWatcher.GetWatchedFiles(),
		}
	}
	if s.credentialWatcher != nil {
		watchers["credentials"] = s.credentialWatcher.Status()
	}
	return watchers
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "careercoach",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
		},
		"sessions": map[string]any{
			"interview":     s.interviews.Len(),
			"questionnaire": s.questionnaires.Len(),
			"ttl":           s.AppConfig.Session.TTL.String(),
			"backend":       s.AppConfig.Session.Backend,
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{"enabled": false}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	if s.components.Catalog != nil {
		response["questionnaire"] = map[string]any{
			"catalog":   catalogSource(s.components.Catalog.Path()),
			"questions": len(s.components.Catalog.Questions()),
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func catalogSource(path string) string {
	if path == "" {
		return "built-in"
	}
	return path
}

func (s *Server) howItWorksHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"intro": content.HowItWorksIntro,
		"steps": content.HowItWorks(),
	})
}

func (s *Server) questionnaireQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"questions": s.components.Catalog.Questions(),
	})
}

// parseJSONRequest decodes the JSON request body into v
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "Content-Type must be application/json", nil)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("Failed to close request body: %v", err)
		}
	}()

	if err := json.Unmarshal(body, v); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "Request body is not valid JSON", err)
	}
	return nil
}

// statusFor maps an error code to the HTTP status returned for it
func statusFor(err error) int {
	var maxBytesErr *http.MaxBytesError
	if stderrors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge
	}

	switch errors.CodeOf(err) {
	case errors.ErrCodeFileMissing, errors.ErrCodeInvalidRequest, errors.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case errors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidTransition, errors.ErrCodeAnswerRequired, errors.ErrCodeRecordingActive,
		errors.ErrCodeRequestInFlight, errors.ErrCodeRequestCanceled, errors.ErrCodeMicrophoneUnavailable:
		return http.StatusConflict
	case errors.ErrCodeRenderFailure:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeServiceFailure, errors.ErrCodeMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError writes err using its code and user-facing message
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	var maxBytesErr *http.MaxBytesError
	if stderrors.As(err, &maxBytesErr) {
		writeErrorResponse(w, "Request too large",
			fmt.Sprintf("request body too large (limit is %d bytes)", maxBytesErr.Limit), status)
		return
	}

	if status >= http.StatusInternalServerError {
		s.Logger.LogError(err, "Request failed", "endpoint", r.URL.Path, "status", status)
	} else {
		s.Logger.Debug("Request rejected", "endpoint", r.URL.Path, "status", status, "code", errors.CodeOf(err))
	}

	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: errors.UserMessage(err, "Something went wrong. Please try again."),
		Code:    errors.CodeOf(err),
	}
	writeJSON(w, status, response)
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: error, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
