package server

import (
	"crypto/subtle"
	"net/http"
)

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	rateLimit := s.rateLimitMiddleware()
	sizeLimit := s.requestSizeLimitMiddleware()
	protect := func(h http.HandlerFunc) http.HandlerFunc {
		return rateLimit(s.authMiddleware(sizeLimit(h)))
	}

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /stats", s.statsHandler)
	mux.HandleFunc("GET /how-it-works", s.howItWorksHandler)

	mux.HandleFunc("POST /interview/sessions", protect(s.createInterviewHandler))
	mux.HandleFunc("GET /interview/sessions/{id}", s.authMiddleware(s.getInterviewHandler))
	mux.HandleFunc("DELETE /interview/sessions/{id}", protect(s.deleteInterviewHandler))
	mux.HandleFunc("POST /interview/sessions/{id}/resume", protect(s.uploadResumeHandler))
	mux.HandleFunc("POST /interview/sessions/{id}/analyze", protect(s.analyzeHandler))
	mux.HandleFunc("POST /interview/sessions/{id}/start", protect(s.startInterviewHandler))
	mux.HandleFunc("POST /interview/sessions/{id}/recording/start", protect(s.startRecordingHandler))
	mux.HandleFunc("POST /interview/sessions/{id}/recording/transcript", protect(s.transcriptHandler))
	mux.HandleFunc("POST /interview/sessions/{id}/recording/stop", protect(s.stopRecordingHandler))
	mux.HandleFunc("POST /interview/sessions/{id}/next", protect(s.nextHandler))
	mux.HandleFunc("POST /interview/sessions/{id}/cancel", protect(s.cancelInterviewHandler))

	mux.HandleFunc("GET /questionnaire/questions", s.questionnaireQuestionsHandler)
	mux.HandleFunc("POST /questionnaire/sessions", protect(s.createQuestionnaireHandler))
	mux.HandleFunc("GET /questionnaire/sessions/{id}", s.authMiddleware(s.getQuestionnaireHandler))
	mux.HandleFunc("POST /questionnaire/sessions/{id}/answers", protect(s.answerHandler))

	mux.HandleFunc("POST /resume/review", protect(s.reviewHandler))

	return mux
}

// authMiddleware provides API key authentication
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.APIKeys) == 0 {
			next(w, r)
			return
		}

		apiKey := requestAPIKey(r)
		if apiKey == "" {
			s.Logger.Info("Authentication failed: missing API key",
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r))
			writeErrorResponse(w, "Missing API key", "X-API-Key header or Authorization Bearer token required", http.StatusUnauthorized)
			return
		}

		if !s.validAPIKey(apiKey) {
			s.Logger.Info("Authentication failed: invalid API key",
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r),
				"api_key_prefix", maskAPIKey(apiKey))
			writeErrorResponse(w, "Invalid API key", "Unauthorized access", http.StatusUnauthorized)
			return
		}

		s.Logger.Debug("API authentication successful",
			"endpoint", r.URL.Path,
			"api_key_prefix", maskAPIKey(apiKey))

		next(w, r)
	}
}

// validAPIKey compares apiKey against every configured key in constant time
func (s *Server) validAPIKey(apiKey string) bool {
	valid := 0
	for key := range s.APIKeys {
		valid |= subtle.ConstantTimeCompare([]byte(apiKey), []byte(key))
	}
	return valid == 1
}

// requestSizeLimitMiddleware limits the size of incoming requests
func (s *Server) requestSizeLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if s.MaxRequestSize > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
			}
			next(w, r)
		}
	}
}

// maskAPIKey shows only the first 8 characters of a key
func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:8] + "****"
}
