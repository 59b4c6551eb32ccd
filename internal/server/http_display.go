package server

import (
	"fmt"

	"careercoach/internal/utils"
)

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo() {
	s.displayEndpoints()
	s.displayAuthInfo()
	s.displayRequestLimitInfo()
	s.displayRateLimitInfo()
	s.displaySessionInfo()
}

func (s *Server) displayEndpoints() {
	fmt.Println("Available endpoints:")
	fmt.Println("  GET    /health                                   - Health check")
	fmt.Println("  GET    /stats                                    - Server statistics")
	fmt.Println("  GET    /how-it-works                             - Product walkthrough")
	fmt.Println("  POST   /interview/sessions                       - Start a mock interview session")
	fmt.Println("  GET    /interview/sessions/{id}                  - Interview state")
	fmt.Println("  DELETE /interview/sessions/{id}                  - Discard an interview")
	fmt.Println("  POST   /interview/sessions/{id}/resume           - Upload resume PDF")
	fmt.Println("  POST   /interview/sessions/{id}/analyze          - Analyze uploaded resume")
	fmt.Println("  POST   /interview/sessions/{id}/start            - Generate questions")
	fmt.Println("  POST   /interview/sessions/{id}/recording/start  - Start recording an answer")
	fmt.Println("  POST   /interview/sessions/{id}/recording/transcript - Push recognizer results")
	fmt.Println("  POST   /interview/sessions/{id}/recording/stop   - Commit the answer")
	fmt.Println("  POST   /interview/sessions/{id}/next             - Next question or score")
	fmt.Println("  POST   /interview/sessions/{id}/cancel           - Abort the pending request")
	fmt.Println("  GET    /questionnaire/questions                  - Career questionnaire")
	fmt.Println("  POST   /questionnaire/sessions                   - Start a questionnaire")
	fmt.Println("  GET    /questionnaire/sessions/{id}              - Questionnaire state")
	fmt.Println("  POST   /questionnaire/sessions/{id}/answers      - Answer the current question")
	fmt.Println("  POST   /resume/review                            - One-shot ATS review")
}

func (s *Server) displayAuthInfo() {
	if len(s.APIKeys) > 0 {
		fmt.Printf("API authentication: ENABLED (%d keys configured)\n", len(s.APIKeys))
		fmt.Println("Include 'X-API-Key: <your-key>' header in requests to session and review endpoints")
	} else {
		fmt.Println("API authentication: DISABLED (no API keys configured)")
		fmt.Println("WARNING: API endpoints are publicly accessible!")
	}
}

func (s *Server) displayRequestLimitInfo() {
	if s.MaxRequestSize > 0 {
		fmt.Printf("Request size limit: %s\n", utils.FormatFileSize(s.MaxRequestSize))
	} else {
		fmt.Println("Request size limit: DISABLED")
		fmt.Println("WARNING: No request size limits configured!")
	}
}

func (s *Server) displayRateLimitInfo() {
	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Printf("Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
		if s.RateLimit.ByAPIKey {
			fmt.Println("  - Per API key rate limiting enabled")
		}
		if s.RateLimit.ByIP {
			fmt.Println("  - Per IP address rate limiting enabled")
		}
	} else {
		fmt.Println("Rate limiting: DISABLED")
		fmt.Println("WARNING: No rate limiting configured!")
	}
}

func (s *Server) displaySessionInfo() {
	cfg := s.AppConfig.Session
	fmt.Printf("Sessions: idle TTL %s, snapshots in %s\n", cfg.TTL, cfg.Backend)
	if s.promptWatcher != nil {
		fmt.Printf("Prompt reload: watching %d files\n", len(s.promptWatcher.GetWatchedFiles()))
	}
	if s.credentialWatcher != nil {
		fmt.Println("Credential reload: polling Vault for a rotated Gemini key")
	}
}
