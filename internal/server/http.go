package server

import (
	"context"
	"time"

	"careercoach/internal/ai"
	"careercoach/internal/config"
	"careercoach/internal/errors"
	"careercoach/internal/observability"
	"careercoach/internal/render"
	"careercoach/internal/session"
	"careercoach/internal/workflow"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// AIBackend is what the server needs from the AI layer. *ai.Services
// satisfies it.
type AIBackend interface {
	workflow.AnalyzerSource
	Prompts() *ai.PromptResolver
	ModelInfo(ctx context.Context) map[string]*ai.ModelInfo
	CircuitBreakerStats() map[string]any
}

// Components are the long-lived collaborators shared by all sessions
type Components struct {
	AI        AIBackend
	Renderer  render.Renderer
	Catalog   *workflow.Catalog
	Snapshots session.Snapshots
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	AppConfig *config.Config
	TLSConfig config.TLSConfig

	// API Authentication
	APIKeys map[string]bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	MaxRequestSize int64

	RateLimit   *config.RateLimitConfig
	RateLimiter *LimiterManager

	Logger *errors.Logger

	components     Components
	metrics        *observability.Metrics
	interviews     *session.Registry[*interviewSession]
	questionnaires *session.Registry[*workflow.Questionnaire]

	promptWatcher     *PromptWatcher
	credentialWatcher *CredentialWatcher
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	TLSConfig      config.TLSConfig
	APIKeys        []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig
}

// ConfigFromApp derives the server settings from the application config.
// The request limit leaves room for multipart framing around the largest resume.
func ConfigFromApp(cfg *config.Config, version string) ServerConfig {
	maxRequest := int64(0)
	if cfg.App.MaxFileSize > 0 {
		maxRequest = cfg.App.MaxFileSize + 1<<20
	}
	return ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		TLSConfig:      cfg.Server.TLS,
		APIKeys:        cfg.Server.APIKeys,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: maxRequest,
		RateLimit:      &cfg.Server.RateLimit,
	}
}

// NewServer creates a Server. Session registries start their janitors here.
func NewServer(appCfg *config.Config, cfg ServerConfig, components Components, logger *errors.Logger) *Server {
	apiKeyMap := make(map[string]bool)
	for _, key := range cfg.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	var rateLimiter *LimiterManager
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.Window,
			cfg.RateLimit.BurstCapacity,
			logger,
		)
	}

	s := &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		TLSConfig:      cfg.TLSConfig,
		APIKeys:        apiKeyMap,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		Logger:         logger,
		components:     components,
		metrics:        &observability.Metrics{},
	}

	sessionCfg := appCfg.Session
	s.interviews = session.NewRegistry(sessionCfg.TTL, sessionCfg.CleanupInterval,
		func(id string, is *interviewSession) {
			is.interview.Cancel()
			s.metrics.RecordSessionEnded(context.Background(), session.KindInterview)
		}, logger)
	s.questionnaires = session.NewRegistry(sessionCfg.TTL, sessionCfg.CleanupInterval,
		func(id string, q *workflow.Questionnaire) {
			q.Cancel()
			s.metrics.RecordSessionEnded(context.Background(), session.KindQuestionnaire)
		}, logger)

	return s
}

// Close stops session janitors and the rate limiter
func (s *Server) Close() {
	s.interviews.Close()
	s.questionnaires.Close()
	s.cleanupRateLimiter()
	if s.components.Snapshots != nil {
		if err := s.components.Snapshots.Close(); err != nil {
			s.Logger.LogError(err, "Failed to close snapshot store")
		}
	}
}
