package ai

import (
	"context"
	"fmt"
	"sync"

	"careercoach/internal/config"
	"careercoach/internal/errors"
)

// FailureMessage returns the user-facing message for a failed call of op
func FailureMessage(op string) string {
	switch op {
	case config.OpResumeAnalysis, config.OpResumeReview:
		return "Error analyzing resume. Please try again."
	case config.OpQuestions:
		return questionsFailureMessage
	case config.OpScoring:
		return "Error analyzing interview. Please try again."
	case config.OpQuestionnaire:
		return "Error analyzing your answers. Please try again."
	default:
		return "Analysis failed. Please try again."
	}
}

// ProviderFactory builds the provider for one operation
type ProviderFactory func(cfg config.OperationAIConfig, operation string, prompts *PromptResolver, logger *errors.Logger) (Provider, error)

// NewProvider is the default factory; it switches on the configured provider name
func NewProvider(cfg config.OperationAIConfig, operation string, prompts *PromptResolver, logger *errors.Logger) (Provider, error) {
	logger.Debug("Initializing AI provider",
		"provider", cfg.Provider,
		"operation", operation,
		"model", cfg.Model,
		"timeout", *cfg.Timeout,
		"max_retries", *cfg.MaxRetries)

	switch cfg.Provider {
	case "gemini":
		return NewGeminiProvider(cfg, operation, prompts, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
	}
}

// unavailableProvider stands in for an operation whose provider could not be
// built, so every call fails visibly instead of returning empty text.
type unavailableProvider struct {
	operation string
	model     string
	cause     error
}

func (u *unavailableProvider) Analyze(ctx context.Context, prompt string, image *Image) (string, *TokenUsage, error) {
	return "", nil, errors.NewServiceError(FailureMessage(u.operation), u.cause).
		WithContext("operation", u.operation)
}

func (u *unavailableProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	return &ModelInfo{Name: u.model, Available: false, Error: u.cause.Error()}
}

func (u *unavailableProvider) GetCircuitBreakerStats() map[string]any {
	return map[string]any{"enabled": false, "overall_healthy": false}
}

func (u *unavailableProvider) Close() error { return nil }

// Services holds one provider per operation and can rebuild them with a
// rotated API key. Analyzers handed out look the provider up on every call.
type Services struct {
	mu        sync.RWMutex
	providers map[string]Provider
	configs   map[string]config.OperationAIConfig
	globalKey string
	prompts   *PromptResolver
	factory   ProviderFactory
	logger    *errors.Logger
}

// NewServices builds providers for every operation using the default factory
func NewServices(cfg *config.Config, logger *errors.Logger) *Services {
	return NewServicesWithFactory(cfg, NewPromptResolver(cfg), NewProvider, logger)
}

// NewServicesWithFactory builds providers with a custom factory
func NewServicesWithFactory(cfg *config.Config, prompts *PromptResolver, factory ProviderFactory, logger *errors.Logger) *Services {
	s := &Services{
		providers: make(map[string]Provider),
		configs:   make(map[string]config.OperationAIConfig),
		globalKey: cfg.AI.APIKey,
		prompts:   prompts,
		factory:   factory,
		logger:    logger,
	}
	for _, op := range config.Operations {
		opCfg := cfg.GetOperationConfig(op)
		s.configs[op] = opCfg
		s.providers[op] = s.build(opCfg, op)
	}
	return s
}

func (s *Services) build(cfg config.OperationAIConfig, op string) Provider {
	provider, err := s.factory(cfg, op, s.prompts, s.logger)
	if err != nil {
		s.logger.LogError(err, "AI provider unavailable; calls will fail until it is configured", "operation", op)
		return &unavailableProvider{operation: op, model: cfg.Model, cause: err}
	}
	return provider
}

// Prompts returns the resolver used to build prompts for every operation
func (s *Services) Prompts() *PromptResolver {
	return s.prompts
}

// Provider returns the current provider for op
func (s *Services) Provider(op string) Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if provider, ok := s.providers[op]; ok {
		return provider
	}
	return &unavailableProvider{operation: op, cause: fmt.Errorf("unknown operation %q", op)}
}

// Analyzer returns an Analyzer for op that follows provider rotation
func (s *Services) Analyzer(op string) Analyzer {
	return AnalyzerFunc(func(ctx context.Context, prompt string, image *Image) (string, *TokenUsage, error) {
		return s.Provider(op).Analyze(ctx, prompt, image)
	})
}

// RotateAPIKey rebuilds every provider whose key was inherited from the global key
func (s *Services) RotateAPIKey(apiKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.globalKey
	s.globalKey = apiKey
	rebuilt := 0
	for op, opCfg := range s.configs {
		if opCfg.APIKey != previous {
			continue
		}
		opCfg.APIKey = apiKey
		s.configs[op] = opCfg
		if old := s.providers[op]; old != nil {
			_ = old.Close()
		}
		s.providers[op] = s.build(opCfg, op)
		rebuilt++
	}
	s.logger.Info("AI providers rebuilt with rotated API key", "providers", rebuilt)
}

// ModelInfo probes the model of every operation
func (s *Services) ModelInfo(ctx context.Context) map[string]*ModelInfo {
	result := make(map[string]*ModelInfo, len(config.Operations))
	for _, op := range config.Operations {
		result[op] = s.Provider(op).GetModelInfo(ctx)
	}
	return result
}

// CircuitBreakerStats reports breaker state per operation
func (s *Services) CircuitBreakerStats() map[string]any {
	result := make(map[string]any, len(config.Operations))
	for _, op := range config.Operations {
		result[op] = s.Provider(op).GetCircuitBreakerStats()
	}
	return result
}

// Close closes every provider
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, provider := range s.providers {
		_ = provider.Close()
	}
	return nil
}
