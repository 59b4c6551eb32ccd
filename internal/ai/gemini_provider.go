package ai

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"strings"
	"time"

	"careercoach/internal/config"
	"careercoach/internal/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

const defaultModelCheckTimeout = 10 * time.Second

// GeminiProvider implements Provider for Google Gemini
type GeminiProvider struct {
	client            *genai.Client
	config            config.OperationAIConfig
	operation         string
	prompts           *PromptResolver
	circuitBreaker    *AICircuitBreaker
	modelBreaker      *ModelCircuitBreaker
	modelCheckTimeout time.Duration
	logger            *errors.Logger
}

var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a provider for one operation. A missing API key
// is a MISSING_API_KEY configuration error.
func NewGeminiProvider(cfg config.OperationAIConfig, operation string, prompts *PromptResolver, logger *errors.Logger) (*GeminiProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey,
			"Gemini API key is not configured (set CAREERCOACH_AI_APIKEY, GEMINI_API_KEY or a Vault secret)", nil)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.NewServiceError(FailureMessage(operation), fmt.Errorf("create Gemini client: %w", err))
	}

	return &GeminiProvider{
		client:            client,
		config:            cfg,
		operation:         operation,
		prompts:           prompts,
		circuitBreaker:    NewAICircuitBreaker(operation, &cfg, logger),
		modelBreaker:      NewModelCircuitBreaker(operation, &cfg, logger),
		modelCheckTimeout: defaultModelCheckTimeout,
		logger:            logger,
	}, nil
}

// Analyze sends prompt and the optional image as a single user turn.
// The question generation operation requests a JSON response.
func (g *GeminiProvider) Analyze(ctx context.Context, prompt string, image *Image) (string, *TokenUsage, error) {
	tracer := otel.Tracer("careercoach.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini."+g.operation)
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.String("ai.operation", g.operation),
		attribute.Float64("ai.temperature", float64(*g.config.Temperature)),
		attribute.Bool("input.has_image", image != nil),
		attribute.Int("input.prompt_length", len(prompt)),
	)

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if image != nil {
		data, err := base64.StdEncoding.DecodeString(image.Data)
		if err != nil {
			span.RecordError(err)
			return "", nil, errors.NewServiceError(FailureMessage(g.operation), fmt.Errorf("decode image: %w", err))
		}
		parts = append(parts, genai.NewPartFromBytes(data, image.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	genConfig := g.generateConfig()

	callCtx, cancel := context.WithTimeout(ctx, *g.config.Timeout)
	defer cancel()

	result, err := g.circuitBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.executeWithRetry(callCtx, func() (*genai.GenerateContentResponse, error) {
			return g.client.Models.GenerateContent(callCtx, g.config.Model, contents, genConfig)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return "", nil, errors.NewServiceError(FailureMessage(g.operation), err).
			WithContext("operation", g.operation).
			WithContext("model", g.config.Model)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		span.SetAttributes(attribute.Bool("success", false))
		return "", nil, errors.NewMalformedResponseError(FailureMessage(g.operation), fmt.Errorf("model returned an empty response")).
			WithContext("operation", g.operation)
	}

	usage := extractTokenUsage(result)
	if usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", usage.InputTokens),
			attribute.Int64("ai.tokens.output", usage.OutputTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
	}
	span.SetAttributes(attribute.Bool("success", true), attribute.Int("output.length", len(text)))

	return text, usage, nil
}

func (g *GeminiProvider) generateConfig() *genai.GenerateContentConfig {
	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(*g.config.Temperature),
	}

	if *g.config.UseSystemPrompts {
		if system := g.prompts.System(g.operation); system != "" {
			genConfig.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
		}
	}

	if g.operation == config.OpQuestions {
		genConfig.ResponseMIMEType = "application/json"
		genConfig.ResponseSchema = questionSetSchema()
	}
	return genConfig
}

func questionSetSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"questions": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"id":       {Type: genai.TypeInteger},
						"type":     {Type: genai.TypeString, Enum: []string{"technical", "behavioral"}},
						"question": {Type: genai.TypeString},
						"category": {Type: genai.TypeString},
					},
					Required: []string{"id", "type", "question", "category"},
				},
			},
		},
		Required: []string{"questions"},
	}
}

// executeWithRetry makes one attempt plus up to maxRetries retries on transient errors
func (g *GeminiProvider) executeWithRetry(ctx context.Context, fn func() (*genai.GenerateContentResponse, error)) (*genai.GenerateContentResponse, error) {
	maxRetries := *g.config.MaxRetries
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("Retrying AI operation",
				"operation", g.operation,
				"attempt", attempt,
				"max_retries", maxRetries,
				"error", lastErr.Error())

			select {
			case <-time.After(backoffDelay(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryableError(err) || ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

// backoffDelay is exponential with up to 10% jitter, capped at 30s
func backoffDelay(attempt int) time.Duration {
	baseDelay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	jitter := time.Duration(0)
	if jitterMax := int64(float64(baseDelay) * 0.1); jitterMax > 0 {
		if n, err := rand.Int(rand.Reader, big.NewInt(jitterMax)); err == nil {
			jitter = time.Duration(n.Int64())
		}
	}
	return min(baseDelay+jitter, 30*time.Second)
}

func isRetryableError(err error) bool {
	if err == nil || stderrors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}

	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	return false
}

// GetModelInfo probes the configured model for /health
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	info := &ModelInfo{Name: g.config.Model}

	checkCtx, cancel := context.WithTimeout(ctx, g.modelCheckTimeout)
	defer cancel()

	model, err := g.modelBreaker.ExecuteModel(func() (*genai.Model, error) {
		return g.client.Models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		info.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"model", g.config.Model,
			"operation", g.operation,
			"error", err.Error())
		return info
	}

	info.Available = true
	info.DisplayName = model.DisplayName
	info.Version = model.Version
	return info
}

// SetModelCheckTimeout overrides the timeout used by GetModelInfo
func (g *GeminiProvider) SetModelCheckTimeout(timeout time.Duration) {
	if timeout > 0 {
		g.modelCheckTimeout = timeout
	}
}

func (g *GeminiProvider) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"ai_operations":    g.circuitBreaker.GetStats(),
		"model_operations": g.modelBreaker.GetModelStats(),
		"overall_healthy":  g.circuitBreaker.IsHealthy() && g.modelBreaker.IsModelHealthy(),
	}
}

// Close is a no-op; the genai client holds no resources between calls
func (g *GeminiProvider) Close() error {
	return nil
}

func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}
	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}
