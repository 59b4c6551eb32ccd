package ai

import (
	"context"
)

// Image is an inline image attached to an analysis request
type Image struct {
	Data     string // base64, no data: prefix
	MIMEType string
}

// PNGImage wraps base64 PNG data as an Image
func PNGImage(base64Data string) *Image {
	return &Image{Data: base64Data, MIMEType: "image/png"}
}

// TokenUsage reports model token consumption for one call
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// Analyzer sends a prompt, optionally with an image, and returns the model's text.
// Implementations make a single attempt unless configured otherwise.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string, image *Image) (string, *TokenUsage, error)
}

// Provider is an Analyzer bound to one operation and model
type Provider interface {
	Analyzer
	GetModelInfo(ctx context.Context) *ModelInfo
	GetCircuitBreakerStats() map[string]any
	Close() error
}

// ModelInfo describes the availability of the configured model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

// AnalyzerFunc adapts a function to the Analyzer interface
type AnalyzerFunc func(ctx context.Context, prompt string, image *Image) (string, *TokenUsage, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, prompt string, image *Image) (string, *TokenUsage, error) {
	return f(ctx, prompt, image)
}
