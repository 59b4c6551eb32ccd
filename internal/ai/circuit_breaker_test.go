package ai

import (
	"context"
	"fmt"
	"testing"
	"time"

	"careercoach/internal/config"

	"google.golang.org/genai"
)

func breakerConfig(minRequests uint32, threshold float64) *config.OperationAIConfig {
	return &config.OperationAIConfig{
		Provider: "gemini",
		Model:    "gemini-2.0-flash",
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      1,
			Interval:         60 * time.Second,
			Timeout:          60 * time.Second,
			MinRequests:      minRequests,
			FailureThreshold: threshold,
		},
	}
}

func TestCircuitBreakerPerOperation(t *testing.T) {
	questionsCB := NewAICircuitBreaker(config.OpQuestions, breakerConfig(3, 0.6), nil)
	scoringCB := NewAICircuitBreaker(config.OpScoring, breakerConfig(2, 0.7), nil)

	stats := questionsCB.GetStats()
	name, ok := stats["name"].(string)
	if !ok {
		t.Fatal("Circuit breaker name not found")
	}
	if name != "AI-questions" {
		t.Errorf("Expected circuit breaker name 'AI-questions', got '%s'", name)
	}
	if state := stats["state"]; state != "closed" {
		t.Errorf("Expected initial state 'closed', got '%v'", state)
	}

	if questionsCB == scoringCB {
		t.Error("Operations should not share a circuit breaker")
	}
	if !questionsCB.IsHealthy() || !scoringCB.IsHealthy() {
		t.Error("Circuit breakers should be healthy initially")
	}
}

func TestCircuitBreakerTripsOnFailures(t *testing.T) {
	cb := NewAICircuitBreaker(config.OpScoring, breakerConfig(2, 0.5), nil)
	failing := func() (*genai.GenerateContentResponse, error) {
		return nil, fmt.Errorf("upstream unavailable")
	}

	for range 2 {
		if _, err := cb.Execute(failing); err == nil {
			t.Fatal("Expected failure to propagate")
		}
	}

	if cb.IsHealthy() {
		t.Error("Circuit breaker should be open after repeated failures")
	}

	calls := 0
	_, err := cb.Execute(func() (*genai.GenerateContentResponse, error) {
		calls++
		return &genai.GenerateContentResponse{}, nil
	})
	if err == nil {
		t.Error("Open circuit breaker should reject calls")
	}
	if calls != 0 {
		t.Errorf("Open circuit breaker should not invoke the call, got %d calls", calls)
	}
}

func TestCircuitBreakerDisabled(t *testing.T) {
	cfg := breakerConfig(3, 0.6)
	cfg.CircuitBreaker.Enabled = false

	cb := NewAICircuitBreaker(config.OpQuestions, cfg, nil)
	if cb != nil {
		t.Fatal("Disabled circuit breaker should be nil")
	}

	// nil breakers pass calls through
	resp, err := cb.Execute(func() (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{}, nil
	})
	if err != nil || resp == nil {
		t.Errorf("Expected pass-through call, got resp=%v err=%v", resp, err)
	}
	if enabled := cb.GetStats()["enabled"]; enabled != false {
		t.Errorf("Expected enabled=false, got %v", enabled)
	}
	if !cb.IsHealthy() {
		t.Error("Disabled circuit breaker should report healthy")
	}

	model := NewModelCircuitBreaker(config.OpQuestions, cfg, nil)
	if !model.IsModelHealthy() {
		t.Error("Disabled model circuit breaker should report healthy")
	}
}

func TestCircuitBreakerIgnoresCanceledCalls(t *testing.T) {
	cb := NewAICircuitBreaker(config.OpScoring, breakerConfig(3, 0.6), nil)
	canceled := func() (*genai.GenerateContentResponse, error) {
		return nil, fmt.Errorf("generate content: %w", context.Canceled)
	}

	for range 5 {
		if _, err := cb.Execute(canceled); err == nil {
			t.Fatal("Expected cancellation to propagate")
		}
	}

	if !cb.IsHealthy() {
		t.Errorf("Canceled calls should not open the circuit breaker, state %v", cb.GetStats()["state"])
	}

	calls := 0
	if _, err := cb.Execute(func() (*genai.GenerateContentResponse, error) {
		calls++
		return &genai.GenerateContentResponse{}, nil
	}); err != nil {
		t.Errorf("Healthy call should pass, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected the call to run once, got %d", calls)
	}

	// deadlines still count against the upstream
	timedOut := NewAICircuitBreaker(config.OpScoring, breakerConfig(3, 0.6), nil)
	for range 3 {
		_, _ = timedOut.Execute(func() (*genai.GenerateContentResponse, error) {
			return nil, context.DeadlineExceeded
		})
	}
	if timedOut.IsHealthy() {
		t.Error("Timed out calls should still open the circuit breaker")
	}
}
