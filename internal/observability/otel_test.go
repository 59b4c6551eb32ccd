package observability

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"

	"careercoach/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T, cfg *config.Config) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewMetrics(provider.Meter("test"), cfg)
	require.NoError(t, err)
	return m, reader
}

// sumOf returns the total of an Int64 sum metric, or -1 when it was not exported
func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return -1
}

func TestTrackAIOperationRecordsRequestsAndErrors(t *testing.T) {
	m, reader := newTestMetrics(t, nil)
	ctx := context.Background()

	err := m.TrackAIOperationWithTokens(ctx, config.OpQuestions, func(context.Context) *AIOperationResult {
		return &AIOperationResult{TokenUsage: &TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}}
	})
	require.NoError(t, err)

	failure := fmt.Errorf("upstream unavailable")
	err = m.TrackAIOperationWithTokens(ctx, config.OpScoring, func(context.Context) *AIOperationResult {
		return &AIOperationResult{Error: failure}
	})
	assert.ErrorIs(t, err, failure)

	assert.Equal(t, int64(2), sumOf(t, reader, "careercoach_ai_requests_total"))
	assert.Equal(t, int64(1), sumOf(t, reader, "careercoach_ai_errors_total"))
}

func TestBusinessMetricsRespectConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Observability.CustomMetrics.BusinessMetrics.Enabled = false
	cfg.Observability.CustomMetrics.Infrastructure.TrackRateLimits = true

	m, reader := newTestMetrics(t, cfg)
	ctx := context.Background()

	m.RecordBusinessMetric(ctx, MetricResumeAnalyzed, true)
	m.RecordBusinessMetric(ctx, MetricRateLimitHit, false)

	assert.Equal(t, int64(-1), sumOf(t, reader, "careercoach_resumes_analyzed_total"))
	assert.Equal(t, int64(1), sumOf(t, reader, "careercoach_rate_limit_hits_total"))
}

func TestSessionMetrics(t *testing.T) {
	m, reader := newTestMetrics(t, nil)
	ctx := context.Background()

	m.RecordSessionCreated(ctx, "interview")
	m.RecordSessionCreated(ctx, "questionnaire")
	m.RecordSessionEnded(ctx, "interview")

	assert.Equal(t, int64(2), sumOf(t, reader, "careercoach_sessions_created_total"))
	assert.Equal(t, int64(1), sumOf(t, reader, "careercoach_sessions_active"))
}

func TestDisabledManagerIsNoop(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{ServiceName: "careercoach"}, nil)
	require.NoError(t, err)

	metrics := om.GetMetrics()
	called := false
	err = metrics.TrackAIOperationWithTokens(context.Background(), config.OpResumeAnalysis, func(context.Context) *AIOperationResult {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)

	metrics.RecordBusinessMetric(context.Background(), MetricInterviewScored, true)
	metrics.RecordSessionCreated(context.Background(), "interview")
	assert.NoError(t, om.Shutdown(context.Background()))
}

func TestGetObservabilityConfigDefaultsVersion(t *testing.T) {
	cfg := &config.Config{}
	cfg.Observability.ServiceName = "careercoach"
	cfg.Observability.SampleRate = 0.5

	got := GetObservabilityConfig(cfg, "1.2.3")
	assert.Equal(t, "1.2.3", got.ServiceVersion)
	assert.Equal(t, 0.5, got.SampleRate)

	fallback := GetObservabilityConfig(nil, "dev")
	assert.Equal(t, "careercoach", fallback.ServiceName)
	assert.Equal(t, "/metrics", fallback.Prometheus.Endpoint)
}

func TestMetricsEndpointServesRecordedMetrics(t *testing.T) {
	endpoint, err := newMetricsEndpoint(PrometheusConfig{Enabled: true, Endpoint: "/scrape"})
	require.NoError(t, err)
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(endpoint.reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := NewMetrics(provider.Meter("test"), nil)
	require.NoError(t, err)
	metrics.RecordSessionCreated(context.Background(), "questionnaire")

	assert.Empty(t, endpoint.Addr())
	require.NoError(t, endpoint.listen("0"))
	t.Cleanup(func() { _ = endpoint.Shutdown(context.Background()) })

	_, port, err := net.SplitHostPort(endpoint.Addr())
	require.NoError(t, err)
	base := "http://127.0.0.1:" + port

	resp, err := http.Get(base + "/scrape")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "careercoach_sessions_created_total")
	assert.Contains(t, string(body), `kind="questionnaire"`)
	assert.Contains(t, string(body), "go_goroutines")

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
