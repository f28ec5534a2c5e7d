package infrastructure

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"casepulse/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func shutdown(t *testing.T, providers *OTelProviders) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelInitialization(t *testing.T) {
	providers, err := InitializeOTel(nil, discardLogger())
	require.NoError(t, err)
	require.NotNil(t, providers)
	defer shutdown(t, providers)

	// default config exports metrics and keeps tracing off
	assert.Nil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Registry)
	assert.NotNil(t, providers.PrometheusHTTP)
}

func TestOTelConfiguration(t *testing.T) {
	tests := []struct {
		name        string
		config      *OTelConfig
		wantErr     bool
		wantTracing bool
		wantMetrics bool
	}{
		{
			name: "stdout tracing with prometheus",
			config: &OTelConfig{
				ServiceName:    "test-service",
				ServiceVersion: "v1.0.0",
				Environment:    "development",
				TraceExporter:  "stdout",
				MetricExporter: "prometheus",
				SampleRatio:    1.0,
			},
			wantTracing: true,
			wantMetrics: true,
		},
		{
			name: "everything disabled",
			config: &OTelConfig{
				ServiceName:    "test-service",
				ServiceVersion: "v1.0.0",
				Environment:    "test",
				TraceExporter:  "none",
				MetricExporter: "none",
			},
		},
		{
			name: "unknown trace exporter",
			config: &OTelConfig{
				ServiceName:   "test-service",
				TraceExporter: "jaeger",
			},
			wantErr: true,
		},
		{
			name: "unknown metric exporter",
			config: &OTelConfig{
				ServiceName:    "test-service",
				MetricExporter: "statsd",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers, err := InitializeOTel(tt.config, discardLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer shutdown(t, providers)

			assert.Equal(t, tt.wantTracing, providers.TracerProvider != nil)
			assert.Equal(t, tt.wantMetrics, providers.MeterProvider != nil)

			// no-op fallbacks keep these usable either way
			assert.NotNil(t, providers.Tracer)
			assert.NotNil(t, providers.Meter)
			_, err = CreateBusinessMetrics(providers.Meter)
			assert.NoError(t, err)
		})
	}
}

func TestOTelConfigFrom(t *testing.T) {
	cfg := OTelConfigFrom(config.TelemetryConfig{
		Environment:    "staging",
		TraceExporter:  "stdout",
		MetricExporter: "none",
		SampleRatio:    0.25,
	})

	assert.Equal(t, ServiceName, cfg.ServiceName)
	assert.Equal(t, ServiceVersion, cfg.ServiceVersion)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "stdout", cfg.TraceExporter)
	assert.Equal(t, "none", cfg.MetricExporter)
	assert.Equal(t, 0.25, cfg.SampleRatio)
}

func TestTraceCorrelation(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "load-cases")
	defer span.End()

	traceID := TraceIDFromContext(ctx)
	assert.NotEmpty(t, traceID)
	assert.Equal(t, span.SpanContext().TraceID().String(), traceID)

	ctx = WithTraceID(ctx, traceID)
	assert.Equal(t, traceID, GetTraceID(ctx))

	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestRecordError(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "reload")
	defer span.End()

	assert.NotPanics(t, func() {
		RecordError(ctx, errors.New("parse failure"))
		RecordError(context.Background(), errors.New("no span"))
	})
	assert.True(t, span.IsRecording())
}

func TestBusinessMetricsExposed(t *testing.T) {
	providers, err := InitializeOTel(DefaultOTelConfig(), discardLogger())
	require.NoError(t, err)
	defer shutdown(t, providers)

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	RecordDatasetReload(ctx, metrics, "cases.csv", 20*time.Millisecond, 42, nil)
	RecordDatasetReload(ctx, metrics, "cases.csv", time.Millisecond, 0, errors.New("boom"))
	RecordQuery(ctx, metrics, "states", "Recovered")
	RecordExport(ctx, metrics, "csv")

	server := httptest.NewServer(providers.PrometheusHTTP)
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "dataset_reloads_total")
	assert.Contains(t, text, `status="failure"`)
	assert.Contains(t, text, "dataset_rows")
	assert.Contains(t, text, "case_queries_total")
	assert.Contains(t, text, `status_filter="Recovered"`)
	assert.Contains(t, text, "case_exports_total")
	assert.Contains(t, text, "go_goroutines")
}

func TestRecordHelpersTolerateNilMetrics(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordDatasetReload(ctx, nil, "x", time.Second, 1, nil)
		RecordQuery(ctx, nil, "chart", "All")
		RecordExport(ctx, nil, "xlsx")
	})
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	first, err := InitializeOTel(DefaultOTelConfig(), discardLogger())
	require.NoError(t, err)
	defer shutdown(t, first)

	second, err := InitializeOTel(DefaultOTelConfig(), discardLogger())
	require.NoError(t, err)
	defer shutdown(t, second)

	assert.NotSame(t, first.Registry, second.Registry)
}

func BenchmarkMetricOperations(b *testing.B) {
	providers, err := InitializeOTel(DefaultOTelConfig(), discardLogger())
	require.NoError(b, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(b, err)

	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	b.Run("counter_increment", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			metrics.HTTPRequestsTotal.Add(ctx, 1)
		}
	})

	b.Run("record_query", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			RecordQuery(ctx, metrics, "states", "All")
		}
	})
}
