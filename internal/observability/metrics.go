package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

const (
	meterScope         = "github.com/formbricks/wordsim/internal/observability"
	defaultServiceName = "wordsim"
	cardinalityLimit   = 2000
)

// latencyHistogramBoundaries are Prometheus-style buckets (seconds) for request and embedding duration histograms.
var latencyHistogramBoundaries = []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30}

// Metrics is the single metrics interface for the service (HTTP, engine, cache, fan-out, webhooks).
// Call sites accept nil when metrics are disabled.
type Metrics interface {
	RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration)
	RecordRequestBodyTooLarge(ctx context.Context)
	RecordSubmission(ctx context.Context, outcome string, duration time.Duration)
	RecordQueueDepth(ctx context.Context, depth int)
	RecordHistorySize(ctx context.Context, size int)
	RecordCacheLookup(ctx context.Context, hit bool)
	RecordSubscriberDropped(ctx context.Context)
	RecordWebhookDelivery(ctx context.Context, outcome string, duration time.Duration)
}

// MeterProviderShutdown is the subset of the SDK MeterProvider needed for shutdown.
type MeterProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// MeterProviderConfig holds configuration for creating the MeterProvider and metrics.
type MeterProviderConfig struct {
	// ServiceName is used in the resource (default: wordsim).
	ServiceName string
}

// NewMeterProvider creates a MeterProvider with Prometheus exporter and returns the provider,
// an HTTP handler for /metrics, and Metrics that use the provider's Meter.
// Caller must call provider.Shutdown on exit.
func NewMeterProvider(_ context.Context, cfg MeterProviderConfig) (provider MeterProviderShutdown, metricsHandler http.Handler, metrics Metrics, err error) {
	serviceNameVal := cfg.ServiceName
	if serviceNameVal == "" {
		serviceNameVal = defaultServiceName
	}

	// Use a single resource to avoid Schema URL conflicts when merging with resource.Default().
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceNameVal),
	)

	reg := prometheus.NewRegistry()

	exporter, err := prometheusexporter.New(
		prometheusexporter.WithRegisterer(reg),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	histogram := sdkmetric.Stream{
		Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyHistogramBoundaries},
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
		sdkmetric.WithCardinalityLimit(cardinalityLimit),
		sdkmetric.WithView(
			sdkmetric.NewView(sdkmetric.Instrument{Name: MetricNameRequestDuration}, histogram),
			sdkmetric.NewView(sdkmetric.Instrument{Name: MetricNameEmbeddingDuration}, histogram),
			sdkmetric.NewView(sdkmetric.Instrument{Name: MetricNameWebhookDuration}, histogram),
		),
	)

	metrics, err = NewMetrics(mp.Meter(meterScope))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create metrics instruments: %w", err)
	}

	return mp, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics, nil
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	requestCount, err := meter.Int64Counter(
		MetricNameRequestCount,
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameRequestCount, err)
	}

	requestDuration, err := meter.Float64Histogram(
		MetricNameRequestDuration,
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameRequestDuration, err)
	}

	requestTooLarge, err := meter.Int64Counter(
		MetricNameRequestTooLarge,
		metric.WithDescription("Requests rejected with 413 for exceeding the body size limit"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameRequestTooLarge, err)
	}

	submissions, err := meter.Int64Counter(
		MetricNameSubmissions,
		metric.WithDescription("Processed word submissions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameSubmissions, err)
	}

	embeddingDuration, err := meter.Float64Histogram(
		MetricNameEmbeddingDuration,
		metric.WithDescription("Time from dequeue to completion of one submission (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameEmbeddingDuration, err)
	}

	queueDepth, err := meter.Int64Gauge(
		MetricNameQueueDepth,
		metric.WithDescription("Requests waiting in the engine queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameQueueDepth, err)
	}

	historySize, err := meter.Int64Gauge(
		MetricNameHistorySize,
		metric.WithDescription("Entries currently in history"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameHistorySize, err)
	}

	cacheLookups, err := meter.Int64Counter(
		MetricNameCacheLookups,
		metric.WithDescription("Embedding cache lookups by result (hit, miss)"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameCacheLookups, err)
	}

	subscribersDropped, err := meter.Int64Counter(
		MetricNameSubscribersDropped,
		metric.WithDescription("Event stream subscribers disconnected for falling behind"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameSubscribersDropped, err)
	}

	webhookDeliveries, err := meter.Int64Counter(
		MetricNameWebhookDeliveries,
		metric.WithDescription("Webhook delivery outcomes"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameWebhookDeliveries, err)
	}

	webhookDuration, err := meter.Float64Histogram(
		MetricNameWebhookDuration,
		metric.WithDescription("Webhook delivery duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MetricNameWebhookDuration, err)
	}

	return &metricsImpl{
		requestCount:       requestCount,
		requestDuration:    requestDuration,
		requestTooLarge:    requestTooLarge,
		submissions:        submissions,
		embeddingDuration:  embeddingDuration,
		queueDepth:         queueDepth,
		historySize:        historySize,
		cacheLookups:       cacheLookups,
		subscribersDropped: subscribersDropped,
		webhookDeliveries:  webhookDeliveries,
		webhookDuration:    webhookDuration,
	}, nil
}

type metricsImpl struct {
	requestCount       metric.Int64Counter
	requestDuration    metric.Float64Histogram
	requestTooLarge    metric.Int64Counter
	submissions        metric.Int64Counter
	embeddingDuration  metric.Float64Histogram
	queueDepth         metric.Int64Gauge
	historySize        metric.Int64Gauge
	cacheLookups       metric.Int64Counter
	subscribersDropped metric.Int64Counter
	webhookDeliveries  metric.Int64Counter
	webhookDuration    metric.Float64Histogram
}

func (m *metricsImpl) RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration) {
	attrs := attribute.NewSet(
		attribute.String(AttrMethod, method),
		attribute.String(AttrRoute, route),
		attribute.String(AttrStatusClass, statusClass),
	)
	m.requestCount.Add(ctx, 1, metric.WithAttributeSet(attrs))

	durAttrs := attribute.NewSet(
		attribute.String(AttrMethod, method),
		attribute.String(AttrRoute, route),
	)
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributeSet(durAttrs))
}

func (m *metricsImpl) RecordRequestBodyTooLarge(ctx context.Context) {
	m.requestTooLarge.Add(ctx, 1)
}

func (m *metricsImpl) RecordSubmission(ctx context.Context, outcome string, duration time.Duration) {
	outcome = NormalizeReason(outcome, AllowedSubmissionOutcomes)
	attrs := metric.WithAttributes(attribute.String(AttrOutcome, outcome))

	m.submissions.Add(ctx, 1, attrs)
	m.embeddingDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *metricsImpl) RecordQueueDepth(ctx context.Context, depth int) {
	m.queueDepth.Record(ctx, int64(depth))
}

func (m *metricsImpl) RecordHistorySize(ctx context.Context, size int) {
	m.historySize.Record(ctx, int64(size))
}

func (m *metricsImpl) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}

	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrResult, result)))
}

func (m *metricsImpl) RecordSubscriberDropped(ctx context.Context) {
	m.subscribersDropped.Add(ctx, 1)
}

func (m *metricsImpl) RecordWebhookDelivery(ctx context.Context, outcome string, duration time.Duration) {
	outcome = NormalizeReason(outcome, AllowedDeliveryOutcomes)
	attrs := metric.WithAttributes(attribute.String(AttrOutcome, outcome))

	m.webhookDeliveries.Add(ctx, 1, attrs)
	m.webhookDuration.Record(ctx, duration.Seconds(), attrs)
}
