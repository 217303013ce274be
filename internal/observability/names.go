// Package observability provides structured logging, OpenTelemetry metrics (Prometheus exporter)
// and optional tracing for the similarity engine.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameRequestCount       = "http.server.request_count"
	MetricNameRequestDuration    = "http.server.duration"
	MetricNameRequestTooLarge    = "http.server.request_body_too_large"
	MetricNameSubmissions        = "wordsim_submissions_total"
	MetricNameEmbeddingDuration  = "wordsim_embedding_duration_seconds"
	MetricNameQueueDepth         = "wordsim_queue_depth"
	MetricNameHistorySize        = "wordsim_history_size"
	MetricNameCacheLookups       = "wordsim_embedding_cache_lookups_total"
	MetricNameSubscribersDropped = "wordsim_subscribers_dropped_total"
	MetricNameWebhookDeliveries  = "wordsim_webhook_deliveries_total"
	MetricNameWebhookDuration    = "wordsim_webhook_delivery_duration_seconds"
)

// Attribute keys.
const (
	AttrOutcome     = "outcome"
	AttrResult      = "result"
	AttrMethod      = "method"
	AttrRoute       = "route"
	AttrStatusClass = "status_class"
)

// Submission outcomes for wordsim_submissions_total and wordsim_embedding_duration_seconds.
const (
	OutcomeSuccess          = "success"
	OutcomeEmbedFailed      = "embed_failed"
	OutcomeInvalidEmbedding = "invalid_embedding"
	OutcomeRejected         = "rejected"
	OutcomeUnavailable      = "unavailable"
)

// AllowedSubmissionOutcomes bounds the outcome attribute.
var AllowedSubmissionOutcomes = map[string]bool{
	OutcomeSuccess:          true,
	OutcomeEmbedFailed:      true,
	OutcomeInvalidEmbedding: true,
	OutcomeRejected:         true,
	OutcomeUnavailable:      true,
}

// AllowedDeliveryOutcomes bounds the webhook delivery outcome attribute.
var AllowedDeliveryOutcomes = map[string]bool{
	"success": true,
	"failed":  true,
}

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}
