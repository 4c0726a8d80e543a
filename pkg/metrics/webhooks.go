package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics tracks payment webhook processing outcomes per event type.
type WebhookMetrics struct {
	processed *prometheus.CounterVec
	duplicate *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_processed",
		Help: "Payment webhook events applied to an order.",
	}, []string{"provider", "event_type"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_duplicate",
		Help: "Payment webhook events skipped as already seen.",
	}, []string{"provider", "event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_failed",
		Help: "Payment webhook events that errored during processing.",
	}, []string{"provider", "event_type"})
	reg.MustRegister(processed, duplicate, failed)
	return &WebhookMetrics{
		processed: processed,
		duplicate: duplicate,
		failed:    failed,
	}
}

// IncProcessed increments the processed counter.
func (w *WebhookMetrics) IncProcessed(provider, eventType string) {
	if w == nil || w.processed == nil {
		return
	}
	w.processed.WithLabelValues(provider, eventType).Inc()
}

// IncDuplicate increments the duplicate counter.
func (w *WebhookMetrics) IncDuplicate(provider, eventType string) {
	if w == nil || w.duplicate == nil {
		return
	}
	w.duplicate.WithLabelValues(provider, eventType).Inc()
}

// IncFailed increments the failure counter.
func (w *WebhookMetrics) IncFailed(provider, eventType string) {
	if w == nil || w.failed == nil {
		return
	}
	w.failed.WithLabelValues(provider, eventType).Inc()
}
