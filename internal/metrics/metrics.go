package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Collector for policy service operations
type Collector struct {
	logger *zerolog.Logger

	policiesCreated   prometheus.Counter
	predictions       *prometheus.CounterVec
	predictionLatency prometheus.Histogram
	predictionBatch   prometheus.Histogram
	weightUpdates     prometheus.Counter
	apiRequests       *prometheus.CounterVec
}

// NewCollector registers the collectors with reg.
func NewCollector(reg prometheus.Registerer, logger *zerolog.Logger) *Collector {
	c := &Collector{
		logger: logger,
		policiesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ars",
			Name:      "policies_created_total",
			Help:      "Policies created.",
		}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ars",
			Name:      "predictions_total",
			Help:      "Prediction calls by outcome.",
		}, []string{"outcome"}),
		predictionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ars",
			Name:      "prediction_duration_seconds",
			Help:      "Prediction latency.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14),
		}),
		predictionBatch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ars",
			Name:      "prediction_batch_size",
			Help:      "Observations per prediction call.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		weightUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ars",
			Name:      "weight_updates_total",
			Help:      "Weight vectors written to policies.",
		}),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ars",
			Name:      "api_requests_total",
			Help:      "HTTP requests by method and status.",
		}, []string{"method", "status"}),
	}
	reg.MustRegister(
		c.policiesCreated,
		c.predictions,
		c.predictionLatency,
		c.predictionBatch,
		c.weightUpdates,
		c.apiRequests,
	)
	return c
}

// Track policy creation
func (c *Collector) PolicyCreated(policyID, shape string, numParams int) {
	c.policiesCreated.Inc()
	c.logger.Info().
		Str("metric", "policy_created").
		Str("policy_id", policyID).
		Str("shape", shape).
		Int("num_params", numParams).
		Msg("Policy created metric")
}

// Track prediction calls
func (c *Collector) Prediction(policyID string, batch int, latency time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.predictions.WithLabelValues(outcome).Inc()
	c.predictionLatency.Observe(latency.Seconds())
	c.predictionBatch.Observe(float64(batch))

	c.logger.Debug().
		Str("metric", "prediction").
		Str("policy_id", policyID).
		Int("batch", batch).
		Dur("latency", latency).
		Str("outcome", outcome).
		Msg("Prediction metric")
}

// Track weight updates
func (c *Collector) WeightsUpdated(policyID string, version uint64) {
	c.weightUpdates.Inc()
	c.logger.Info().
		Str("metric", "weights_updated").
		Str("policy_id", policyID).
		Uint64("version", version).
		Msg("Weights updated metric")
}

// Track API request metrics
func (c *Collector) APIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	c.apiRequests.WithLabelValues(method, statusText(statusCode)).Inc()
	c.logger.Debug().
		Str("metric", "api_request").
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status_code", statusCode).
		Dur("duration", duration).
		Msg("API request metric")
}

func statusText(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
