package metrics

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	logger := zerolog.New(io.Discard)
	c := NewCollector(reg, &logger)

	c.PolicyCreated("p1", "mlp", 10)
	c.Prediction("p1", 4, time.Millisecond, nil)
	c.Prediction("p1", 1, time.Millisecond, errors.New("boom"))
	c.WeightsUpdated("p1", 2)
	c.APIRequest("POST", "/api/v1/policies", 201, time.Millisecond)
	c.APIRequest("GET", "/api/v1/policies/x", 404, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.policiesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.predictions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.predictions.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.weightUpdates))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.apiRequests.WithLabelValues("GET", "4xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.predictionLatency))
}
