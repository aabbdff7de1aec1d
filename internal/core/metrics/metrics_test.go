package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorsRegistered(t *testing.T) {
	before := testutil.ToFloat64(TrapsReceived)
	TrapsReceived.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(TrapsReceived))

	Deliveries.WithLabelValues(ResultSuccess).Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(Deliveries.WithLabelValues(ResultSuccess)), 1.0)

	QueueDepth.Set(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(QueueDepth))
}
