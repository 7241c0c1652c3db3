package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zhxiaoyu/zeromqtt/internal/config"
)

func TestCountersIncrement(t *testing.T) {
	agg := New()
	agg.IncReceived(config.KindMQTT)
	agg.IncReceived(config.KindMQTT)
	agg.IncReceived(config.KindZMQ)
	agg.IncSent(config.KindZMQ)

	snap := agg.Snapshot()
	assert.Equal(t, int64(2), snap.ReceivedMQTT)
	assert.Equal(t, int64(1), snap.ReceivedZMQ)
	assert.Equal(t, int64(1), snap.SentZMQ)
}

func TestQueueDropIsolatedPerEndpoint(t *testing.T) {
	agg := New()
	target2 := config.EndpointRef{Kind: config.KindZMQ, ID: 2}
	target3 := config.EndpointRef{Kind: config.KindZMQ, ID: 3}

	agg.IncQueueDrop(target2)
	agg.IncQueueDrop(target2)

	snap := agg.Snapshot()
	assert.Equal(t, int64(2), snap.QueueDrops[target2])
	assert.Equal(t, int64(0), snap.QueueDrops[target3])
	assert.Equal(t, int64(2), snap.Errors)
}

func TestLatencyEMA(t *testing.T) {
	agg := New()
	agg.ObserveLatency(10 * time.Millisecond)
	first := agg.Snapshot().AvgLatencyMillis
	assert.InDelta(t, 10, first, 0.5)

	agg.ObserveLatency(20 * time.Millisecond)
	second := agg.Snapshot().AvgLatencyMillis
	assert.Greater(t, second, first)
	assert.Less(t, second, 20.0)
}

func TestIncSentLandsInCurrentBucket(t *testing.T) {
	agg := New()
	agg.IncSent(config.KindMQTT)
	snap := agg.Snapshot()

	total := int64(0)
	for _, v := range snap.MQTTBuckets {
		total += v
	}
	assert.Equal(t, int64(1), total)
}
