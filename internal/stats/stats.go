// Package stats implements the Stats Aggregator: monotonic counters per
// protocol and per endpoint, an instantaneous messages-per-second figure,
// an EMA latency estimate, and a 30-minute per-minute throughput ring.
// Updates are applied directly by the caller: counters are atomic adds,
// and the per-endpoint drop map, the latency EMA and the bucket ring are
// each guarded by a short mutex section. No update is ever dropped, and a
// caller may wait briefly on one of those mutexes.
package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/zhxiaoyu/zeromqtt/internal/config"
)

const (
	bucketCount  = 30
	bucketPeriod = time.Minute
	emaCoeff     = 0.1
	sampleWindow = time.Second
)

// Snapshot is a point-in-time read of the aggregator's counters, safe to
// serialize directly (e.g. by an external REST handler).
type Snapshot struct {
	ReceivedMQTT     int64
	ReceivedZMQ      int64
	SentMQTT         int64
	SentZMQ          int64
	Errors           int64
	QueueDrops       map[config.EndpointRef]int64
	MessagesPerSec   float64
	AvgLatencyMillis float64
	MQTTBuckets      [bucketCount]int64
	ZMQBuckets       [bucketCount]int64
}

// Aggregator maintains the running totals and rolling series described
// above. The router is its only caller; workers do not report to it.
type Aggregator struct {
	receivedMQTT atomic.Int64
	receivedZMQ  atomic.Int64
	sentMQTT     atomic.Int64
	sentZMQ      atomic.Int64
	errors       atomic.Int64

	mu         sync.Mutex
	queueDrops map[config.EndpointRef]int64

	emaMu      sync.Mutex
	emaLatency float64
	haveEMA    bool

	rateMu       sync.Mutex
	lastSentMQTT int64
	lastSentZMQ  int64
	lastSampleAt time.Time
	currentRate  float64

	bucketMu      sync.Mutex
	mqttBuckets   [bucketCount]int64
	zmqBuckets    [bucketCount]int64
	bucketIndex   int
	bucketStarted time.Time
}

// New constructs an empty Aggregator.
func New() *Aggregator {
	now := time.Now()
	return &Aggregator{
		queueDrops:    make(map[config.EndpointRef]int64),
		lastSampleAt:  now,
		bucketStarted: now,
	}
}

// IncReceived increments the received counter for kind.
func (a *Aggregator) IncReceived(kind config.EndpointKind) {
	switch kind {
	case config.KindMQTT:
		a.receivedMQTT.Add(1)
	case config.KindZMQ:
		a.receivedZMQ.Add(1)
	}
}

// IncSent increments the sent counter for kind and rolls it into the
// current per-minute bucket.
func (a *Aggregator) IncSent(kind config.EndpointKind) {
	switch kind {
	case config.KindMQTT:
		a.sentMQTT.Add(1)
	case config.KindZMQ:
		a.sentZMQ.Add(1)
	}
	a.rollBucket(kind, time.Now())
}

// IncQueueDrop increments the error counter and the per-endpoint
// queue_drop counter for target.
func (a *Aggregator) IncQueueDrop(target config.EndpointRef) {
	a.errors.Add(1)
	a.mu.Lock()
	a.queueDrops[target]++
	a.mu.Unlock()
}

// IncError increments the global error counter without attributing it to
// a specific endpoint's queue.
func (a *Aggregator) IncError() {
	a.errors.Add(1)
}

// ObserveLatency folds a latency sample into the EMA with coefficient 0.1.
func (a *Aggregator) ObserveLatency(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000.0
	a.emaMu.Lock()
	defer a.emaMu.Unlock()
	if !a.haveEMA {
		a.emaLatency = ms
		a.haveEMA = true
		return
	}
	a.emaLatency = emaCoeff*ms + (1-emaCoeff)*a.emaLatency
}

func (a *Aggregator) rollBucket(kind config.EndpointKind, now time.Time) {
	a.bucketMu.Lock()
	defer a.bucketMu.Unlock()

	elapsed := now.Sub(a.bucketStarted)
	advance := int(elapsed / bucketPeriod)
	for i := 0; i < advance && i < bucketCount; i++ {
		a.bucketIndex = (a.bucketIndex + 1) % bucketCount
		a.mqttBuckets[a.bucketIndex] = 0
		a.zmqBuckets[a.bucketIndex] = 0
	}
	if advance > 0 {
		a.bucketStarted = now
	}

	switch kind {
	case config.KindMQTT:
		a.mqttBuckets[a.bucketIndex]++
	case config.KindZMQ:
		a.zmqBuckets[a.bucketIndex]++
	}
}

// messagesPerSecond computes the instantaneous sent-rate over the last
// sampleWindow, resampling lazily on each Snapshot call.
func (a *Aggregator) messagesPerSecond() float64 {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := time.Now()
	elapsed := now.Sub(a.lastSampleAt)
	if elapsed < sampleWindow {
		return a.currentRate
	}

	sentMQTT := a.sentMQTT.Load()
	sentZMQ := a.sentZMQ.Load()
	deltaTotal := (sentMQTT - a.lastSentMQTT) + (sentZMQ - a.lastSentZMQ)

	a.currentRate = float64(deltaTotal) / elapsed.Seconds()
	a.lastSentMQTT = sentMQTT
	a.lastSentZMQ = sentZMQ
	a.lastSampleAt = now
	return a.currentRate
}

// Snapshot returns a consistent-enough read of all current counters. It
// is not linearizable with concurrent updates — none of the fields need
// to be.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	drops := make(map[config.EndpointRef]int64, len(a.queueDrops))
	for k, v := range a.queueDrops {
		drops[k] = v
	}
	a.mu.Unlock()

	a.emaMu.Lock()
	avgLatency := a.emaLatency
	a.emaMu.Unlock()

	a.bucketMu.Lock()
	var mqttBuckets, zmqBuckets [bucketCount]int64
	for i := 0; i < bucketCount; i++ {
		idx := (a.bucketIndex + 1 + i) % bucketCount
		mqttBuckets[i] = a.mqttBuckets[idx]
		zmqBuckets[i] = a.zmqBuckets[idx]
	}
	a.bucketMu.Unlock()

	return Snapshot{
		ReceivedMQTT:     a.receivedMQTT.Load(),
		ReceivedZMQ:      a.receivedZMQ.Load(),
		SentMQTT:         a.sentMQTT.Load(),
		SentZMQ:          a.sentZMQ.Load(),
		Errors:           a.errors.Load(),
		QueueDrops:       drops,
		MessagesPerSec:   a.messagesPerSecond(),
		AvgLatencyMillis: avgLatency,
		MQTTBuckets:      mqttBuckets,
		ZMQBuckets:       zmqBuckets,
	}
}

// QueueDepth sums the outbound channel lengths across the given workers;
// the caller supplies the per-worker depths since the Aggregator does not
// hold worker references.
func QueueDepth(depths ...int) int {
	total := 0
	for _, d := range depths {
		total += d
	}
	return total
}
