// Package worker defines the uniform contract every endpoint worker
// implements — MQTT and ZeroMQ variants alike — plus the message types
// that flow between workers and the router. Dispatch is on the variant's
// concrete type, not runtime reflection; the two implementations live in
// the mqttworker and zmqworker subpackages.
package worker

import (
	"context"
	"time"

	"github.com/zhxiaoyu/zeromqtt/internal/config"
)

// Phase is a worker's connection state machine position.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnected
	PhaseReconnecting
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Status is the worker's externally observable state, built fresh on
// every call to Worker.Status — it never aliases worker-internal
// mutable state.
type Status struct {
	Endpoint      config.EndpointRef
	Phase         Phase
	Generation    uint64
	Subscriptions int
	QueueDepth    int
	LastError     string
}

// InboundMessage is a message received by a worker, tagged with the
// worker's endpoint identity and an ingress timestamp used to compute
// router latency.
type InboundMessage struct {
	Source    config.EndpointRef
	Topic     string
	Payload   []byte
	QoS       byte
	Retained  bool
	IngressAt time.Time
}

// OutboundMessage is a send command dispatched to a target worker by the
// router.
type OutboundMessage struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// Worker is the capability set the Supervisor and Router depend on.
// Implementations own their network connection, subscription set,
// outbound queue, and reconnect state machine; all control operations
// must be safe to call concurrently with the worker's internal I/O loop.
type Worker interface {
	// Start begins connecting and, once connected, delivering inbound
	// messages to the channel supplied at construction. Start returns
	// once the connection attempt has been initiated; it does not block
	// until Connected.
	Start(ctx context.Context) error

	// SetSubscriptions reconciles the worker's live subscription set to
	// exactly the given set, subscribing additions and unsubscribing
	// removals. Idempotent: calling it twice with the same set is a
	// no-op the second time. Bumps the worker's generation counter when
	// the effective set changes.
	SetSubscriptions(ctx context.Context, set []string) error

	// Publish enqueues a message for asynchronous delivery. It returns
	// immediately; ErrQueueFull is returned (and the error counter
	// incremented) if the outbound queue is full, never blocking the
	// caller.
	Publish(ctx context.Context, msg OutboundMessage) error

	// Status returns a snapshot of the worker's current state.
	Status() Status

	// Shutdown disconnects cleanly, draining pending publishes bounded by
	// deadline. Resources are released on return even if the deadline is
	// exceeded.
	Shutdown(ctx context.Context) error
}
