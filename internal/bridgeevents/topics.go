package bridgeevents

import (
	"time"

	"github.com/zhxiaoyu/zeromqtt/internal/config"
)

// Standard topic names. External consumers (an eventual REST layer) rely
// on these names and the event struct shapes below as a stable contract.
const (
	TopicWorkerConnected    = "worker.connected"
	TopicWorkerDisconnected = "worker.disconnected"
	TopicWorkerError        = "worker.error"
	TopicBridgeReconfigured = "bridge.reconfigured"
	TopicBridgeStateChanged = "bridge.state_changed"
)

// WorkerConnectedEvent is published when a worker transitions to Connected.
type WorkerConnectedEvent struct {
	Endpoint   config.EndpointRef
	Generation uint64
	At         time.Time
}

// WorkerDisconnectedEvent is published when an MQTT worker loses its
// broker connection. Shutdown does not publish it, and ZeroMQ workers
// never do.
type WorkerDisconnectedEvent struct {
	Endpoint config.EndpointRef
	Reason   string
	At       time.Time
}

// WorkerErrorEvent is published on any worker-local error (connection
// failure, queue-full drop) that the operator may want visibility into
// without polling stats.
type WorkerErrorEvent struct {
	Endpoint config.EndpointRef
	Error    string
	At       time.Time
}

// BridgeReconfiguredEvent is published after a reconfiguration diff has
// been fully applied.
type BridgeReconfiguredEvent struct {
	SpawnedWorkers   []config.EndpointRef
	ShutdownWorkers  []config.EndpointRef
	RespawnedWorkers []config.EndpointRef
	At               time.Time
}

// BridgeStateChangedEvent is published on every Supervisor state
// transition (Stopped/Starting/Running/Stopping/Errored).
type BridgeStateChangedEvent struct {
	State string
	At    time.Time
}
