// Package bridgestatus assembles the externally-facing status snapshot —
// lifecycle state, uptime, per-endpoint worker status, and throughput
// counters — from the Supervisor and Stats Aggregator. It holds no state
// of its own.
package bridgestatus

import (
	"github.com/zhxiaoyu/zeromqtt/internal/config"
	"github.com/zhxiaoyu/zeromqtt/internal/stats"
	"github.com/zhxiaoyu/zeromqtt/internal/supervisor"
	"github.com/zhxiaoyu/zeromqtt/internal/worker"
)

// EndpointStatus is one endpoint's connection summary.
type EndpointStatus struct {
	Endpoint      config.EndpointRef
	Phase         string
	Subscriptions int
	QueueDepth    int
	LastError     string
}

// Status is the full point-in-time bridge status.
type Status struct {
	State          string
	UptimeSeconds  float64
	Endpoints      []EndpointStatus
	ErrorCount     int64
	MessagesPerSec float64
	Stats          stats.Snapshot
}

// Build assembles a Status from a Supervisor and its Stats Aggregator.
func Build(sup *supervisor.Supervisor, agg *stats.Aggregator) Status {
	workerStatuses := sup.WorkerStatuses()
	endpoints := make([]EndpointStatus, 0, len(workerStatuses))
	for ref, st := range workerStatuses {
		endpoints = append(endpoints, EndpointStatus{
			Endpoint:      ref,
			Phase:         st.Phase.String(),
			Subscriptions: st.Subscriptions,
			QueueDepth:    st.QueueDepth,
			LastError:     st.LastError,
		})
	}

	snap := agg.Snapshot()
	return Status{
		State:          sup.State().String(),
		UptimeSeconds:  sup.Uptime().Seconds(),
		Endpoints:      endpoints,
		ErrorCount:     snap.Errors,
		MessagesPerSec: snap.MessagesPerSec,
		Stats:          snap,
	}
}

// PhaseName is a convenience accessor matching worker.Phase.String, kept
// here so callers outside worker's import graph (e.g. a REST encoder)
// don't need to import it directly.
func PhaseName(p worker.Phase) string { return p.String() }
