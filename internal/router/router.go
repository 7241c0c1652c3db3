// Package router implements the single logical stage that drains the
// inbound fan-in of messages from every worker, consults the current
// Mapping Index, and dispatches outbound send commands to target
// workers. It never blocks on a full target queue: a blocked router
// would stall every source worker behind it.
package router

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/zhxiaoyu/zeromqtt/internal/config"
	"github.com/zhxiaoyu/zeromqtt/internal/lograte"
	"github.com/zhxiaoyu/zeromqtt/internal/mapping"
	"github.com/zhxiaoyu/zeromqtt/internal/stats"
	"github.com/zhxiaoyu/zeromqtt/internal/worker"
)

// Registry resolves an endpoint reference to the live worker that owns
// it. The Supervisor is the only writer; the Router only reads.
type Registry interface {
	Get(ref config.EndpointRef) (worker.Worker, bool)
}

// Router drains a single inbound channel fed by every worker and
// dispatches to targets resolved through an atomically-swapped Mapping
// Index.
type Router struct {
	inbound  <-chan worker.InboundMessage
	registry Registry
	stats    *stats.Aggregator
	logger   *slog.Logger
	dropLog  *lograte.Limiter

	index atomic.Pointer[mapping.Index]
}

// New constructs a Router. SetIndex must be called at least once (the
// Supervisor does this as part of Start) before messages can be routed;
// until then, inbound messages are consumed and dropped.
func New(inbound <-chan worker.InboundMessage, registry Registry, agg *stats.Aggregator, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{inbound: inbound, registry: registry, stats: agg, logger: logger, dropLog: lograte.New()}
}

// SetIndex atomically swaps the Mapping Index the router consults. A
// message already being processed completes against whichever index was
// current when Run read it; the next read observes the new one.
func (r *Router) SetIndex(idx *mapping.Index) {
	r.index.Store(idx)
}

// Run drains the inbound channel until ctx is cancelled or the channel is
// closed.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-r.inbound:
			if !ok {
				return
			}
			r.route(ctx, msg)
		}
	}
}

func (r *Router) route(ctx context.Context, msg worker.InboundMessage) {
	idx := r.index.Load()
	r.stats.IncReceived(msg.Source.Kind)

	if idx == nil {
		return
	}

	actions := idx.Lookup(msg.Source, msg.Topic)

	if !msg.IngressAt.IsZero() {
		r.stats.ObserveLatency(time.Since(msg.IngressAt))
	}

	for _, action := range actions {
		target, ok := r.registry.Get(action.Target)
		if !ok {
			continue
		}
		out := worker.OutboundMessage{
			Topic:    action.Topic,
			Payload:  msg.Payload,
			QoS:      msg.QoS,
			Retained: msg.Retained,
		}
		if err := target.Publish(ctx, out); err != nil {
			r.stats.IncQueueDrop(action.Target)
			if r.dropLog.Allow() {
				r.logger.Warn("router: dropped message, target queue full",
					"target", action.Target, "topic", action.Topic)
			}
			continue
		}
		r.stats.IncSent(action.TargetKind)
	}
}
