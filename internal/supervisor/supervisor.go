// Package supervisor implements the Bridge Supervisor: the component
// that owns the live worker table, the current Mapping Index, and the
// bridge's lifecycle state, and that applies reconfiguration diffs by
// starting, stopping, or restarting workers as needed. All commands are
// serialized through a single internal queue so that worker shutdown and
// index rebuild never race each other.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zhxiaoyu/zeromqtt/internal/bridgeerr"
	"github.com/zhxiaoyu/zeromqtt/internal/bridgeevents"
	"github.com/zhxiaoyu/zeromqtt/internal/config"
	"github.com/zhxiaoyu/zeromqtt/internal/mapping"
	"github.com/zhxiaoyu/zeromqtt/internal/router"
	"github.com/zhxiaoyu/zeromqtt/internal/stats"
	"github.com/zhxiaoyu/zeromqtt/internal/worker"
	"github.com/zhxiaoyu/zeromqtt/internal/worker/mqttworker"
	"github.com/zhxiaoyu/zeromqtt/internal/worker/zmqworker"
)

const shutdownDeadline = 2 * time.Second

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdApplyConfig
)

type command struct {
	kind     commandKind
	snapshot config.Snapshot
	reply    chan error
}

// Supervisor owns the worker table, the current Mapping Index, and the
// bridge's lifecycle state.
type Supervisor struct {
	store  config.Store
	events *bridgeevents.Subject
	stats  *stats.Aggregator
	logger *slog.Logger

	inbound chan worker.InboundMessage
	reg     *registry
	router  *router.Router

	newMQTTWorker func(config.MQTTEndpoint, chan<- worker.InboundMessage, *bridgeevents.Subject, *slog.Logger) worker.Worker
	newZMQWorker  func(config.ZMQEndpoint, chan<- worker.InboundMessage, *bridgeevents.Subject, *slog.Logger) worker.Worker

	cmdCh chan command

	mu        sync.RWMutex
	state     State
	snapshot  config.Snapshot
	startedAt time.Time
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the structured logger used by the supervisor and, by
// default, every worker it spawns.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

// WithEvents sets the bridgeevents.Subject lifecycle events are published
// through.
func WithEvents(bus *bridgeevents.Subject) Option {
	return func(s *Supervisor) { s.events = bus }
}

// New constructs a Supervisor reading configuration from store.
func New(store config.Store, agg *stats.Aggregator, opts ...Option) *Supervisor {
	s := &Supervisor{
		store:   store,
		stats:   agg,
		inbound: make(chan worker.InboundMessage, 4096),
		reg:     newRegistry(),
		cmdCh:   make(chan command),
		state:   StateStopped,
		newMQTTWorker: func(e config.MQTTEndpoint, in chan<- worker.InboundMessage, bus *bridgeevents.Subject, l *slog.Logger) worker.Worker {
			return mqttworker.New(e, in, bus, l)
		},
		newZMQWorker: func(e config.ZMQEndpoint, in chan<- worker.InboundMessage, bus *bridgeevents.Subject, l *slog.Logger) worker.Worker {
			return zmqworker.New(e, in, bus, l)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.events == nil {
		s.events = bridgeevents.NewSubject(bridgeevents.WithLogger(s.logger))
	}
	s.router = router.New(s.inbound, s.reg, s.stats, s.logger)
	return s
}

// Run starts the supervisor's command-processing loop. It blocks until
// ctx is cancelled; callers typically run it in its own goroutine.
func (s *Supervisor) Run(ctx context.Context) {
	go s.router.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.cmdCh:
			cmd.reply <- s.handle(ctx, cmd)
		}
	}
}

func (s *Supervisor) submit(ctx context.Context, kind commandKind, snap config.Snapshot) error {
	reply := make(chan error, 1)
	cmd := command{kind: kind, snapshot: snap, reply: reply}
	select {
	case s.cmdCh <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start loads the current configuration from the store, builds the
// Mapping Index, spawns one worker per enabled endpoint, and transitions
// to Running once every worker has reported Connecting or Connected.
func (s *Supervisor) Start(ctx context.Context) error {
	return s.submit(ctx, cmdStart, config.Snapshot{})
}

// Stop shuts down every worker in parallel and transitions to Stopped.
func (s *Supervisor) Stop(ctx context.Context) error {
	return s.submit(ctx, cmdStop, config.Snapshot{})
}

// ApplyConfig applies a reconfiguration diff against snap while Running.
// A malformed snapshot (bad pattern, dangling endpoint reference) rejects
// the whole reconfiguration and leaves the prior state untouched.
func (s *Supervisor) ApplyConfig(ctx context.Context, snap config.Snapshot) error {
	return s.submit(ctx, cmdApplyConfig, snap)
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Uptime returns the duration since the supervisor last entered Running,
// or zero if it is not currently running.
func (s *Supervisor) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateRunning || s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// WorkerStatuses returns a snapshot of every live worker's status, keyed
// by endpoint reference.
func (s *Supervisor) WorkerStatuses() map[config.EndpointRef]worker.Status {
	workers := s.reg.all()
	out := make(map[config.EndpointRef]worker.Status, len(workers))
	for ref, w := range workers {
		out[ref] = w.Status()
	}
	return out
}

func (s *Supervisor) handle(ctx context.Context, cmd command) error {
	switch cmd.kind {
	case cmdStart:
		return s.handleStart(ctx)
	case cmdStop:
		return s.handleStop(ctx)
	case cmdApplyConfig:
		if s.State() == StateErrored {
			return fmt.Errorf("%w: supervisor is errored, restart before reconfiguring", bridgeerr.ErrInternal)
		}
		return s.handleApplyConfig(ctx, cmd.snapshot)
	default:
		s.setState(StateErrored)
		return fmt.Errorf("%w: unknown command kind %d", bridgeerr.ErrInternal, cmd.kind)
	}
}

func (s *Supervisor) handleStart(ctx context.Context) error {
	s.setState(StateStarting)

	snap, err := config.LoadSnapshot(ctx, s.store)
	if err != nil {
		s.setState(StateErrored)
		return fmt.Errorf("%w: loading snapshot: %v", bridgeerr.ErrInternal, err)
	}
	if err := validateSnapshot(snap); err != nil {
		s.setState(StateErrored)
		return err
	}

	idx, err := mapping.Build(snap)
	if err != nil {
		s.setState(StateErrored)
		return err
	}

	for _, e := range snap.EnabledMQTT() {
		s.spawnMQTT(ctx, e)
	}
	for _, e := range snap.EnabledZMQ() {
		s.spawnZMQ(ctx, e)
	}

	s.router.SetIndex(idx)
	s.applySubscriptions(ctx, idx, snap)

	s.mu.Lock()
	s.snapshot = snap
	s.startedAt = time.Now()
	s.mu.Unlock()
	s.setState(StateRunning)
	return nil
}

func (s *Supervisor) handleStop(ctx context.Context) error {
	s.setState(StateStopping)

	workers := s.reg.all()
	var wg sync.WaitGroup
	for ref, w := range workers {
		wg.Add(1)
		go func(ref config.EndpointRef, w worker.Worker) {
			defer wg.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
			defer cancel()
			if err := w.Shutdown(shutdownCtx); err != nil {
				s.logger.Warn("supervisor: worker shutdown error", "endpoint", ref, "error", err)
			}
			s.reg.remove(ref)
		}(ref, w)
	}
	wg.Wait()

	s.setState(StateStopped)
	return nil
}

func (s *Supervisor) handleApplyConfig(ctx context.Context, snap config.Snapshot) error {
	if s.State() == StateErrored {
		return fmt.Errorf("%w: supervisor is errored, restart before reconfiguring", bridgeerr.ErrInternal)
	}

	if err := validateSnapshot(snap); err != nil {
		return err
	}

	newIdx, err := mapping.Build(snap)
	if err != nil {
		// Reject wholesale; prior state (and prior index) is untouched.
		return err
	}

	s.mu.RLock()
	prior := s.snapshot
	s.mu.RUnlock()

	mqttDiff := diffMQTT(prior.MQTT, snap.MQTT)
	zmqDiff := diffZMQ(prior.ZMQ, snap.ZMQ)
	d := merge(mqttDiff, zmqDiff)

	for _, ref := range append(append([]config.EndpointRef{}, d.shutdown...), d.respawn...) {
		if w, ok := s.reg.remove(ref); ok {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
			if err := w.Shutdown(shutdownCtx); err != nil {
				s.logger.Warn("supervisor: worker shutdown error during reconfigure", "endpoint", ref, "error", err)
			}
			cancel()
		}
	}

	newEndpointsByRef := endpointsByRef(snap)
	for _, ref := range append(append([]config.EndpointRef{}, d.spawn...), d.respawn...) {
		rec, ok := newEndpointsByRef[ref]
		if !ok {
			continue
		}
		switch e := rec.(type) {
		case config.MQTTEndpoint:
			s.spawnMQTT(ctx, e)
		case config.ZMQEndpoint:
			s.spawnZMQ(ctx, e)
		}
	}

	s.router.SetIndex(newIdx)
	s.applySubscriptions(ctx, newIdx, snap)

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	_ = bridgeevents.Publish(s.events, bridgeevents.TopicBridgeReconfigured, bridgeevents.BridgeReconfiguredEvent{
		SpawnedWorkers:   d.spawn,
		ShutdownWorkers:  d.shutdown,
		RespawnedWorkers: d.respawn,
		At:               time.Now(),
	})
	return nil
}

func (s *Supervisor) spawnMQTT(ctx context.Context, e config.MQTTEndpoint) {
	w := s.newMQTTWorker(e, s.inbound, s.events, s.logger)
	if err := w.Start(ctx); err != nil {
		s.logger.Error("supervisor: mqtt worker failed to start", "endpoint", e.Ref(), "error", err)
	}
	s.reg.put(e.Ref(), w)
}

func (s *Supervisor) spawnZMQ(ctx context.Context, e config.ZMQEndpoint) {
	w := s.newZMQWorker(e, s.inbound, s.events, s.logger)
	if err := w.Start(ctx); err != nil {
		s.logger.Error("supervisor: zmq worker failed to start", "endpoint", e.Ref(), "error", err)
	}
	s.reg.put(e.Ref(), w)
}

func (s *Supervisor) applySubscriptions(ctx context.Context, idx *mapping.Index, snap config.Snapshot) {
	for _, e := range snap.EnabledMQTT() {
		w, ok := s.reg.Get(e.Ref())
		if !ok {
			continue
		}
		subs := idx.MQTTSubscriptions(e.Ref())
		if err := w.SetSubscriptions(ctx, subs); err != nil {
			s.logger.Warn("supervisor: failed to apply mqtt subscriptions", "endpoint", e.Ref(), "error", err)
		}
	}
	for _, e := range snap.EnabledZMQ() {
		if !e.Role.IsSubscriber() {
			continue
		}
		w, ok := s.reg.Get(e.Ref())
		if !ok {
			continue
		}
		prefixes := idx.ZMQSubscriptionPrefixes(e.Ref())
		if err := w.SetSubscriptions(ctx, prefixes); err != nil {
			s.logger.Warn("supervisor: failed to apply zmq subscriptions", "endpoint", e.Ref(), "error", err)
		}
	}
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	_ = bridgeevents.Publish(s.events, bridgeevents.TopicBridgeStateChanged, bridgeevents.BridgeStateChangedEvent{
		State: st.String(),
		At:    time.Now(),
	})
}

func validateSnapshot(snap config.Snapshot) error {
	if err := config.ValidateMQTTEndpoints(snap.MQTT); err != nil {
		return err
	}
	return config.ValidateZMQEndpoints(snap.ZMQ)
}

func endpointsByRef(snap config.Snapshot) map[config.EndpointRef]any {
	out := make(map[config.EndpointRef]any, len(snap.MQTT)+len(snap.ZMQ))
	for _, e := range snap.MQTT {
		if e.Enabled {
			out[e.Ref()] = e
		}
	}
	for _, e := range snap.ZMQ {
		if e.Enabled {
			out[e.Ref()] = e
		}
	}
	return out
}
