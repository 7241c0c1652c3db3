// Package mqttworker implements the MQTT variant of worker.Worker on top
// of github.com/eclipse/paho.mqtt.golang, generalizing the connection
// handling the upstream project's transport/mqtt package used for MCP
// request/response topics into bridge subscription-set reconciliation and
// mapping-driven publish.
package mqttworker

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/zhxiaoyu/zeromqtt/internal/bridgeerr"
	"github.com/zhxiaoyu/zeromqtt/internal/bridgeevents"
	"github.com/zhxiaoyu/zeromqtt/internal/config"
	"github.com/zhxiaoyu/zeromqtt/internal/lograte"
	"github.com/zhxiaoyu/zeromqtt/internal/worker"
)

const (
	// DefaultSubscribeQoS is the QoS used for every subscription; mappings
	// carry no QoS of their own.
	DefaultSubscribeQoS = 1

	defaultQueueSize    = 10_000
	defaultDrainTimeout = 2 * time.Second

	backoffInitial = 1 * time.Second
	backoffCap     = 30 * time.Second
	backoffFactor  = 2.0
	backoffJitter  = 0.2
)

type publishJob struct {
	msg worker.OutboundMessage
}

// Worker is the MQTT implementation of worker.Worker.
type Worker struct {
	endpoint config.EndpointRef
	cfg      config.MQTTEndpoint
	inbound  chan<- worker.InboundMessage
	events   *bridgeevents.Subject
	logger   *slog.Logger

	client paho.Client

	mu            sync.RWMutex
	phase         worker.Phase
	generation    uint64
	subscriptions map[string]bool
	lastErr       string

	queue    chan publishJob
	cancel   context.CancelFunc
	doneChan chan struct{}

	fanInDropLog *lograte.Limiter
}

// New constructs an MQTT worker for cfg. Messages received on subscribed
// topics are pushed to inbound, tagged with this worker's endpoint id;
// inbound must not be closed until after Shutdown returns.
func New(cfg config.MQTTEndpoint, inbound chan<- worker.InboundMessage, bus *bridgeevents.Subject, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "zeromqtt-" + uuid.NewString()
	}
	logger = logger.With("worker_instance", uuid.NewString())
	return &Worker{
		endpoint:      cfg.Ref(),
		cfg:           cfg,
		inbound:       inbound,
		events:        bus,
		logger:        logger,
		phase:         worker.PhaseDisconnected,
		subscriptions: make(map[string]bool),
		queue:         make(chan publishJob, defaultQueueSize),
		doneChan:      make(chan struct{}),
		fanInDropLog:  lograte.New(),
	}
}

// Start begins connecting to the broker and launches the background
// publish loop. It returns immediately once the connect attempt has been
// dispatched to its own goroutine — it never waits on the broker, so a
// slow or unreachable broker cannot stall the caller.
func (w *Worker) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", w.cfg.Host, w.cfg.Port))
	opts.SetClientID(w.cfg.ClientID)
	opts.SetCleanSession(w.cfg.CleanSession)
	opts.SetAutoReconnect(false) // the worker drives its own backoff state machine
	opts.SetConnectTimeout(10 * time.Second)

	if w.cfg.Username != "" {
		opts.SetUsername(w.cfg.Username)
		opts.SetPassword(w.cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		w.setPhase(worker.PhaseReconnecting, err)
		w.publishDisconnected("connection lost")
		go w.reconnectLoop(runCtx)
	})
	opts.SetOnConnectHandler(func(client paho.Client) {
		w.setPhase(worker.PhaseConnected, nil)
		w.publishConnected()
		w.resubscribeAll(client)
	})

	w.client = paho.NewClient(opts)
	w.setPhase(worker.PhaseConnecting, nil)

	go w.publishLoop(runCtx)
	go w.connectBlocking(runCtx)

	return nil
}

// connectBlocking runs the initial, blocking paho Connect call on its own
// goroutine so neither Start's caller nor the Supervisor's command loop
// ever waits on broker reachability. A failed attempt falls straight into
// the same backoff loop a lost connection would.
func (w *Worker) connectBlocking(ctx context.Context) {
	if token := w.client.Connect(); token.Wait() && token.Error() != nil {
		w.setPhase(worker.PhaseReconnecting, token.Error())
		w.recordError(fmt.Errorf("%w: %v", bridgeerr.ErrConnectionFailed, token.Error()))
		w.reconnectLoop(ctx)
	}
}

func (w *Worker) reconnectLoop(ctx context.Context) {
	backoff := backoffInitial
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(jitter(backoff)):
		}

		w.setPhase(worker.PhaseConnecting, nil)
		if token := w.client.Connect(); token.Wait() && token.Error() != nil {
			w.setPhase(worker.PhaseReconnecting, token.Error())
			backoff = nextBackoff(backoff)
			continue
		}
		return
	}
}

func jitter(d time.Duration) time.Duration {
	delta := float64(d) * backoffJitter
	offset := (rand.Float64()*2 - 1) * delta
	return time.Duration(float64(d) + offset)
}

func nextBackoff(d time.Duration) time.Duration {
	next := time.Duration(float64(d) * backoffFactor)
	if next > backoffCap {
		return backoffCap
	}
	return next
}

// SetSubscriptions reconciles the live subscription set to exactly set.
func (w *Worker) SetSubscriptions(ctx context.Context, set []string) error {
	want := make(map[string]bool, len(set))
	for _, s := range set {
		want[s] = true
	}

	w.mu.Lock()
	current := w.subscriptions
	changed := false

	var toSubscribe, toUnsubscribe []string
	for t := range want {
		if !current[t] {
			toSubscribe = append(toSubscribe, t)
			changed = true
		}
	}
	for t := range current {
		if !want[t] {
			toUnsubscribe = append(toUnsubscribe, t)
			changed = true
		}
	}
	if changed {
		w.subscriptions = want
		w.generation++
	}
	w.mu.Unlock()

	if w.client == nil || !w.client.IsConnected() {
		return nil // reapplied in full by resubscribeAll on (re)connect
	}

	for _, t := range toSubscribe {
		if err := w.subscribe(t); err != nil {
			return err
		}
	}
	for _, t := range toUnsubscribe {
		if token := w.client.Unsubscribe(t); token.Wait() && token.Error() != nil {
			return fmt.Errorf("%w: unsubscribe %s: %v", bridgeerr.ErrConnectionFailed, t, token.Error())
		}
	}
	return nil
}

func (w *Worker) subscribe(t string) error {
	token := w.client.Subscribe(t, DefaultSubscribeQoS, w.onMessage)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("%w: subscribe %s: %v", bridgeerr.ErrConnectionFailed, t, token.Error())
	}
	return nil
}

func (w *Worker) resubscribeAll(client paho.Client) {
	w.mu.RLock()
	topics := make([]string, 0, len(w.subscriptions))
	for t := range w.subscriptions {
		topics = append(topics, t)
	}
	w.mu.RUnlock()

	for _, t := range topics {
		if token := client.Subscribe(t, DefaultSubscribeQoS, w.onMessage); token.Wait() && token.Error() != nil {
			w.logger.Error("mqttworker: failed to resubscribe", "endpoint", w.endpoint, "topic", t, "error", token.Error())
		}
	}
}

func (w *Worker) onMessage(_ paho.Client, msg paho.Message) {
	im := worker.InboundMessage{
		Source:    w.endpoint,
		Topic:     msg.Topic(),
		Payload:   msg.Payload(),
		QoS:       msg.Qos(),
		Retained:  msg.Retained(),
		IngressAt: time.Now(),
	}
	select {
	case w.inbound <- im:
	default:
		if w.fanInDropLog.Allow() {
			w.logger.Warn("mqttworker: inbound fan-in full, dropping message", "endpoint", w.endpoint, "topic", im.Topic)
		}
	}
}

// Publish enqueues msg for asynchronous delivery. Publish QoS mirrors the
// message's tagged QoS if known, else 0.
func (w *Worker) Publish(ctx context.Context, msg worker.OutboundMessage) error {
	select {
	case w.queue <- publishJob{msg: msg}:
		return nil
	default:
		w.recordError(bridgeerr.ErrQueueFull)
		return bridgeerr.ErrQueueFull
	}
}

func (w *Worker) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.queue:
			if w.client == nil || !w.client.IsConnected() {
				continue // dropped; non-goal to persist/replay
			}
			token := w.client.Publish(job.msg.Topic, job.msg.QoS, job.msg.Retained, job.msg.Payload)
			token.Wait()
			if err := token.Error(); err != nil {
				w.recordError(fmt.Errorf("%w: %v", bridgeerr.ErrConnectionFailed, err))
			}
		}
	}
}

// Status returns the worker's current observable state.
func (w *Worker) Status() worker.Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return worker.Status{
		Endpoint:      w.endpoint,
		Phase:         w.phase,
		Generation:    w.generation,
		Subscriptions: len(w.subscriptions),
		QueueDepth:    len(w.queue),
		LastError:     w.lastErr,
	}
}

// Shutdown disconnects cleanly, draining pending publishes bounded by the
// default 2s deadline (or ctx's deadline, whichever is sooner).
func (w *Worker) Shutdown(ctx context.Context) error {
	deadline := defaultDrainTimeout
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < deadline {
			deadline = remaining
		}
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()
drain:
	for {
		select {
		case job := <-w.queue:
			if w.client != nil && w.client.IsConnected() {
				token := w.client.Publish(job.msg.Topic, job.msg.QoS, job.msg.Retained, job.msg.Payload)
				token.Wait()
			}
		case <-drainCtx.Done():
			break drain
		default:
			break drain
		}
	}

	if w.cancel != nil {
		w.cancel()
	}
	if w.client != nil && w.client.IsConnected() {
		w.client.Disconnect(250)
	}
	w.setPhase(worker.PhaseDisconnected, nil)
	close(w.doneChan)
	return nil
}

func (w *Worker) setPhase(p worker.Phase, err error) {
	w.mu.Lock()
	w.phase = p
	if err != nil {
		w.lastErr = err.Error()
	}
	w.mu.Unlock()
}

func (w *Worker) recordError(err error) {
	w.mu.Lock()
	w.lastErr = err.Error()
	w.mu.Unlock()
	if w.events != nil {
		_ = bridgeevents.Publish(w.events, bridgeevents.TopicWorkerError, bridgeevents.WorkerErrorEvent{
			Endpoint: w.endpoint,
			Error:    err.Error(),
			At:       time.Now(),
		})
	}
}

func (w *Worker) publishConnected() {
	if w.events == nil {
		return
	}
	w.mu.RLock()
	gen := w.generation
	w.mu.RUnlock()
	_ = bridgeevents.Publish(w.events, bridgeevents.TopicWorkerConnected, bridgeevents.WorkerConnectedEvent{
		Endpoint:   w.endpoint,
		Generation: gen,
		At:         time.Now(),
	})
}

func (w *Worker) publishDisconnected(reason string) {
	if w.events == nil {
		return
	}
	_ = bridgeevents.Publish(w.events, bridgeevents.TopicWorkerDisconnected, bridgeevents.WorkerDisconnectedEvent{
		Endpoint: w.endpoint,
		Reason:   reason,
		At:       time.Now(),
	})
}
