// Package zmqworker implements the ZeroMQ variant of worker.Worker on top
// of github.com/go-zeromq/zmq4, the pure-Go ZeroMQ implementation (no
// cgo dependency on libzmq, unlike github.com/pebbe/zmq3/zmq4 seen
// elsewhere in the retrieved corpus). TCP transport only.
package zmqworker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/google/uuid"

	"github.com/zhxiaoyu/zeromqtt/internal/bridgeerr"
	"github.com/zhxiaoyu/zeromqtt/internal/bridgeevents"
	"github.com/zhxiaoyu/zeromqtt/internal/config"
	"github.com/zhxiaoyu/zeromqtt/internal/lograte"
	"github.com/zhxiaoyu/zeromqtt/internal/worker"
)

const defaultQueueSize = 10_000

// subscribePrefixByte and unsubscribePrefixByte are the XPUB/XSUB
// subscription-message markers per the ZeroMQ wire protocol (first frame
// byte 0x01 to subscribe, 0x00 to unsubscribe, followed by the prefix).
const (
	subscribePrefixByte   byte = 0x01
	unsubscribePrefixByte byte = 0x00
)

type publishJob struct {
	msg worker.OutboundMessage
}

// Worker is the ZeroMQ implementation of worker.Worker. Socket role
// (pub/sub/xpub/xsub) is fixed at construction from config.ZMQEndpoint.
type Worker struct {
	endpoint config.EndpointRef
	cfg      config.ZMQEndpoint
	inbound  chan<- worker.InboundMessage
	events   *bridgeevents.Subject
	logger   *slog.Logger

	socket zmq4.Socket

	mu         sync.RWMutex
	phase      worker.Phase
	generation uint64
	prefixes   map[string]bool
	lastErr    string

	queue  chan publishJob
	cancel context.CancelFunc

	fanInDropLog *lograte.Limiter
}

// New constructs a ZeroMQ worker for cfg.
func New(cfg config.ZMQEndpoint, inbound chan<- worker.InboundMessage, bus *bridgeevents.Subject, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("worker_instance", uuid.NewString())
	return &Worker{
		endpoint:     cfg.Ref(),
		cfg:          cfg,
		inbound:      inbound,
		events:       bus,
		logger:       logger,
		phase:        worker.PhaseDisconnected,
		prefixes:     make(map[string]bool),
		queue:        make(chan publishJob, defaultQueueSize),
		fanInDropLog: lograte.New(),
	}
}

func (w *Worker) newSocket(ctx context.Context) (zmq4.Socket, error) {
	switch w.cfg.Role {
	case config.RolePub:
		return zmq4.NewPub(ctx), nil
	case config.RoleSub:
		return zmq4.NewSub(ctx), nil
	case config.RoleXPub:
		return zmq4.NewXPub(ctx), nil
	case config.RoleXSub:
		return zmq4.NewXSub(ctx), nil
	default:
		return nil, fmt.Errorf("%w: unknown zmq role %s", bridgeerr.ErrConfigInvalid, w.cfg.Role)
	}
}

// Start opens the socket, binds and/or dials per config, and (for
// sub/xsub roles) launches the receive loop.
func (w *Worker) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	sock, err := w.newSocket(runCtx)
	if err != nil {
		cancel()
		return err
	}
	w.socket = sock

	if w.cfg.HighWaterMark > 0 {
		if err := sock.SetOption(zmq4.OptionHWM, w.cfg.HighWaterMark); err != nil {
			w.logger.Warn("zmqworker: failed to set HWM", "endpoint", w.endpoint, "error", err)
		}
	}

	w.setPhase(worker.PhaseConnecting, nil)

	if w.cfg.BindAddress != "" {
		if err := sock.Listen(w.cfg.BindAddress); err != nil {
			w.setPhase(worker.PhaseReconnecting, err)
			return fmt.Errorf("%w: listen %s: %v", bridgeerr.ErrConnectionFailed, w.cfg.BindAddress, err)
		}
	}
	for _, addr := range w.cfg.ConnectAddresses {
		if err := sock.Dial(addr); err != nil {
			w.setPhase(worker.PhaseReconnecting, err)
			return fmt.Errorf("%w: dial %s: %v", bridgeerr.ErrConnectionFailed, addr, err)
		}
	}

	w.setPhase(worker.PhaseConnected, nil)
	w.publishConnected()

	if w.cfg.Role.IsSubscriber() {
		go w.recvLoop(runCtx)
	}
	if w.cfg.Role.IsPublisher() {
		go w.publishLoop(runCtx)
	}

	return nil
}

func (w *Worker) recvLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := w.socket.Recv()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			w.recordError(fmt.Errorf("%w: recv: %v", bridgeerr.ErrConnectionFailed, err))
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if len(msg.Frames) == 0 {
			continue
		}

		topicFrame := string(msg.Frames[0])
		var payload []byte
		if len(msg.Frames) > 1 {
			payload = msg.Frames[1]
		}

		im := worker.InboundMessage{
			Source:    w.endpoint,
			Topic:     topicFrame,
			Payload:   payload,
			IngressAt: time.Now(),
		}
		select {
		case w.inbound <- im:
		default:
			if w.fanInDropLog.Allow() {
				w.logger.Warn("zmqworker: inbound fan-in full, dropping message", "endpoint", w.endpoint, "topic", im.Topic)
			}
		}
	}
}

// SetSubscriptions reconciles the byte-prefix filter set. For pub it is a
// no-op; for xpub it tracks observed downstream subscriptions but is not
// required for correctness; for sub it issues
// SetOption(OptionSubscribe/Unsubscribe); for xsub it sends XSUB
// subscription control frames.
func (w *Worker) SetSubscriptions(ctx context.Context, set []string) error {
	if w.cfg.Role == config.RolePub {
		return nil
	}

	want := make(map[string]bool, len(set))
	for _, p := range set {
		want[p] = true
	}

	w.mu.Lock()
	current := w.prefixes
	var toAdd, toRemove []string
	changed := false
	for p := range want {
		if !current[p] {
			toAdd = append(toAdd, p)
			changed = true
		}
	}
	for p := range current {
		if !want[p] {
			toRemove = append(toRemove, p)
			changed = true
		}
	}
	if changed {
		w.prefixes = want
		w.generation++
	}
	w.mu.Unlock()

	if w.cfg.Role == config.RoleXPub {
		return nil // tracked, not required for correctness
	}

	for _, p := range toAdd {
		if err := w.applySubscription(p, true); err != nil {
			return err
		}
	}
	for _, p := range toRemove {
		if err := w.applySubscription(p, false); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) applySubscription(prefix string, subscribe bool) error {
	if w.socket == nil {
		return nil
	}
	switch w.cfg.Role {
	case config.RoleSub:
		if subscribe {
			return w.socket.SetOption(zmq4.OptionSubscribe, prefix)
		}
		return w.socket.SetOption(zmq4.OptionUnsubscribe, prefix)
	case config.RoleXSub:
		marker := unsubscribePrefixByte
		if subscribe {
			marker = subscribePrefixByte
		}
		frame := append([]byte{marker}, []byte(prefix)...)
		return w.socket.Send(zmq4.NewMsg(frame))
	default:
		return nil
	}
}

// Publish enqueues a two-frame (topic, payload) message for asynchronous
// send. Meaningful only for pub/xpub roles.
func (w *Worker) Publish(ctx context.Context, msg worker.OutboundMessage) error {
	if !w.cfg.Role.IsPublisher() {
		return fmt.Errorf("%w: endpoint %s has role %s, not a publisher", bridgeerr.ErrConfigInvalid, w.endpoint, w.cfg.Role)
	}
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
			m := zmq4.NewMsgFrom([]byte(job.msg.Topic), job.msg.Payload)
			if err := w.socket.Send(m); err != nil {
				w.recordError(fmt.Errorf("%w: send: %v", bridgeerr.ErrConnectionFailed, err))
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
		Subscriptions: len(w.prefixes),
		QueueDepth:    len(w.queue),
		LastError:     w.lastErr,
	}
}

// Shutdown closes the socket, draining pending publishes bounded by
// ctx's deadline (or a 2s default).
func (w *Worker) Shutdown(ctx context.Context) error {
	deadline := 2 * time.Second
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
			if w.socket != nil && w.cfg.Role.IsPublisher() {
				m := zmq4.NewMsgFrom([]byte(job.msg.Topic), job.msg.Payload)
				_ = w.socket.Send(m)
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
	if w.socket != nil {
		if err := w.socket.Close(); err != nil {
			w.logger.Warn("zmqworker: error closing socket", "endpoint", w.endpoint, "error", err)
		}
	}
	w.setPhase(worker.PhaseDisconnected, nil)
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
	_ = bridgeevents.Publish(w.events, bridgeevents.TopicWorkerConnected, bridgeevents.WorkerConnectedEvent{
		Endpoint: w.endpoint,
		At:       time.Now(),
	})
}
