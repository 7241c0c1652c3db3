package supervisor

import (
	"context"
	"sync"

	"github.com/zhxiaoyu/zeromqtt/internal/config"
	"github.com/zhxiaoyu/zeromqtt/internal/worker"
)

// fakeWorker is an in-memory worker.Worker standing in for a real
// mqttworker/zmqworker connection, so supervisor tests exercise the
// lifecycle and reconfiguration logic without any network I/O.
type fakeWorker struct {
	ref config.EndpointRef

	mu            sync.Mutex
	started       bool
	shutdownCalls int
	subs          []string
	published     []worker.OutboundMessage
}

func newFakeWorker(ref config.EndpointRef) *fakeWorker {
	return &fakeWorker{ref: ref}
}

func (w *fakeWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.started = true
	return nil
}

func (w *fakeWorker) SetSubscriptions(ctx context.Context, set []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subs = append([]string(nil), set...)
	return nil
}

func (w *fakeWorker) Publish(ctx context.Context, msg worker.OutboundMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.published = append(w.published, msg)
	return nil
}

func (w *fakeWorker) Status() worker.Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	phase := worker.PhaseDisconnected
	if w.started {
		phase = worker.PhaseConnected
	}
	return worker.Status{
		Endpoint:      w.ref,
		Phase:         phase,
		Subscriptions: len(w.subs),
	}
}

func (w *fakeWorker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shutdownCalls++
	w.started = false
	return nil
}

// fakeWorkerSet tracks every fakeWorker a test's factories have handed
// out, keyed by endpoint, so assertions can inspect shutdown counts and
// subscriptions after a reconfiguration.
type fakeWorkerSet struct {
	mu      sync.Mutex
	workers map[config.EndpointRef]*fakeWorker
}

func newFakeWorkerSet() *fakeWorkerSet {
	return &fakeWorkerSet{workers: make(map[config.EndpointRef]*fakeWorker)}
}

func (s *fakeWorkerSet) get(ref config.EndpointRef) *fakeWorker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workers[ref]
}

func (s *fakeWorkerSet) make(ref config.EndpointRef) *fakeWorker {
	w := newFakeWorker(ref)
	s.mu.Lock()
	s.workers[ref] = w
	s.mu.Unlock()
	return w
}
