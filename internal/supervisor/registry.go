package supervisor

import (
	"sync"

	"github.com/zhxiaoyu/zeromqtt/internal/config"
	"github.com/zhxiaoyu/zeromqtt/internal/worker"
)

// registry is the Supervisor's live worker table. The Supervisor is the
// only writer; Get is safe for concurrent readers (the Router, on the
// hot path).
type registry struct {
	mu      sync.RWMutex
	workers map[config.EndpointRef]worker.Worker
}

func newRegistry() *registry {
	return &registry{workers: make(map[config.EndpointRef]worker.Worker)}
}

// Get implements router.Registry.
func (r *registry) Get(ref config.EndpointRef) (worker.Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[ref]
	return w, ok
}

func (r *registry) put(ref config.EndpointRef, w worker.Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[ref] = w
}

func (r *registry) remove(ref config.EndpointRef) (worker.Worker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[ref]
	delete(r.workers, ref)
	return w, ok
}

func (r *registry) all() map[config.EndpointRef]worker.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[config.EndpointRef]worker.Worker, len(r.workers))
	for k, v := range r.workers {
		out[k] = v
	}
	return out
}
