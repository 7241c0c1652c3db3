// Package control provides the single serialized entrypoint external
// callers (an eventual REST layer, cmd/bridge's signal handler) use to
// drive the Supervisor. It exists to keep Start/Stop/Restart/ApplyConfig
// calls from racing each other — every Command is funneled through one
// Submit call at a time.
package control

import (
	"context"
	"fmt"
	"sync"

	"github.com/zhxiaoyu/zeromqtt/internal/bridgeerr"
	"github.com/zhxiaoyu/zeromqtt/internal/config"
	"github.com/zhxiaoyu/zeromqtt/internal/supervisor"
)

// Kind names the operation a Command requests.
type Kind int

const (
	Start Kind = iota
	Stop
	Restart
	ApplyConfig
)

func (k Kind) String() string {
	switch k {
	case Start:
		return "start"
	case Stop:
		return "stop"
	case Restart:
		return "restart"
	case ApplyConfig:
		return "apply_config"
	default:
		return "unknown"
	}
}

// Command is one request submitted to the Facade. Snapshot is only
// meaningful for ApplyConfig.
type Command struct {
	Kind     Kind
	Snapshot config.Snapshot
}

// Result is returned once a Command has finished processing.
type Result struct {
	State State
}

// State mirrors supervisor.State without exposing the supervisor package
// to callers that only need the lifecycle name.
type State = supervisor.State

// Facade serializes Commands onto a Supervisor, one at a time, in arrival
// order.
type Facade struct {
	sup *supervisor.Supervisor
	mu  sync.Mutex
}

// New constructs a Facade fronting sup.
func New(sup *supervisor.Supervisor) *Facade {
	return &Facade{sup: sup}
}

// Submit applies cmd against the Supervisor and blocks until it
// completes, returning the resulting lifecycle state.
func (f *Facade) Submit(ctx context.Context, cmd Command) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	switch cmd.Kind {
	case Start:
		err = f.sup.Start(ctx)
	case Stop:
		err = f.sup.Stop(ctx)
	case Restart:
		if stopErr := f.sup.Stop(ctx); stopErr != nil {
			err = stopErr
			break
		}
		err = f.sup.Start(ctx)
	case ApplyConfig:
		err = f.sup.ApplyConfig(ctx, cmd.Snapshot)
	default:
		err = fmt.Errorf("%w: unknown command kind %s", bridgeerr.ErrInternal, cmd.Kind)
	}

	return Result{State: f.sup.State()}, err
}
