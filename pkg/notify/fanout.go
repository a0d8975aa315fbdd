package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gm-agent-org/gm-gate/pkg/broker"
	"github.com/gm-agent-org/gm-gate/pkg/types"
)

// Fanout delivers to several notifiers. Notify succeeds if any target
// accepted the request.
type Fanout struct {
	targets []broker.Notifier

	mu      sync.Mutex
	handles map[broker.Handle][]broker.Handle // fanout handle -> per target, "" when failed
}

func NewFanout(targets ...broker.Notifier) *Fanout {
	return &Fanout{targets: targets, handles: make(map[broker.Handle][]broker.Handle)}
}

func (f *Fanout) Notify(ctx context.Context, req types.PermissionRequest, timeout time.Duration) (broker.Handle, error) {
	sub := make([]broker.Handle, len(f.targets))
	var errs []error
	delivered := false
	for i, t := range f.targets {
		h, err := t.Notify(ctx, req, timeout)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sub[i] = h
		delivered = true
	}
	if !delivered {
		if len(errs) == 0 {
			return "", nil
		}
		return "", errors.Join(errs...)
	}

	handle := broker.Handle(types.GenerateHandleID())
	f.mu.Lock()
	f.handles[handle] = sub
	f.mu.Unlock()
	return handle, nil
}

func (f *Fanout) Update(ctx context.Context, handle broker.Handle, text string) error {
	f.mu.Lock()
	sub, ok := f.handles[handle]
	delete(f.handles, handle)
	f.mu.Unlock()
	if !ok {
		return ErrUnknownHandle
	}

	var errs []error
	for i, h := range sub {
		if h == "" {
			continue
		}
		if err := f.targets[i].Update(ctx, h, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
