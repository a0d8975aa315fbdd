// Package notify holds the transport side of the gate: notifiers that
// deliver pending requests to approvers and the callback data codec used
// by their buttons.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gm-agent-org/gm-gate/pkg/broker"
	"github.com/gm-agent-org/gm-gate/pkg/types"
)

var ErrUnknownHandle = errors.New("unknown notification handle")

const DefaultInboxCapacity = 1000

type Kind string

const (
	KindRequest Kind = "request"
	KindUpdate  Kind = "update"
)

// Notification is one message published to approvers.
type Notification struct {
	Seq       uint64                   `json:"seq"`
	Handle    string                   `json:"handle"`
	Kind      Kind                     `json:"kind"`
	Request   *types.PermissionRequest `json:"request,omitempty"`
	Text      string                   `json:"text"`
	Buttons   []Button                 `json:"buttons,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
}

// Inbox is an in-memory Notifier read by the HTTP event stream. It keeps
// the most recent notifications up to its capacity.
type Inbox struct {
	capacity int

	mu      sync.Mutex
	seq     uint64
	items   []Notification
	handles map[string]string // handle -> request id
	changed chan struct{}
}

func NewInbox(capacity int) *Inbox {
	if capacity <= 0 {
		capacity = DefaultInboxCapacity
	}
	return &Inbox{
		capacity: capacity,
		handles:  make(map[string]string),
		changed:  make(chan struct{}),
	}
}

func (in *Inbox) Notify(_ context.Context, req types.PermissionRequest, timeout time.Duration) (broker.Handle, error) {
	handle := types.GenerateHandleID()

	in.mu.Lock()
	defer in.mu.Unlock()
	in.handles[handle] = req.ID
	in.publishLocked(Notification{
		Handle:  handle,
		Kind:    KindRequest,
		Request: &req,
		Text:    FormatPermissionRequest(req, timeout),
		Buttons: PermissionButtons(req.ID),
	})
	return broker.Handle(handle), nil
}

func (in *Inbox) Update(_ context.Context, handle broker.Handle, text string) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if _, ok := in.handles[string(handle)]; !ok {
		return ErrUnknownHandle
	}
	delete(in.handles, string(handle))
	in.publishLocked(Notification{Handle: string(handle), Kind: KindUpdate, Text: text})
	return nil
}

func (in *Inbox) publishLocked(n Notification) {
	in.seq++
	n.Seq = in.seq
	n.CreatedAt = time.Now()
	in.items = append(in.items, n)
	if over := len(in.items) - in.capacity; over > 0 {
		in.items = append([]Notification(nil), in.items[over:]...)
	}
	close(in.changed)
	in.changed = make(chan struct{})
}

// Since returns the retained notifications with Seq greater than seq.
func (in *Inbox) Since(seq uint64) []Notification {
	in.mu.Lock()
	defer in.mu.Unlock()

	var out []Notification
	for _, n := range in.items {
		if n.Seq > seq {
			out = append(out, n)
		}
	}
	return out
}

// Changed returns a channel closed at the next publish.
func (in *Inbox) Changed() <-chan struct{} {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.changed
}

// Seq returns the sequence number of the latest notification.
func (in *Inbox) Seq() uint64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.seq
}
