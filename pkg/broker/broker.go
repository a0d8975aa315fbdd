// Package broker resolves permission requests.
//
// Each Submit runs through policy auto-approval, the per-user rate
// limiter and, when neither decides, a pending wait for a human response
// bounded by the request's TimeoutAt. The pending entry is removed under a
// single mutex by whichever of response, timeout or cancellation gets
// there first; the loser is a no-op.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gm-agent-org/gm-gate/pkg/audit"
	"github.com/gm-agent-org/gm-gate/pkg/clock"
	"github.com/gm-agent-org/gm-gate/pkg/security"
	"github.com/gm-agent-org/gm-gate/pkg/types"
)

var (
	ErrDuplicateRequest = errors.New("permission request already pending")
	ErrInvalidRequest   = errors.New("invalid permission request")
	ErrClosed           = errors.New("broker closed")
)

const DefaultTimeout = 300 * time.Second

type Config struct {
	DefaultAction types.DefaultAction
	// Timeout fills TimeoutAt for requests submitted without one.
	Timeout time.Duration
}

// Stats counts resolved requests by outcome.
type Stats struct {
	AutoApproved int64 `json:"auto_approved"`
	Approved     int64 `json:"approved"`
	Denied       int64 `json:"denied"`
	TimedOut     int64 `json:"timed_out"`
	RateLimited  int64 `json:"rate_limited"`
	Pending      int   `json:"pending"`
}

type entry struct {
	req      types.PermissionRequest
	response chan types.PermissionResponse // cap 1, written once under Broker.mu
	ready    bool                          // visible to Respond
}

type Broker struct {
	cfg      Config
	policies Evaluator
	limiter  Limiter
	notifier Notifier
	sink     audit.Sink
	redactor *security.Redactor
	clock    clock.Clock
	log      *slog.Logger

	ctx    context.Context // cancelled by Close
	cancel context.CancelFunc

	mu       sync.Mutex
	pending  map[string]*entry
	closed   bool
	inflight sync.WaitGroup

	autoApproved atomic.Int64
	approved     atomic.Int64
	denied       atomic.Int64
	timedOut     atomic.Int64
	rateLimited  atomic.Int64
}

// New builds a Broker. A nil notifier drops notifications, a nil limiter
// never limits and a nil sink discards audit events.
func New(cfg Config, policies Evaluator, limiter Limiter, notifier Notifier, sink audit.Sink, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if sink == nil {
		sink = audit.Nop()
	}
	if !cfg.DefaultAction.Valid() {
		cfg.DefaultAction = types.DefaultDeny
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		cfg:      cfg,
		policies: policies,
		limiter:  limiter,
		notifier: notifier,
		sink:     sink,
		clock:    clock.Real(),
		log:      logger,
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[string]*entry),
	}
}

// SetClock must be called before the first Submit.
func (b *Broker) SetClock(c clock.Clock) { b.clock = c }

// SetRedactor sets the redactor applied to request context before it
// leaves the broker. Must be called before the first Submit.
func (b *Broker) SetRedactor(r *security.Redactor) { b.redactor = r }

func (b *Broker) normalize(req types.PermissionRequest) (types.PermissionRequest, error) {
	if req.ID == "" {
		req.ID = types.GenerateRequestID()
	}
	if req.OwnerUserID == "" {
		return req, fmt.Errorf("%w: owner user id is required", ErrInvalidRequest)
	}
	if !req.Action.Valid() {
		return req, fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, req.Action)
	}
	if !req.RiskLevel.Valid() {
		return req, fmt.Errorf("%w: unknown risk level %q", ErrInvalidRequest, req.RiskLevel)
	}
	if req.Target == "" {
		return req, fmt.Errorf("%w: target is required", ErrInvalidRequest)
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = b.clock.Now()
	}
	if req.TimeoutAt.IsZero() {
		req.TimeoutAt = req.CreatedAt.Add(b.cfg.Timeout)
	}
	return req, nil
}

// Submit registers req and blocks until it resolves. The error is non-nil
// only for caller mistakes: a duplicate pending id, an invalid request or
// a closed broker. Every request that passes those checks produces one
// permission_requested and exactly one terminal audit event.
func (b *Broker) Submit(ctx context.Context, req types.PermissionRequest) (types.Outcome, error) {
	req, err := b.normalize(req)
	if err != nil {
		return types.Outcome{}, err
	}

	e := &entry{req: req, response: make(chan types.PermissionResponse, 1)}
	if err := b.reserve(e); err != nil {
		return types.Outcome{}, err
	}
	defer b.inflight.Done()

	start := b.clock.Now()
	log := b.log.With("request_id", req.ID, "user_id", req.OwnerUserID, "action", req.Action)
	b.sink.Log(audit.RequestEvent(req, b.redact(req.Context)))

	// Requested -> AutoApproved
	if b.policies != nil {
		match := b.policies.Evaluate(req)
		b.sink.Log(audit.PolicyEvent(req, match.Matched, match.PolicyName, match.Reason))
		if match.Matched {
			b.release(e)
			out := types.Outcome{
				RequestID:  req.ID,
				Status:     types.StatusAutoApproved,
				Approved:   true,
				Reason:     types.ReasonPolicy,
				PolicyName: match.PolicyName,
				ResolvedAt: b.clock.Now(),
			}
			log.Info("permission auto-approved", "policy", match.PolicyName)
			return b.finish(req, out, start), nil
		}
	}

	remaining := req.TimeoutAt.Sub(b.clock.Now())
	if remaining <= 0 {
		b.release(e)
		log.Warn("permission request already expired", "timeout_at", req.TimeoutAt)
		return b.finish(req, b.timeoutOutcome(req, types.ReasonTimeout), start), nil
	}

	// Requested -> RateLimited
	if b.limiter != nil {
		if allowed, wait := b.limiter.Allow(req.OwnerUserID); !allowed {
			b.release(e)
			out := types.Outcome{
				RequestID:   req.ID,
				Status:      types.StatusRateLimited,
				Approved:    false,
				Reason:      types.ReasonRateLimited,
				WaitSeconds: wait.Seconds(),
				ResolvedAt:  b.clock.Now(),
			}
			log.Warn("permission rate limited", "wait", wait)
			return b.finish(req, out, start), nil
		}
	}

	// Requested -> Pending
	b.mu.Lock()
	e.ready = true
	b.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(b.ctx, cancel)
	defer stop()

	shown := req
	shown.Context = b.redact(req.Context)
	handle, notifyErr := b.notifier.Notify(ctx, shown, remaining)
	if notifyErr != nil {
		log.Error("notify failed, request stays pending", "error", notifyErr)
	}

	out := b.wait(ctx, e, req.TimeoutAt.Sub(b.clock.Now()))
	switch out.Status {
	case types.StatusApproved:
		log.Info("permission approved", "responded_by", out.RespondedBy)
	case types.StatusDenied:
		log.Info("permission denied", "responded_by", out.RespondedBy)
	default:
		log.Warn("permission timed out", "reason", out.Reason, "default_approved", out.Approved)
	}
	out = b.finish(req, out, start)

	if notifyErr == nil && handle != "" {
		if err := b.notifier.Update(context.WithoutCancel(ctx), handle, out.Summary()); err != nil {
			log.Error("notification update failed", "error", err)
		}
	}
	return out, nil
}

// wait blocks in Pending until a response, the timeout or cancellation.
func (b *Broker) wait(ctx context.Context, e *entry, remaining time.Duration) types.Outcome {
	timer := b.clock.After(remaining)

	var reason types.Reason
	select {
	case resp := <-e.response:
		return b.humanOutcome(e.req, resp)
	case <-timer:
		reason = types.ReasonTimeout
	case <-ctx.Done():
		reason = types.ReasonCancelled
	}

	if !b.claim(e) {
		// Respond removed the entry first and its response is buffered.
		return b.humanOutcome(e.req, <-e.response)
	}
	return b.timeoutOutcome(e.req, reason)
}

func (b *Broker) humanOutcome(req types.PermissionRequest, resp types.PermissionResponse) types.Outcome {
	out := types.Outcome{
		RequestID:   req.ID,
		Status:      types.StatusDenied,
		Approved:    resp.Approved,
		Reason:      types.ReasonHuman,
		RespondedBy: resp.RespondedBy,
		ResolvedAt:  resp.RespondedAt,
	}
	if resp.Approved {
		out.Status = types.StatusApproved
	}
	if b.limiter != nil {
		if resp.Approved {
			b.limiter.RecordApproval(req.OwnerUserID)
		} else {
			b.limiter.RecordDenial(req.OwnerUserID)
		}
	}
	return out
}

func (b *Broker) timeoutOutcome(req types.PermissionRequest, reason types.Reason) types.Outcome {
	return types.Outcome{
		RequestID:  req.ID,
		Status:     types.StatusTimedOut,
		Approved:   b.cfg.DefaultAction.Approves(),
		Reason:     reason,
		ResolvedAt: b.clock.Now(),
	}
}

// finish records the terminal audit event and counters.
func (b *Broker) finish(req types.PermissionRequest, out types.Outcome, start time.Time) types.Outcome {
	switch out.Status {
	case types.StatusAutoApproved:
		b.autoApproved.Add(1)
	case types.StatusApproved:
		b.approved.Add(1)
	case types.StatusDenied:
		b.denied.Add(1)
	case types.StatusTimedOut:
		b.timedOut.Add(1)
	case types.StatusRateLimited:
		b.rateLimited.Add(1)
	}
	b.sink.Log(audit.OutcomeEvent(req, out, b.clock.Now().Sub(start)))
	return out
}

func (b *Broker) reserve(e *entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if _, exists := b.pending[e.req.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRequest, e.req.ID)
	}
	b.pending[e.req.ID] = e
	b.inflight.Add(1)
	return nil
}

func (b *Broker) release(e *entry) {
	b.claim(e)
}

// claim removes e from the pending map if it is still there. Exactly one
// caller can succeed.
func (b *Broker) claim(e *entry) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cur, ok := b.pending[e.req.ID]; ok && cur == e {
		delete(b.pending, e.req.ID)
		return true
	}
	return false
}

// Respond resolves a pending request. It returns false when the id is
// unknown, not yet pending or already resolved.
func (b *Broker) Respond(resp types.PermissionResponse) bool {
	if resp.RespondedAt.IsZero() {
		resp.RespondedAt = b.clock.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.pending[resp.RequestID]
	if !ok || !e.ready {
		return false
	}
	delete(b.pending, resp.RequestID)
	e.response <- resp
	return true
}

// Pending returns the requests awaiting a human decision, oldest first,
// with context redacted.
func (b *Broker) Pending() []types.PermissionRequest {
	b.mu.Lock()
	out := make([]types.PermissionRequest, 0, len(b.pending))
	for _, e := range b.pending {
		if e.ready {
			out = append(out, e.req)
		}
	}
	b.mu.Unlock()

	for i := range out {
		out[i].Context = b.redact(out[i].Context)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (b *Broker) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, e := range b.pending {
		if e.ready {
			n++
		}
	}
	return n
}

func (b *Broker) Stats() Stats {
	return Stats{
		AutoApproved: b.autoApproved.Load(),
		Approved:     b.approved.Load(),
		Denied:       b.denied.Load(),
		TimedOut:     b.timedOut.Load(),
		RateLimited:  b.rateLimited.Load(),
		Pending:      b.PendingCount(),
	}
}

// Close rejects new submits, resolves every pending request with the
// default action and waits for in-flight submits to return.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.inflight.Wait()
	return nil
}

func (b *Broker) redact(s string) string {
	return b.redactor.Redact(s)
}
