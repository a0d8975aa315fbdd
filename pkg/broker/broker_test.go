package broker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gm-agent-org/gm-gate/pkg/audit"
	"github.com/gm-agent-org/gm-gate/pkg/clock"
	"github.com/gm-agent-org/gm-gate/pkg/policy"
	"github.com/gm-agent-org/gm-gate/pkg/ratelimit"
	"github.com/gm-agent-org/gm-gate/pkg/security"
	"github.com/gm-agent-org/gm-gate/pkg/types"
)

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordingSink) Log(e audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) snapshot() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Event(nil), s.events...)
}

func (s *recordingSink) terminal(requestID string) []audit.Event {
	var out []audit.Event
	for _, e := range s.snapshot() {
		if e.RequestID == requestID && e.EventType.Terminal() {
			out = append(out, e)
		}
	}
	return out
}

type fakeNotifier struct {
	notified  chan types.PermissionRequest
	notifyErr error

	mu      sync.Mutex
	calls   int
	updates map[Handle]string
}

func newFakeNotifier(buffer int) *fakeNotifier {
	return &fakeNotifier{
		notified: make(chan types.PermissionRequest, buffer),
		updates:  make(map[Handle]string),
	}
}

func (n *fakeNotifier) Notify(_ context.Context, req types.PermissionRequest, _ time.Duration) (Handle, error) {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
	n.notified <- req
	if n.notifyErr != nil {
		return "", n.notifyErr
	}
	return Handle("h-" + req.ID), nil
}

func (n *fakeNotifier) Update(_ context.Context, h Handle, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates[h] = text
	return nil
}

func (n *fakeNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func (n *fakeNotifier) update(h Handle) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.updates[h]
}

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	broker   *Broker
	clock    *clock.FakeClock
	limiter  *ratelimit.Limiter
	notifier *fakeNotifier
	sink     *recordingSink
}

func newFixture(t *testing.T, policies []policy.Policy, def types.DefaultAction) *fixture {
	t.Helper()
	engine, err := policy.NewEngine(policies)
	require.NoError(t, err)

	fc := clock.Fake(epoch)
	f := &fixture{
		clock:    fc,
		limiter:  ratelimit.New(ratelimit.DefaultConfig(), fc),
		notifier: newFakeNotifier(128),
		sink:     &recordingSink{},
	}
	f.broker = New(Config{DefaultAction: def, Timeout: time.Minute}, engine, f.limiter, f.notifier, f.sink, nil)
	f.broker.SetClock(fc)
	t.Cleanup(func() { _ = f.broker.Close() })
	return f
}

func (f *fixture) request(id string) types.PermissionRequest {
	return types.PermissionRequest{
		ID:          id,
		OwnerUserID: "42",
		Action:      types.ActionBashExecute,
		Target:      "make deploy",
		RiskLevel:   types.RiskHigh,
		CreatedAt:   f.clock.Now(),
		TimeoutAt:   f.clock.Now().Add(time.Minute),
	}
}

type result struct {
	out types.Outcome
	err error
}

func (f *fixture) submitAsync(ctx context.Context, req types.PermissionRequest) <-chan result {
	ch := make(chan result, 1)
	go func() {
		out, err := f.broker.Submit(ctx, req)
		ch <- result{out, err}
	}()
	return ch
}

func await(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("submit did not return")
		return result{}
	}
}

func TestPolicyAutoApprovesWithoutNotifier(t *testing.T) {
	f := newFixture(t, []policy.Policy{{
		Name: "src-edits", Enabled: true, Action: types.ActionFileEdit, Pattern: "src/**", MaxRisk: types.RiskMedium,
	}}, types.DefaultDeny)

	req := f.request("req_auto")
	req.Action = types.ActionFileEdit
	req.Target = "src/app.py"
	req.RiskLevel = types.RiskLow

	out, err := f.broker.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, types.StatusAutoApproved, out.Status)
	assert.True(t, out.Approved)
	assert.Equal(t, "src-edits", out.PolicyName)
	assert.Equal(t, 0, f.notifier.callCount())
	assert.Zero(t, f.limiter.Stats("42").RequestsLastMinute, "auto approvals do not touch the limiter")

	events := f.sink.snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, audit.EventPermissionRequested, events[0].EventType)
	assert.Equal(t, audit.EventPolicyMatched, events[1].EventType)
	assert.Equal(t, audit.EventPermissionAutoApproved, events[2].EventType)
	assert.EqualValues(t, 1, f.broker.Stats().AutoApproved)
}

func TestHumanApproval(t *testing.T) {
	f := newFixture(t, nil, types.DefaultDeny)

	done := f.submitAsync(context.Background(), f.request("req_1"))
	notified := <-f.notifier.notified
	assert.Equal(t, "req_1", notified.ID)
	assert.Equal(t, 1, f.broker.PendingCount())

	ok := f.broker.Respond(types.PermissionResponse{RequestID: "req_1", Approved: true, RespondedBy: "42"})
	require.True(t, ok)

	r := await(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, types.StatusApproved, r.out.Status)
	assert.True(t, r.out.Approved)
	assert.Equal(t, types.ReasonHuman, r.out.Reason)
	assert.Equal(t, "42", r.out.RespondedBy)
	assert.Equal(t, 0, f.broker.PendingCount())
	assert.Equal(t, "approved by 42", f.notifier.update("h-req_1"))

	term := f.sink.terminal("req_1")
	require.Len(t, term, 1)
	assert.Equal(t, audit.EventPermissionApproved, term[0].EventType)
}

func TestHumanDenialFeedsBackoff(t *testing.T) {
	f := newFixture(t, nil, types.DefaultDeny)

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("req_%d", i)
		done := f.submitAsync(context.Background(), f.request(id))
		<-f.notifier.notified
		require.True(t, f.broker.Respond(types.PermissionResponse{RequestID: id, Approved: false, RespondedBy: "42"}))
		r := await(t, done)
		require.Equal(t, types.StatusDenied, r.out.Status)
	}

	st := f.limiter.Stats("42")
	assert.Equal(t, 3, st.DenialCount)
	assert.True(t, st.InBackoff)

	out, err := f.broker.Submit(context.Background(), f.request("req_limited"))
	require.NoError(t, err)
	assert.Equal(t, types.StatusRateLimited, out.Status)
	assert.False(t, out.Approved)
	assert.Equal(t, types.ReasonRateLimited, out.Reason)
	assert.InDelta(t, 5.0, out.WaitSeconds, 0.001)

	term := f.sink.terminal("req_limited")
	require.Len(t, term, 1)
	assert.Equal(t, audit.EventPermissionDenied, term[0].EventType)
	assert.Equal(t, "rate_limited", term[0].Metadata["reason"])
}

// Rate limited refusals are not human denials and must not extend the
// backoff.
func TestRateLimitedDoesNotCountAsDenial(t *testing.T) {
	f := newFixture(t, nil, types.DefaultDeny)
	for i := 0; i < 3; i++ {
		f.limiter.RecordDenial("42")
	}

	for i := 0; i < 5; i++ {
		out, err := f.broker.Submit(context.Background(), f.request(fmt.Sprintf("req_%d", i)))
		require.NoError(t, err)
		require.Equal(t, types.StatusRateLimited, out.Status)
	}

	st := f.limiter.Stats("42")
	assert.Equal(t, 3, st.DenialCount)
	assert.InDelta(t, 5.0, st.BackoffRemaining, 0.001)
	assert.Equal(t, 0, f.notifier.callCount())
}

func TestPastTimeoutResolvesImmediately(t *testing.T) {
	f := newFixture(t, nil, types.DefaultDeny)

	req := f.request("req_late")
	req.TimeoutAt = f.clock.Now().Add(-time.Second)

	out, err := f.broker.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, types.StatusTimedOut, out.Status)
	assert.False(t, out.Approved)
	assert.Equal(t, types.ReasonTimeout, out.Reason)
	assert.Equal(t, 0, f.notifier.callCount())

	events := f.sink.snapshot()
	assert.Equal(t, audit.EventPermissionRequested, events[0].EventType)
	term := f.sink.terminal("req_late")
	require.Len(t, term, 1)
	assert.Equal(t, audit.EventPermissionTimeout, term[0].EventType)
}

func TestTimeoutAppliesDefaultAction(t *testing.T) {
	for _, def := range []types.DefaultAction{types.DefaultDeny, types.DefaultApprove} {
		t.Run(string(def), func(t *testing.T) {
			f := newFixture(t, nil, def)

			done := f.submitAsync(context.Background(), f.request("req_t"))
			<-f.notifier.notified
			f.clock.WaitForTimers(1)
			f.clock.Advance(time.Minute)

			r := await(t, done)
			require.NoError(t, r.err)
			assert.Equal(t, types.StatusTimedOut, r.out.Status)
			assert.Equal(t, def.Approves(), r.out.Approved)
			assert.Equal(t, types.ReasonTimeout, r.out.Reason)

			assert.False(t, f.broker.Respond(types.PermissionResponse{RequestID: "req_t", Approved: true}),
				"late response must be a no-op")
			assert.Len(t, f.sink.terminal("req_t"), 1)
			assert.Zero(t, f.limiter.Stats("42").DenialCount, "timeouts are not denials")
		})
	}
}

func TestDoubleRespondResolvesOnce(t *testing.T) {
	f := newFixture(t, nil, types.DefaultDeny)

	done := f.submitAsync(context.Background(), f.request("req_1"))
	<-f.notifier.notified

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(approved bool) {
			defer wg.Done()
			if f.broker.Respond(types.PermissionResponse{RequestID: "req_1", Approved: approved, RespondedBy: "42"}) {
				wins.Add(1)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	await(t, done)
	assert.Len(t, f.sink.terminal("req_1"), 1)
}

func TestRespondUnknown(t *testing.T) {
	f := newFixture(t, nil, types.DefaultDeny)
	assert.False(t, f.broker.Respond(types.PermissionResponse{RequestID: "nope", Approved: true}))
}

func TestDuplicateRequest(t *testing.T) {
	f := newFixture(t, nil, types.DefaultDeny)

	done := f.submitAsync(context.Background(), f.request("req_dup"))
	<-f.notifier.notified

	_, err := f.broker.Submit(context.Background(), f.request("req_dup"))
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	require.True(t, f.broker.Respond(types.PermissionResponse{RequestID: "req_dup", Approved: true, RespondedBy: "42"}))
	await(t, done)

	requested := 0
	for _, e := range f.sink.snapshot() {
		if e.EventType == audit.EventPermissionRequested {
			requested++
		}
	}
	assert.Equal(t, 1, requested, "rejected duplicate leaves no audit trail")
	assert.Len(t, f.sink.terminal("req_dup"), 1)

	// Once resolved the id may be reused.
	f.limiter.ClearUser("42")
	req := f.request("req_dup")
	req.TimeoutAt = f.clock.Now()
	out, err := f.broker.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, types.StatusTimedOut, out.Status)
}

func TestInvalidRequest(t *testing.T) {
	f := newFixture(t, nil, types.DefaultDeny)

	tests := map[string]func(*types.PermissionRequest){
		"no owner":     func(r *types.PermissionRequest) { r.OwnerUserID = "" },
		"bad action":   func(r *types.PermissionRequest) { r.Action = "launch_missiles" },
		"bad risk":     func(r *types.PermissionRequest) { r.RiskLevel = "" },
		"empty target": func(r *types.PermissionRequest) { r.Target = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			req := f.request("req_bad")
			mutate(&req)
			_, err := f.broker.Submit(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
	assert.Empty(t, f.sink.snapshot())
}

func TestSubmitFillsIDAndTimeout(t *testing.T) {
	f := newFixture(t, nil, types.DefaultDeny)

	req := f.request("")
	req.CreatedAt = time.Time{}
	req.TimeoutAt = time.Time{}
	done := f.submitAsync(context.Background(), req)

	notified := <-f.notifier.notified
	assert.Regexp(t, `^req_[0-9A-Z]{26}$`, notified.ID)
	assert.Equal(t, time.Minute, notified.Timeout())

	require.True(t, f.broker.Respond(types.PermissionResponse{RequestID: notified.ID, Approved: true, RespondedBy: "42"}))
	assert.Equal(t, notified.ID, await(t, done).out.RequestID)
}

func TestContextCancelResolvesEarly(t *testing.T) {
	f := newFixture(t, nil, types.DefaultApprove)

	ctx, cancel := context.WithCancel(context.Background())
	done := f.submitAsync(ctx, f.request("req_c"))
	<-f.notifier.notified
	cancel()

	r := await(t, done)
	assert.Equal(t, types.StatusTimedOut, r.out.Status)
	assert.Equal(t, types.ReasonCancelled, r.out.Reason)
	assert.True(t, r.out.Approved)
	assert.Equal(t, 0, f.broker.PendingCount())

	term := f.sink.terminal("req_c")
	require.Len(t, term, 1)
	assert.Equal(t, "cancelled", term[0].Metadata["reason"])
	assert.Equal(t, "session ended, default applied: approved", f.notifier.update("h-req_c"))
}

func TestCloseResolvesPendingAndRejectsNew(t *testing.T) {
	f := newFixture(t, nil, types.DefaultDeny)

	var dones []<-chan result
	for i := 0; i < 3; i++ {
		dones = append(dones, f.submitAsync(context.Background(), f.request(fmt.Sprintf("req_%d", i))))
		<-f.notifier.notified
	}
	require.Equal(t, 3, f.broker.PendingCount())

	require.NoError(t, f.broker.Close())

	for _, d := range dones {
		r := await(t, d)
		assert.Equal(t, types.ReasonCancelled, r.out.Reason)
		assert.False(t, r.out.Approved)
	}
	assert.EqualValues(t, 3, f.broker.Stats().TimedOut)

	_, err := f.broker.Submit(context.Background(), f.request("req_after"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, f.broker.Close())
}

func TestNotifyFailureKeepsRequestPending(t *testing.T) {
	f := newFixture(t, nil, types.DefaultDeny)
	f.notifier.notifyErr = errors.New("transport down")

	done := f.submitAsync(context.Background(), f.request("req_1"))
	<-f.notifier.notified

	require.True(t, f.broker.Respond(types.PermissionResponse{RequestID: "req_1", Approved: true, RespondedBy: "42"}))
	r := await(t, done)
	assert.Equal(t, types.StatusApproved, r.out.Status)
	assert.Empty(t, f.notifier.update(""), "no update without a handle")
}

func TestPendingRedactsContext(t *testing.T) {
	f := newFixture(t, nil, types.DefaultDeny)
	r, err := security.NewRedactor(security.DefaultRedactPatterns)
	require.NoError(t, err)
	f.broker.SetRedactor(r)

	req := f.request("req_1")
	req.Context = "API_TOKEN=abc123 make deploy"
	done := f.submitAsync(context.Background(), req)
	notified := <-f.notifier.notified
	assert.Equal(t, "API_TOKEN=[REDACTED] make deploy", notified.Context)

	pending := f.broker.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "API_TOKEN=[REDACTED] make deploy", pending[0].Context)

	requested := f.sink.snapshot()[0]
	assert.Equal(t, "API_TOKEN=[REDACTED] make deploy", requested.Metadata["context"])

	f.broker.Respond(types.PermissionResponse{RequestID: "req_1", Approved: false, RespondedBy: "42"})
	await(t, done)
}

// Every request must end with exactly one terminal audit event no matter
// how responses and timeouts interleave.
func TestConcurrentRequestsOneTerminalEventEach(t *testing.T) {
	const n = 60
	f := newFixture(t, nil, types.DefaultDeny)
	f.limiter = nil
	f.broker.limiter = nil

	var dones []<-chan result
	for i := 0; i < n; i++ {
		dones = append(dones, f.submitAsync(context.Background(), f.request(fmt.Sprintf("req_%02d", i))))
	}
	for i := 0; i < n; i++ {
		<-f.notifier.notified
	}
	f.clock.WaitForTimers(n)

	rng := rand.New(rand.NewSource(1))
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if rng.Intn(3) == 0 {
			continue
		}
		wg.Add(1)
		go func(id string, approved bool) {
			defer wg.Done()
			f.broker.Respond(types.PermissionResponse{RequestID: id, Approved: approved, RespondedBy: "42"})
		}(fmt.Sprintf("req_%02d", i), rng.Intn(2) == 0)
	}
	f.clock.Advance(time.Minute)
	wg.Wait()

	for _, d := range dones {
		r := await(t, d)
		require.NoError(t, r.err)
	}

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("req_%02d", i)
		assert.Len(t, f.sink.terminal(id), 1, id)
	}
	st := f.broker.Stats()
	assert.EqualValues(t, n, st.Approved+st.Denied+st.TimedOut)
	assert.Zero(t, st.Pending)
}

// Concurrent submits from one user share one window: with a ceiling of
// one, only a single request may reach the approver.
func TestConcurrentSubmitsRespectRateCeiling(t *testing.T) {
	const n = 20
	f := newFixture(t, nil, types.DefaultDeny)
	cfg := ratelimit.DefaultConfig()
	cfg.RequestsPerMinute = 1
	f.limiter = ratelimit.New(cfg, f.clock)
	f.broker.limiter = f.limiter

	var dones []<-chan result
	for i := 0; i < n; i++ {
		dones = append(dones, f.submitAsync(context.Background(), f.request(fmt.Sprintf("req_%02d", i))))
	}

	var limited int
	var pending <-chan result
	for _, d := range dones {
		select {
		case r := <-d:
			require.NoError(t, r.err)
			require.Equal(t, types.StatusRateLimited, r.out.Status)
			limited++
		case <-time.After(time.Second):
			require.Nil(t, pending, "more than one request reached pending")
			pending = d
		}
	}
	require.NotNil(t, pending)
	assert.Equal(t, n-1, limited)

	<-f.notifier.notified
	assert.Equal(t, 1, f.notifier.callCount())
	assert.Equal(t, 1, f.limiter.Stats("42").RequestsLastMinute)

	reqs := f.broker.Pending()
	require.Len(t, reqs, 1)
	require.True(t, f.broker.Respond(types.PermissionResponse{RequestID: reqs[0].ID, Approved: true, RespondedBy: "7"}))
	r := await(t, pending)
	require.NoError(t, r.err)
	assert.Equal(t, types.StatusApproved, r.out.Status)
}
