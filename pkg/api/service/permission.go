package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gm-agent-org/gm-gate/pkg/audit"
	"github.com/gm-agent-org/gm-gate/pkg/broker"
	"github.com/gm-agent-org/gm-gate/pkg/clock"
	"github.com/gm-agent-org/gm-gate/pkg/notify"
	"github.com/gm-agent-org/gm-gate/pkg/policy"
	"github.com/gm-agent-org/gm-gate/pkg/ratelimit"
	"github.com/gm-agent-org/gm-gate/pkg/security"
	"github.com/gm-agent-org/gm-gate/pkg/types"
)

var (
	// ErrUnauthorized is returned when the responding user is not on the allow list.
	ErrUnauthorized = errors.New("user not authorized to respond")
	// ErrUnsupportedCallback is returned for callback actions the gate does not act on.
	ErrUnsupportedCallback = errors.New("unsupported callback action")
	// ErrAuditDisabled is returned when audit events are requested but auditing is off.
	ErrAuditDisabled = errors.New("audit log disabled")
)

// Broker is the part of *broker.Broker the service relies on.
type Broker interface {
	broker.Responder
	Submit(ctx context.Context, req types.PermissionRequest) (types.Outcome, error)
	Pending() []types.PermissionRequest
	Stats() broker.Stats
}

// RateStats reports and resets per-user limiter state. *ratelimit.Limiter
// implements it.
type RateStats interface {
	Stats(userID string) ratelimit.UserStats
	ClearUser(userID string)
}

// Deps wires the service to the gate components.
type Deps struct {
	Broker     Broker
	Policies   *policy.Engine
	Limiter    RateStats
	Classifier *security.Classifier
	Authorizer *security.Authorizer
	Audit      *audit.Logger
	Timeout    time.Duration
	// LogUnauthorized records rejected responders in the audit log.
	LogUnauthorized bool
}

// SubmitInput is a permission request as received from the agent side.
type SubmitInput struct {
	ID        string
	UserID    string
	Action    types.Action
	Target    string
	RiskLevel types.RiskLevel // classified when empty
	Context   string
}

// CallbackResult describes what a button press did.
type CallbackResult struct {
	Action    notify.CallbackAction
	RequestID string
	Resolved  bool
}

// Status is a snapshot of the gate.
type Status struct {
	Pending     int          `json:"pending"`
	Stats       broker.Stats `json:"stats"`
	Policies    int          `json:"policies"`
	SessionID   string       `json:"session_id"`
	AuditEvents int64        `json:"audit_events"`
}

// PermissionService is the transport-neutral API over the broker.
type PermissionService struct {
	deps  Deps
	clock clock.Clock
	log   *slog.Logger
}

// NewPermissionService creates a new PermissionService.
func NewPermissionService(deps Deps, log *slog.Logger) *PermissionService {
	if log == nil {
		log = slog.Default()
	}
	if deps.Classifier == nil {
		deps.Classifier = security.NewClassifier(".")
	}
	if deps.Audit == nil {
		deps.Audit = audit.Nop()
	}
	if deps.Timeout <= 0 {
		deps.Timeout = broker.DefaultTimeout
	}
	return &PermissionService{deps: deps, clock: clock.Real(), log: log}
}

// SetClock replaces the clock used to stamp new requests.
func (s *PermissionService) SetClock(c clock.Clock) { s.clock = c }

// Submit builds a request and blocks until the broker resolves it.
func (s *PermissionService) Submit(ctx context.Context, in SubmitInput) (types.Outcome, error) {
	risk := in.RiskLevel
	if risk == "" {
		risk = s.deps.Classifier.AssessRisk(in.Action, in.Target)
	}

	req := types.NewPermissionRequest(in.UserID, in.Action, in.Target, risk, in.Context, s.clock.Now(), s.deps.Timeout)
	if in.ID != "" {
		req.ID = in.ID
	}

	return s.deps.Broker.Submit(ctx, req)
}

// Respond forwards a human decision. It returns false when the request
// is unknown or already resolved.
func (s *PermissionService) Respond(requestID string, approved bool, userID string) (bool, error) {
	if !s.deps.Authorizer.Allowed(userID) {
		s.log.Warn("unauthorized response attempt", "user_id", userID, "request_id", requestID)
		if s.deps.LogUnauthorized {
			s.deps.Audit.LogWarning("unauthorized response attempt", map[string]any{
				"user_id":    userID,
				"request_id": requestID,
			})
		}
		return false, ErrUnauthorized
	}

	return s.deps.Broker.Respond(types.PermissionResponse{
		RequestID:   requestID,
		Approved:    approved,
		RespondedBy: userID,
		RespondedAt: s.clock.Now(),
	}), nil
}

// Callback routes a button press in "action:request_id" form.
func (s *PermissionService) Callback(data, userID string) (CallbackResult, error) {
	cb, err := notify.ParseCallbackData(data)
	if err != nil {
		return CallbackResult{}, err
	}
	s.deps.Audit.Log(audit.Event{
		EventType: audit.EventTransportCallback,
		RequestID: cb.RequestID,
		UserID:    userID,
		Metadata:  map[string]any{"action": string(cb.Action)},
	})

	res := CallbackResult{Action: cb.Action, RequestID: cb.RequestID}
	if !cb.IsDecision() {
		return res, fmt.Errorf("%w: %s", ErrUnsupportedCallback, cb.Action)
	}

	resolved, err := s.Respond(cb.RequestID, cb.Action == notify.CallbackApprove, userID)
	res.Resolved = resolved
	return res, err
}

func (s *PermissionService) Pending() []types.PermissionRequest {
	return s.deps.Broker.Pending()
}

func (s *PermissionService) Status() Status {
	stats := s.deps.Broker.Stats()
	return Status{
		Pending:     stats.Pending,
		Stats:       stats,
		Policies:    s.deps.Policies.Len(),
		SessionID:   s.deps.Audit.SessionID(),
		AuditEvents: s.deps.Audit.EventCount(),
	}
}

func (s *PermissionService) Policies() []policy.Policy {
	return s.deps.Policies.Policies()
}

func (s *PermissionService) RateLimit(userID string) ratelimit.UserStats {
	if s.deps.Limiter == nil {
		return ratelimit.UserStats{UserID: userID}
	}
	return s.deps.Limiter.Stats(userID)
}

// ClearRateLimit drops the limiter state of userID and returns the fresh view.
func (s *PermissionService) ClearRateLimit(userID string) ratelimit.UserStats {
	if s.deps.Limiter == nil {
		return ratelimit.UserStats{UserID: userID}
	}
	s.deps.Limiter.ClearUser(userID)
	s.log.Info("rate limit cleared", "user_id", userID)
	return s.deps.Limiter.Stats(userID)
}

// AuditEvents reads matching events from the live audit file.
func (s *PermissionService) AuditEvents(filter audit.Filter) ([]audit.Event, error) {
	if !s.deps.Audit.Enabled() {
		return nil, ErrAuditDisabled
	}
	return audit.ReadEvents(s.deps.Audit.Path(), filter)
}
