package audit

import (
	"time"

	"github.com/gm-agent-org/gm-gate/pkg/types"
)

// RequestEvent builds the permission_requested record. context must
// already be redacted.
func RequestEvent(req types.PermissionRequest, context string) Event {
	e := Event{
		EventType: EventPermissionRequested,
		RequestID: req.ID,
		UserID:    req.OwnerUserID,
		Action:    string(req.Action),
		Target:    req.Target,
		RiskLevel: string(req.RiskLevel),
		Metadata:  map[string]any{"timeout_seconds": req.Timeout().Seconds()},
	}
	if context != "" {
		e.Metadata["context"] = context
	}
	return e
}

// OutcomeEvent builds the terminal record for a resolved request.
func OutcomeEvent(req types.PermissionRequest, out types.Outcome, elapsed time.Duration) Event {
	e := Event{
		RequestID:  req.ID,
		UserID:     req.OwnerUserID,
		Action:     string(req.Action),
		Target:     req.Target,
		RiskLevel:  string(req.RiskLevel),
		PolicyName: out.PolicyName,
		Metadata:   map[string]any{"response_time_ms": elapsed.Milliseconds()},
	}

	switch out.Status {
	case types.StatusAutoApproved:
		e.EventType = EventPermissionAutoApproved
	case types.StatusApproved:
		e.EventType = EventPermissionApproved
		e.UserID = out.RespondedBy
	case types.StatusDenied:
		e.EventType = EventPermissionDenied
		e.UserID = out.RespondedBy
	case types.StatusRateLimited:
		e.EventType = EventPermissionDenied
		e.Metadata["reason"] = string(types.ReasonRateLimited)
		e.Metadata["wait_seconds"] = out.WaitSeconds
	case types.StatusTimedOut:
		e.EventType = EventPermissionTimeout
		e.Metadata["reason"] = string(out.Reason)
		e.Metadata["default_approved"] = out.Approved
	}
	return e
}

// PolicyEvent builds policy_matched or policy_evaluated.
func PolicyEvent(req types.PermissionRequest, matched bool, policyName, reason string) Event {
	e := Event{
		EventType:  EventPolicyEvaluated,
		RequestID:  req.ID,
		Action:     string(req.Action),
		Target:     req.Target,
		RiskLevel:  string(req.RiskLevel),
		PolicyName: policyName,
	}
	if matched {
		e.EventType = EventPolicyMatched
	}
	if reason != "" {
		e.Metadata = map[string]any{"reason": reason}
	}
	return e
}

func (l *Logger) LogPhaseTransition(phase string, metadata map[string]any) {
	l.Log(Event{EventType: EventPhaseTransition, Phase: phase, Metadata: metadata})
}

func (l *Logger) LogSystemEvent(t EventType, metadata map[string]any) {
	l.Log(Event{EventType: t, Metadata: metadata})
}

func (l *Logger) LogError(msg string, metadata map[string]any) {
	l.Log(Event{EventType: EventError, Error: msg, Metadata: metadata})
}

// LogWarning records msg in the error field with event type warning.
func (l *Logger) LogWarning(msg string, metadata map[string]any) {
	l.Log(Event{EventType: EventWarning, Error: msg, Metadata: metadata})
}
