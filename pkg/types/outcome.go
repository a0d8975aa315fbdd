package types

import (
	"fmt"
	"time"
)

// Status is the terminal state a request resolved into.
type Status string

const (
	StatusAutoApproved Status = "auto_approved"
	StatusApproved     Status = "approved"
	StatusDenied       Status = "denied"
	StatusTimedOut     Status = "timed_out"
	StatusRateLimited  Status = "rate_limited"
)

// Reason is a machine-readable explanation of how a request was resolved.
type Reason string

const (
	ReasonPolicy      Reason = "policy"
	ReasonHuman       Reason = "human"
	ReasonRateLimited Reason = "rate_limited"
	ReasonTimeout     Reason = "timeout"
	ReasonCancelled   Reason = "cancelled"
)

// Outcome is the resolved decision returned to the caller of Submit.
// Approved is the effective decision: for timed out requests it carries
// the configured default action.
type Outcome struct {
	RequestID   string    `json:"request_id"`
	Status      Status    `json:"status"`
	Approved    bool      `json:"approved"`
	Reason      Reason    `json:"reason"`
	PolicyName  string    `json:"policy_name,omitempty"`
	RespondedBy string    `json:"responded_by,omitempty"`
	WaitSeconds float64   `json:"wait_seconds,omitempty"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

// Summary renders the outcome as a short line for the approver.
func (o Outcome) Summary() string {
	decision := "denied"
	if o.Approved {
		decision = "approved"
	}
	switch o.Status {
	case StatusAutoApproved:
		return fmt.Sprintf("auto-approved by policy %s", o.PolicyName)
	case StatusApproved, StatusDenied:
		return fmt.Sprintf("%s by %s", decision, o.RespondedBy)
	case StatusTimedOut:
		if o.Reason == ReasonCancelled {
			return fmt.Sprintf("session ended, default applied: %s", decision)
		}
		return fmt.Sprintf("timed out, default applied: %s", decision)
	case StatusRateLimited:
		return fmt.Sprintf("denied: rate limited, retry in %.1fs", o.WaitSeconds)
	default:
		return decision
	}
}
