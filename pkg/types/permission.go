package types

import (
	"fmt"
	"strings"
	"time"
)

// Action is the kind of privileged operation the agent wants to perform.
type Action string

const (
	ActionFileCreate  Action = "file_create"
	ActionFileEdit    Action = "file_edit"
	ActionFileDelete  Action = "file_delete"
	ActionBashExecute Action = "bash_execute"
	ActionMCPTool     Action = "mcp_tool"
)

// Actions lists every recognized action in declaration order.
var Actions = []Action{
	ActionFileCreate,
	ActionFileEdit,
	ActionFileDelete,
	ActionBashExecute,
	ActionMCPTool,
}

func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// IsFile reports whether the action targets a file path.
func (a Action) IsFile() bool {
	return a == ActionFileCreate || a == ActionFileEdit || a == ActionFileDelete
}

func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

// RiskLevel is an ordered severity. Ordering comes from Rank, never from
// string comparison.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank returns the position of the level in the total order
// low < medium < high < critical. Unknown levels rank 0.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

func (r RiskLevel) Valid() bool { return r.Rank() > 0 }

// AtMost reports whether r <= max. Unknown levels never compare.
func (r RiskLevel) AtMost(max RiskLevel) bool {
	return r.Valid() && max.Valid() && r.Rank() <= max.Rank()
}

func ParseRiskLevel(s string) (RiskLevel, error) {
	r := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown risk level %q", s)
	}
	return r, nil
}

// DefaultAction decides what happens to a request nobody answered.
type DefaultAction string

const (
	DefaultApprove DefaultAction = "approve"
	DefaultDeny    DefaultAction = "deny"
)

func (d DefaultAction) Valid() bool { return d == DefaultApprove || d == DefaultDeny }

func (d DefaultAction) Approves() bool { return d == DefaultApprove }

// PermissionRequest is a single privileged action awaiting a decision.
// It is never mutated after creation.
type PermissionRequest struct {
	ID          string    `json:"id"`
	OwnerUserID string    `json:"owner_user_id"`
	Action      Action    `json:"action"`
	Target      string    `json:"target"`
	RiskLevel   RiskLevel `json:"risk_level"`
	Context     string    `json:"context,omitempty"` // May carry secrets; redact before display.
	CreatedAt   time.Time `json:"created_at"`
	TimeoutAt   time.Time `json:"timeout_at"`
}

// NewPermissionRequest builds a request created at now that expires after timeout.
func NewPermissionRequest(owner string, action Action, target string, risk RiskLevel, context string, now time.Time, timeout time.Duration) PermissionRequest {
	return PermissionRequest{
		ID:          GenerateRequestID(),
		OwnerUserID: owner,
		Action:      action,
		Target:      target,
		RiskLevel:   risk,
		Context:     context,
		CreatedAt:   now,
		TimeoutAt:   now.Add(timeout),
	}
}

// Timeout returns the configured lifetime of the request.
func (r PermissionRequest) Timeout() time.Duration {
	return r.TimeoutAt.Sub(r.CreatedAt)
}

// PermissionResponse is a human decision for one request.
type PermissionResponse struct {
	RequestID   string    `json:"request_id"`
	Approved    bool      `json:"approved"`
	RespondedBy string    `json:"responded_by"`
	RespondedAt time.Time `json:"responded_at"`
}
