package dto

import (
	"github.com/gm-agent-org/gm-gate/pkg/audit"
	"github.com/gm-agent-org/gm-gate/pkg/policy"
	"github.com/gm-agent-org/gm-gate/pkg/types"
)

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RespondResponse reports whether a response resolved its request.
type RespondResponse struct {
	Resolved bool   `json:"resolved"`
	Message  string `json:"message,omitempty"`
}

// CallbackResponse is the response for a routed button press.
type CallbackResponse struct {
	Action    string `json:"action"`
	RequestID string `json:"request_id,omitempty"`
	Resolved  bool   `json:"resolved"`
	Message   string `json:"message,omitempty"`
}

// PendingListResponse lists requests awaiting a decision.
type PendingListResponse struct {
	Requests []types.PermissionRequest `json:"requests"`
}

// PolicyListResponse lists the loaded auto-approval policies.
type PolicyListResponse struct {
	Policies []policy.Policy `json:"policies"`
}

// AuditListResponse lists audit events.
type AuditListResponse struct {
	Events []audit.Event `json:"events"`
}
