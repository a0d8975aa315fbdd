package audit

import "time"

// EventType is the closed set of audit record kinds.
type EventType string

const (
	// Permission events
	EventPermissionRequested    EventType = "permission_requested"
	EventPermissionApproved     EventType = "permission_approved"
	EventPermissionDenied       EventType = "permission_denied"
	EventPermissionAutoApproved EventType = "permission_auto_approved"
	EventPermissionTimeout      EventType = "permission_timeout"

	// Policy events
	EventPolicyEvaluated EventType = "policy_evaluated"
	EventPolicyMatched   EventType = "policy_matched"

	// Phase events
	EventPhaseStarted    EventType = "phase_started"
	EventPhaseCompleted  EventType = "phase_completed"
	EventPhaseTransition EventType = "phase_transition"

	// System events
	EventGateStarted  EventType = "gate_started"
	EventGateStopped  EventType = "gate_stopped"
	EventAgentStarted EventType = "agent_started"
	EventAgentStopped EventType = "agent_stopped"
	EventAgentExit    EventType = "agent_exit"

	// Transport events
	EventTransportConnected    EventType = "transport_connected"
	EventTransportDisconnected EventType = "transport_disconnected"
	EventTransportReconnected  EventType = "transport_reconnected"
	EventTransportMessageSent  EventType = "transport_message_sent"
	EventTransportCallback     EventType = "transport_callback"

	EventError   EventType = "error"
	EventWarning EventType = "warning"
)

var eventTypes = map[EventType]struct{}{
	EventPermissionRequested: {}, EventPermissionApproved: {}, EventPermissionDenied: {},
	EventPermissionAutoApproved: {}, EventPermissionTimeout: {},
	EventPolicyEvaluated: {}, EventPolicyMatched: {},
	EventPhaseStarted: {}, EventPhaseCompleted: {}, EventPhaseTransition: {},
	EventGateStarted: {}, EventGateStopped: {},
	EventAgentStarted: {}, EventAgentStopped: {}, EventAgentExit: {},
	EventTransportConnected: {}, EventTransportDisconnected: {}, EventTransportReconnected: {},
	EventTransportMessageSent: {}, EventTransportCallback: {},
	EventError: {}, EventWarning: {},
}

func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

// Terminal reports whether the event closes a permission request.
// Every request produces exactly one terminal event.
func (t EventType) Terminal() bool {
	switch t {
	case EventPermissionApproved, EventPermissionDenied, EventPermissionAutoApproved, EventPermissionTimeout:
		return true
	}
	return false
}

// Event is one line of the audit log. Unset optional fields are omitted
// from the serialized record.
type Event struct {
	Timestamp  time.Time      `json:"timestamp"`
	EventType  EventType      `json:"event_type"`
	SessionID  string         `json:"session_id"`
	RequestID  string         `json:"request_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Action     string         `json:"action,omitempty"`
	Target     string         `json:"target,omitempty"`
	RiskLevel  string         `json:"risk_level,omitempty"`
	PolicyName string         `json:"policy_name,omitempty"`
	Phase      string         `json:"phase,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Error      string         `json:"error,omitempty"`
}
