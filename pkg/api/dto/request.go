package dto

// SubmitPermissionRequest is the request body for submitting a permission request.
type SubmitPermissionRequest struct {
	ID        string `json:"id,omitempty"` // Optional: generated when empty
	UserID    string `json:"user_id" binding:"required"`
	Action    string `json:"action" binding:"required,oneof=file_create file_edit file_delete bash_execute mcp_tool"`
	Target    string `json:"target" binding:"required"`
	RiskLevel string `json:"risk_level,omitempty" binding:"omitempty,oneof=low medium high critical"` // Optional: classified when empty
	Context   string `json:"context,omitempty"`
}

// RespondRequest is the request body for answering a pending request.
type RespondRequest struct {
	Approved bool   `json:"approved"`
	UserID   string `json:"user_id" binding:"required"`
}

// CallbackRequest carries a button press from a notification transport.
type CallbackRequest struct {
	Data   string `json:"data" binding:"required"` // e.g. "approve:req_..."
	UserID string `json:"user_id" binding:"required"`
}
