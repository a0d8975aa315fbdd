package notify

import (
	"errors"
	"fmt"
	"strings"
)

// CallbackAction is the verb carried by a button press.
type CallbackAction string

const (
	CallbackApprove CallbackAction = "approve"
	CallbackDeny    CallbackAction = "deny"
	CallbackCancel  CallbackAction = "cancel"
	CallbackHalt    CallbackAction = "halt"
	CallbackConfirm CallbackAction = "confirm"
)

var ErrInvalidCallback = errors.New("invalid callback data")

// CallbackData is the parsed form of "action[:request_id[:extra]]".
type CallbackData struct {
	Action    CallbackAction
	RequestID string
	Extra     string
}

func ParseCallbackData(data string) (CallbackData, error) {
	if data == "" {
		return CallbackData{}, fmt.Errorf("%w: empty", ErrInvalidCallback)
	}
	parts := strings.SplitN(data, ":", 3)

	cb := CallbackData{Action: CallbackAction(parts[0])}
	switch cb.Action {
	case CallbackApprove, CallbackDeny, CallbackCancel, CallbackHalt, CallbackConfirm:
	default:
		return CallbackData{}, fmt.Errorf("%w: unknown action %q", ErrInvalidCallback, parts[0])
	}
	if len(parts) > 1 {
		cb.RequestID = parts[1]
	}
	if len(parts) > 2 {
		cb.Extra = parts[2]
	}
	return cb, nil
}

func (c CallbackData) String() string {
	s := string(c.Action)
	if c.RequestID != "" || c.Extra != "" {
		s += ":" + c.RequestID
	}
	if c.Extra != "" {
		s += ":" + c.Extra
	}
	return s
}

// IsDecision reports whether the callback answers a permission request.
func (c CallbackData) IsDecision() bool {
	return (c.Action == CallbackApprove || c.Action == CallbackDeny) && c.RequestID != ""
}

// Button is one inline choice offered with a notification.
type Button struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

func PermissionButtons(requestID string) []Button {
	return []Button{
		{Label: "Approve", Data: CallbackData{Action: CallbackApprove, RequestID: requestID}.String()},
		{Label: "Deny", Data: CallbackData{Action: CallbackDeny, RequestID: requestID}.String()},
	}
}

// ConfirmationButtons builds confirm/cancel buttons for action. The data
// is carried in the request id slot.
func ConfirmationButtons(action, data string) []Button {
	return []Button{
		{Label: "Confirm", Data: CallbackData{Action: CallbackConfirm, RequestID: action, Extra: data}.String()},
		{Label: "Cancel", Data: CallbackData{Action: CallbackCancel, RequestID: action, Extra: data}.String()},
	}
}
