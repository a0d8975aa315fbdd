package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/gm-agent-org/gm-gate/pkg/broker"
	"github.com/gm-agent-org/gm-gate/pkg/types"
)

// LogNotifier writes notifications to a slog logger. Useful when no
// approver transport is attached.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{log: logger}
}

func (n *LogNotifier) Notify(_ context.Context, req types.PermissionRequest, timeout time.Duration) (broker.Handle, error) {
	handle := types.GenerateHandleID()
	n.log.Info("permission request pending",
		"handle", handle,
		"request_id", req.ID,
		"user_id", req.OwnerUserID,
		"action", req.Action,
		"target", req.Target,
		"risk", req.RiskLevel,
		"timeout", timeout,
	)
	return broker.Handle(handle), nil
}

func (n *LogNotifier) Update(_ context.Context, handle broker.Handle, text string) error {
	n.log.Info("permission request resolved", "handle", handle, "result", text)
	return nil
}
