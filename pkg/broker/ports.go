package broker

import (
	"context"
	"time"

	"github.com/gm-agent-org/gm-gate/pkg/policy"
	"github.com/gm-agent-org/gm-gate/pkg/types"
)

// Handle identifies a notification so it can be updated once the request
// resolves. Its meaning is private to the Notifier.
type Handle string

// Notifier delivers pending requests to the approver. Delivery is
// at-least-once; the request id deduplicates.
type Notifier interface {
	Notify(ctx context.Context, req types.PermissionRequest, timeout time.Duration) (Handle, error)
	Update(ctx context.Context, handle Handle, text string) error
}

// Responder accepts human decisions.
type Responder interface {
	Respond(resp types.PermissionResponse) bool
}

// Evaluator decides auto-approval. *policy.Engine implements it.
type Evaluator interface {
	Evaluate(req types.PermissionRequest) policy.MatchResult
}

// Limiter gates how often a user is asked. *ratelimit.Limiter implements it.
type Limiter interface {
	// Allow admits a request and counts it against the window atomically.
	Allow(userID string) (allowed bool, wait time.Duration)
	RecordDenial(userID string)
	RecordApproval(userID string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, types.PermissionRequest, time.Duration) (Handle, error) {
	return "", nil
}

func (nopNotifier) Update(context.Context, Handle, string) error { return nil }
