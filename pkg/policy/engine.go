package policy

import (
	"github.com/gm-agent-org/gm-gate/pkg/types"
)

// Engine holds a validated, immutable policy list. It is safe for
// concurrent use.
type Engine struct {
	policies []Policy
}

// NewEngine validates every policy and fails on the first bad one with an
// *InvalidPolicyError.
func NewEngine(policies []Policy) (*Engine, error) {
	seen := make(map[string]struct{}, len(policies))
	for i, p := range policies {
		if err := p.Validate(); err != nil {
			return nil, &InvalidPolicyError{Index: i, Name: p.Name, Err: err}
		}
		if _, dup := seen[p.Name]; dup {
			return nil, &InvalidPolicyError{Index: i, Name: p.Name, Err: ErrDuplicateName}
		}
		seen[p.Name] = struct{}{}
	}

	list := make([]Policy, len(policies))
	copy(list, policies)
	return &Engine{policies: list}, nil
}

func (e *Engine) Evaluate(req types.PermissionRequest) MatchResult {
	if e == nil {
		return Evaluate(req, nil)
	}
	return Evaluate(req, e.policies)
}

// Policies returns a copy of the loaded policies.
func (e *Engine) Policies() []Policy {
	if e == nil {
		return nil
	}
	out := make([]Policy, len(e.policies))
	copy(out, e.policies)
	return out
}

func (e *Engine) Len() int {
	if e == nil {
		return 0
	}
	return len(e.policies)
}
