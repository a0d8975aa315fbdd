// Package policy implements rule-based auto-approval of permission
// requests.
//
// A Policy matches a request when it is enabled, its action equals the
// request's action, its pattern glob-matches the request target and the
// request's risk does not exceed MaxRisk. Patterns use doublestar
// semantics for every action: "*" stays within one path segment, "**"
// crosses segments, and "{a,b}" and "[...]" are supported. Bash command
// targets therefore usually want "**" where a shell user would write "*".
package policy

import (
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gm-agent-org/gm-gate/pkg/types"
)

var (
	ErrInvalidPolicyPattern = errors.New("invalid policy pattern")
	ErrUnknownAction        = errors.New("unknown action")
	ErrUnknownRisk          = errors.New("unknown max_risk")
	ErrMissingName          = errors.New("policy name is required")
	ErrDuplicateName        = errors.New("duplicate policy name")
)

// Policy is one auto-approval rule as written in configuration.
type Policy struct {
	Name    string          `yaml:"name" json:"name"`
	Enabled bool            `yaml:"enabled" json:"enabled"`
	Action  types.Action    `yaml:"action" json:"action"`
	Pattern string          `yaml:"pattern" json:"pattern"`
	MaxRisk types.RiskLevel `yaml:"max_risk" json:"max_risk"`
}

// UnmarshalYAML applies the defaults for omitted keys: enabled=true and
// max_risk=medium.
func (p *Policy) UnmarshalYAML(unmarshal func(any) error) error {
	type raw Policy
	r := raw{Enabled: true, MaxRisk: types.RiskMedium}
	if err := unmarshal(&r); err != nil {
		return err
	}
	*p = Policy(r)
	return nil
}

// InvalidPolicyError reports which configured policy failed validation.
type InvalidPolicyError struct {
	Index int
	Name  string
	Err   error
}

func (e *InvalidPolicyError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("policy #%d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("policy #%d (%s): %v", e.Index, e.Name, e.Err)
}

func (e *InvalidPolicyError) Unwrap() error { return e.Err }

// Validate checks a single policy in isolation.
func (p Policy) Validate() error {
	if p.Name == "" {
		return ErrMissingName
	}
	if !p.Action.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownAction, p.Action)
	}
	if !p.MaxRisk.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownRisk, p.MaxRisk)
	}
	if p.Pattern == "" || !doublestar.ValidatePattern(p.Pattern) {
		return fmt.Errorf("%w %q", ErrInvalidPolicyPattern, p.Pattern)
	}
	return nil
}

// Matches reports whether p auto-approves req.
func (p Policy) Matches(req types.PermissionRequest) bool {
	if !p.Enabled || p.Action != req.Action {
		return false
	}
	if !req.RiskLevel.AtMost(p.MaxRisk) {
		return false
	}
	ok, err := doublestar.Match(p.Pattern, req.Target)
	return err == nil && ok
}

// MatchResult is the outcome of evaluating a request against a policy list.
type MatchResult struct {
	PolicyName string `json:"policy_name,omitempty"`
	Matched    bool   `json:"matched"`
	Reason     string `json:"reason,omitempty"`
}

// Evaluate returns the first policy in declaration order that matches req.
// It has no side effects.
func Evaluate(req types.PermissionRequest, policies []Policy) MatchResult {
	for _, p := range policies {
		if p.Matches(req) {
			return MatchResult{
				PolicyName: p.Name,
				Matched:    true,
				Reason:     fmt.Sprintf("%s matches %q with risk %s <= %s", req.Action, p.Pattern, req.RiskLevel, p.MaxRisk),
			}
		}
	}
	if len(policies) == 0 {
		return MatchResult{Reason: "no policies configured"}
	}
	return MatchResult{Reason: "no policy matched"}
}
