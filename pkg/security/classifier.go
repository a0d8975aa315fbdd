// Package security holds the checks that sit around the permission
// broker: risk classification of incoming requests, redaction of request
// context before it is displayed, and responder authorization.
package security

import (
	"errors"
	"strings"

	"github.com/gm-agent-org/gm-gate/pkg/types"
)

var (
	ErrPathTraversal    = errors.New("path traversal detected")
	ErrSensitivePath    = errors.New("sensitive path")
	ErrBlockedCommand   = errors.New("blocked dangerous command")
	ErrCommandInjection = errors.New("potential command injection")
)

// elevatedCommands raise a shell command to high risk.
var elevatedCommands = []string{"sudo ", "su ", "rm ", "chmod ", "chown ", "git push", "kill ", "curl ", "wget "}

// Classifier assigns a risk level to requests whose caller did not
// supply one.
type Classifier struct {
	paths    *PathValidator
	commands *CommandValidator
}

func NewClassifier(workDir string) *Classifier {
	return &Classifier{
		paths:    NewPathValidator(workDir),
		commands: NewCommandValidator(),
	}
}

// AssessRisk grades an action on target.
//
//	file actions: sensitive path critical, escaping the work dir high,
//	              delete medium, otherwise low
//	bash:         blocked command critical, injection or elevated high,
//	              otherwise medium
//	mcp_tool:     medium
func (c *Classifier) AssessRisk(action types.Action, target string) types.RiskLevel {
	switch {
	case action.IsFile():
		err := c.paths.ValidatePath(target)
		switch {
		case errors.Is(err, ErrSensitivePath):
			return types.RiskCritical
		case err != nil:
			return types.RiskHigh
		case action == types.ActionFileDelete:
			return types.RiskMedium
		default:
			return types.RiskLow
		}

	case action == types.ActionBashExecute:
		err := c.commands.ValidateCommand(target)
		switch {
		case errors.Is(err, ErrBlockedCommand):
			return types.RiskCritical
		case err != nil:
			return types.RiskHigh
		}
		lower := strings.ToLower(strings.TrimSpace(target)) + " "
		for _, prefix := range elevatedCommands {
			if strings.HasPrefix(lower, prefix) || strings.Contains(lower, " "+prefix) {
				return types.RiskHigh
			}
		}
		return types.RiskMedium

	default:
		return types.RiskMedium
	}
}
