package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/gm-agent-org/gm-gate/pkg/types"
)

var riskLabels = map[types.RiskLevel]string{
	types.RiskLow:      "LOW",
	types.RiskMedium:   "MEDIUM",
	types.RiskHigh:     "HIGH",
	types.RiskCritical: "CRITICAL",
}

// FormatPermissionRequest renders the approver-facing text. The request
// context must already be redacted.
func FormatPermissionRequest(req types.PermissionRequest, timeout time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Permission request %s\n", req.ID)
	fmt.Fprintf(&b, "Action: %s\n", req.Action)
	fmt.Fprintf(&b, "Target: %s\n", req.Target)
	fmt.Fprintf(&b, "Risk: %s\n", riskLabel(req.RiskLevel))
	if req.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", req.Context)
	}
	fmt.Fprintf(&b, "Expires in %s", timeout.Round(time.Second))
	return b.String()
}

func riskLabel(r types.RiskLevel) string {
	if l, ok := riskLabels[r]; ok {
		return l
	}
	return strings.ToUpper(string(r))
}
