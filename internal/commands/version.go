package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gm-agent-org/gm-gate/pkg/api/handler"
)

// Version can be overridden at build time with -ldflags "-X ...".
var Version = "0.1.0"

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print gmgate version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gmgate v%s (%s/%s)\n", Version, runtime.GOOS, runtime.GOARCH)
		},
	}
}

func init() {
	handler.Version = Version
}
