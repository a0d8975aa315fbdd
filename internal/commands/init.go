package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gm-agent-org/gm-gate/pkg/config"
)

// NewInitCmd creates the command that writes a starter config file.
func NewInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "gmgate.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

// NewCheckConfigCmd creates the command that validates a config file.
func NewCheckConfigCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "config ok")
			fmt.Fprintf(out, "  policies:        %d\n", len(cfg.Policies))
			fmt.Fprintf(out, "  timeout:         %s (default %s)\n", cfg.PermissionTimeout(), cfg.Timeouts.DefaultAction)
			fmt.Fprintf(out, "  rate limit:      %d/min\n", cfg.RateLimit.RequestsPerMinute)
			if cfg.Audit.Enabled {
				fmt.Fprintf(out, "  audit log:       %s\n", cfg.Audit.LogPath)
			} else {
				fmt.Fprintln(out, "  audit log:       disabled")
			}
			fmt.Fprintf(out, "  authorized users: %d\n", len(cfg.Security.AuthorizedUsers))
			return nil
		},
	}
}
