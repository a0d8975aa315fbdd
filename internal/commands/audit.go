package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gm-agent-org/gm-gate/pkg/audit"
)

// NewAuditCmd creates the command that prints events from the audit log.
func NewAuditCmd(opts *Options) *cobra.Command {
	var (
		path   string
		filter audit.Filter
		kind   string
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print audit events as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				path = cfg.Audit.LogPath
			}
			if kind != "" {
				filter.EventType = audit.EventType(kind)
				if !filter.EventType.Valid() {
					return fmt.Errorf("unknown event type %q", kind)
				}
			}

			events, err := audit.ReadEvents(path, filter)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, e := range events {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "Audit log file (defaults to the configured path)")
	cmd.Flags().StringVar(&filter.RequestID, "request", "", "Only events for this request ID")
	cmd.Flags().StringVar(&kind, "type", "", "Only events of this type")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 0, "Only the most recent N events")
	return cmd
}
