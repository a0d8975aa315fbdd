package commands

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gm-agent-org/gm-gate/pkg/config"
)

// Options holds flags shared by all commands.
type Options struct {
	ConfigPath string
	LogLevel   string
}

// NewRootCmd builds the root command with shared flags.
func NewRootCmd() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:           "gmgate",
		Short:         "Permission gate for coding agents",
		Long:          "gmgate brokers permission requests from a coding agent to human approvers.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(NewServeCmd(opts))
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewCheckConfigCmd(opts))
	cmd.AddCommand(NewAuditCmd(opts))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// loadConfig loads the configuration and applies the --log-level override.
func (o *Options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(level)}))
}

func parseLogLevel(level string) slog.Level {
	normalized := strings.ToUpper(strings.TrimSpace(level))
	switch normalized {
	case "DEBUG", "VERBOSE":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
