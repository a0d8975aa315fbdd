package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gm-agent-org/gm-gate/pkg/api"
	"github.com/gm-agent-org/gm-gate/pkg/api/handler"
	"github.com/gm-agent-org/gm-gate/pkg/api/service"
	"github.com/gm-agent-org/gm-gate/pkg/audit"
	"github.com/gm-agent-org/gm-gate/pkg/broker"
	"github.com/gm-agent-org/gm-gate/pkg/config"
	"github.com/gm-agent-org/gm-gate/pkg/notify"
	"github.com/gm-agent-org/gm-gate/pkg/ratelimit"
	"github.com/gm-agent-org/gm-gate/pkg/security"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the command that runs the gate and its HTTP API.
func NewServeCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the permission gate",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)
			slog.SetDefault(logger)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return serve(ctx, cfg, logger)
		},
	}
}

// gate holds the wired components of a running gate.
type gate struct {
	audit  *audit.Logger
	broker *broker.Broker
	inbox  *notify.Inbox
	server *api.Server
}

func buildGate(cfg *config.Config, logger *slog.Logger) (*gate, error) {
	auditLog := audit.Nop()
	if cfg.Audit.Enabled {
		var err error
		auditLog, err = audit.NewLogger(cfg.Audit.Logger(), logger)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
	}

	engine, err := cfg.PolicyEngine()
	if err != nil {
		return nil, err
	}
	redactor, err := cfg.Redactor()
	if err != nil {
		return nil, err
	}
	limiter := ratelimit.New(cfg.RateLimit.Limiter(), nil)

	var (
		notifiers []broker.Notifier
		inbox     *notify.Inbox
	)
	if cfg.Notify.Inbox {
		inbox = notify.NewInbox(cfg.Notify.InboxCapacity)
		notifiers = append(notifiers, inbox)
	}
	if cfg.Notify.Log {
		notifiers = append(notifiers, notify.NewLogNotifier(logger))
	}

	b := broker.New(broker.Config{
		DefaultAction: cfg.Timeouts.DefaultAction,
		Timeout:       cfg.PermissionTimeout(),
	}, engine, limiter, notify.NewFanout(notifiers...), auditLog, logger)
	b.SetRedactor(redactor)

	svc := service.NewPermissionService(service.Deps{
		Broker:          b,
		Policies:        engine,
		Limiter:         limiter,
		Classifier:      security.NewClassifier(cfg.Security.WorkDir),
		Authorizer:      security.NewAuthorizer(cfg.Security.AuthorizedUsers),
		Audit:           auditLog,
		Timeout:         cfg.PermissionTimeout(),
		LogUnauthorized: cfg.Security.LogUnauthorizedAttempts,
	}, logger)

	var stream handler.Stream
	if inbox != nil {
		stream = inbox
	}
	server := api.NewServer(api.Config{
		Addr:           cfg.HTTP.Addr,
		APIKey:         cfg.HTTP.APIKey,
		ApproverAPIKey: cfg.HTTP.ApproverAPIKey,
		DevMode:        cfg.DevMode,
		ThrottleRPS:    cfg.HTTP.ThrottleRPS,
		ThrottleBurst:  cfg.HTTP.ThrottleBurst,
	}, svc, stream, logger)

	return &gate{audit: auditLog, broker: b, inbox: inbox, server: server}, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	g, err := buildGate(cfg, logger)
	if err != nil {
		return err
	}

	// Request contexts derive from base so streams end before Shutdown waits on them.
	base, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpSrv := &http.Server{
		Addr:              g.server.Addr(),
		Handler:           g.server.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}

	g.audit.LogSystemEvent(audit.EventGateStarted, map[string]any{
		"addr":     httpSrv.Addr,
		"policies": len(cfg.Policies),
		"timeout":  cfg.Timeouts.PermissionTimeoutSeconds,
	})
	logger.Info("gate started", "addr", httpSrv.Addr, "session_id", g.audit.SessionID(), "policies", len(cfg.Policies))

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		g.audit.LogPhaseTransition("draining", map[string]any{"pending": g.broker.PendingCount()})
		// Resolve waiting submitters first so their handlers can reply.
		_ = g.broker.Close()
		cancelBase()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	err = group.Wait()
	if err != nil {
		logger.Error("gate failed", "error", err)
		g.audit.LogError(err.Error(), map[string]any{"addr": httpSrv.Addr})
	}

	stats := g.broker.Stats()
	g.audit.LogSystemEvent(audit.EventGateStopped, map[string]any{
		"auto_approved": stats.AutoApproved,
		"approved":      stats.Approved,
		"denied":        stats.Denied,
		"timed_out":     stats.TimedOut,
		"rate_limited":  stats.RateLimited,
	})
	logger.Info("gate stopped", "events", g.audit.EventCount())
	return err
}
