package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gm-agent-org/gm-gate/pkg/audit"
	"github.com/gm-agent-org/gm-gate/pkg/config"
)

func execute(ctx context.Context, args ...string) (string, error) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "gmgate.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{name: "debug", input: "DEBUG", want: slog.LevelDebug},
		{name: "verbose", input: "VERBOSE", want: slog.LevelDebug},
		{name: "warning", input: "WARNING", want: slog.LevelWarn},
		{name: "warn", input: "warn", want: slog.LevelWarn},
		{name: "error", input: "ERROR", want: slog.LevelError},
		{name: "info default", input: "INFO", want: slog.LevelInfo},
		{name: "empty", input: "", want: slog.LevelInfo},
		{name: "unknown", input: "nope", want: slog.LevelInfo},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseLogLevel(tc.input)
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(context.Background(), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "gmgate v"+Version) {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestInitWritesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "gmgate.yaml")

	if _, err := execute(context.Background(), "init", path); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := config.Load(path); err != nil {
		t.Fatalf("written template does not load: %v", err)
	}

	_, err := execute(context.Background(), "init", path)
	if !errors.Is(err, config.ErrConfigExists) {
		t.Fatalf("expected ErrConfigExists, got %v", err)
	}
	if _, err := execute(context.Background(), "init", "--force", path); err != nil {
		t.Fatalf("init --force: %v", err)
	}
}

func TestCheckConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
audit:
  log_path: `+filepath.Join(dir, "audit.jsonl")+`
policies:
  - name: src
    action: file_edit
    pattern: "src/**"
`)

	out, err := execute(context.Background(), "check-config", "--config", path)
	if err != nil {
		t.Fatalf("check-config: %v", err)
	}
	if !strings.Contains(out, "config ok") || !strings.Contains(out, "policies:        1") {
		t.Fatalf("unexpected output: %q", out)
	}

	bad := writeConfig(t, t.TempDir(), "timeouts:\n  permission_timeout_seconds: 5\n")
	if _, err := execute(context.Background(), "check-config", "--config", bad); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestAuditCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := audit.NewLogger(audit.Config{Path: path}, nil)
	if err != nil {
		t.Fatalf("audit logger: %v", err)
	}
	logger.LogSystemEvent(audit.EventGateStarted, nil)
	logger.Log(audit.Event{EventType: audit.EventPermissionRequested, RequestID: "req-1"})
	logger.Log(audit.Event{EventType: audit.EventPermissionDenied, RequestID: "req-1"})
	logger.LogSystemEvent(audit.EventGateStopped, nil)

	out, err := execute(context.Background(), "audit", "--file", path, "--request", "req-1")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 events, got %d: %q", len(lines), out)
	}

	out, err = execute(context.Background(), "audit", "--file", path, "--type", "gate_stopped")
	if err != nil {
		t.Fatalf("audit --type: %v", err)
	}
	if !strings.Contains(out, `"gate_stopped"`) || strings.Contains(out, `"gate_started"`) {
		t.Fatalf("unexpected output: %q", out)
	}

	if _, err := execute(context.Background(), "audit", "--file", path, "--type", "bogus"); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestServeStartsAndStops(t *testing.T) {
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.jsonl")
	path := writeConfig(t, dir, `
audit:
  log_path: `+auditPath+`
notify:
  log: false
http:
  addr: "127.0.0.1:0"
`)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := execute(ctx, "serve", "--config", path, "--log-level", "ERROR")
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for serve to exit")
	}

	events, err := audit.ReadEvents(auditPath, audit.Filter{})
	if err != nil {
		t.Fatalf("read audit: %v", err)
	}
	var kinds []audit.EventType
	for _, e := range events {
		kinds = append(kinds, e.EventType)
	}
	want := []audit.EventType{audit.EventGateStarted, audit.EventPhaseTransition, audit.EventGateStopped}
	if len(kinds) != len(want) {
		t.Fatalf("unexpected events: %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("unexpected events: %v", kinds)
		}
	}
	if events[1].Phase != "draining" {
		t.Fatalf("unexpected phase %q", events[1].Phase)
	}
	if events[0].SessionID == "" || events[0].SessionID != events[2].SessionID {
		t.Fatalf("session id not stamped consistently")
	}
}

func TestServeRecordsListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.jsonl")
	path := writeConfig(t, dir, `
audit:
  log_path: `+auditPath+`
notify:
  log: false
http:
  addr: "`+ln.Addr().String()+`"
`)

	done := make(chan error, 1)
	go func() {
		_, err := execute(context.Background(), "serve", "--config", path, "--log-level", "ERROR")
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected listen error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not fail on an occupied address")
	}

	events, err := audit.ReadEvents(auditPath, audit.Filter{EventType: audit.EventError})
	if err != nil {
		t.Fatalf("read audit: %v", err)
	}
	if len(events) != 1 || !strings.Contains(events[0].Error, "http server") {
		t.Fatalf("expected one http server error event, got %+v", events)
	}
}
