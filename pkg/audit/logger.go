// Package audit writes the append-only JSONL audit trail of the gate.
//
// Every permission request produces one permission_requested record and
// exactly one terminal record. Writes are best effort: an I/O failure is
// logged and counted but never returned to the decision path.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gm-agent-org/gm-gate/pkg/clock"
)

const (
	DefaultMaxFileSize = 100 * 1024 * 1024
	DefaultRotateCount = 5
)

// Sink receives audit events. Implementations must be safe for
// concurrent use and must not block for long.
type Sink interface {
	Log(event Event)
}

type Config struct {
	Path        string
	MaxFileSize int64 // bytes; the live file rotates once it reaches this size
	RotateCount int
	SessionID   string // generated when empty
}

// Logger is the file-backed Sink.
type Logger struct {
	path        string
	maxSize     int64
	rotateCount int
	sessionID   string
	disabled    bool

	mu     sync.Mutex // serializes rotate+append
	clock  clock.Clock
	logger *slog.Logger

	events      atomic.Int64
	writeErrors atomic.Int64
}

var ErrNoPath = errors.New("audit log path is empty")

func NewLogger(cfg Config, logger *slog.Logger) (*Logger, error) {
	if cfg.Path == "" {
		return nil, ErrNoPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.RotateCount <= 0 {
		cfg.RotateCount = DefaultRotateCount
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	l := &Logger{
		path:        cfg.Path,
		maxSize:     cfg.MaxFileSize,
		rotateCount: cfg.RotateCount,
		sessionID:   cfg.SessionID,
		clock:       clock.Real(),
		logger:      logger,
	}
	if l.sessionID == "" {
		l.sessionID = NewSessionID(l.clock.Now())
	}

	logger.Info("audit logger initialized", "path", l.path, "session_id", l.sessionID)
	return l, nil
}

// Nop returns a Logger that drops every event. Used when auditing is
// disabled in configuration.
func Nop() *Logger {
	return &Logger{
		disabled:  true,
		sessionID: NewSessionID(time.Now()),
		clock:     clock.Real(),
		logger:    slog.Default(),
	}
}

// NewSessionID formats gate-YYYYMMDD-HHMMSS-xxxxxx.
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("gate-%s-%s", now.UTC().Format("20060102-150405"), uuid.NewString()[:6])
}

// SetClock replaces the clock used to timestamp events.
func (l *Logger) SetClock(c clock.Clock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = c
}

// Log stamps, rotates if needed and appends the event.
func (l *Logger) Log(event Event) {
	if l.disabled {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.SessionID == "" {
		event.SessionID = l.sessionID
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.clock.Now().UTC()
	}

	if err := l.maybeRotateLocked(); err != nil {
		l.logger.Error("audit log rotation failed", "path", l.path, "error", err)
	}

	if err := l.appendLocked(event); err != nil {
		l.writeErrors.Add(1)
		l.logger.Error("failed to write audit log", "path", l.path, "event_type", event.EventType, "error", err)
		return
	}
	l.events.Add(1)
}

func (l *Logger) appendLocked(event Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return err
	}
	return f.Sync()
}

func (l *Logger) maybeRotateLocked() error {
	info, err := os.Stat(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() < l.maxSize {
		return nil
	}
	return l.rotateLocked()
}

// rotateLocked drops path.N, shifts path.i to path.i+1 and moves the live
// file to path.1.
func (l *Logger) rotateLocked() error {
	oldest := rotatedName(l.path, l.rotateCount)
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", oldest, err)
	}

	for i := l.rotateCount - 1; i >= 1; i-- {
		current := rotatedName(l.path, i)
		if _, err := os.Stat(current); err != nil {
			continue
		}
		if err := os.Rename(current, rotatedName(l.path, i+1)); err != nil {
			return fmt.Errorf("shift %s: %w", current, err)
		}
	}

	if err := os.Rename(l.path, rotatedName(l.path, 1)); err != nil {
		return fmt.Errorf("rotate live file: %w", err)
	}
	l.logger.Info("audit log rotated", "path", l.path)
	return nil
}

func rotatedName(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}

func (l *Logger) SessionID() string { return l.sessionID }

// EventCount returns the number of events written by this logger.
func (l *Logger) EventCount() int64 { return l.events.Load() }

// WriteErrors returns the number of events lost to I/O failures.
func (l *Logger) WriteErrors() int64 { return l.writeErrors.Load() }

func (l *Logger) Path() string { return l.path }

func (l *Logger) Enabled() bool { return !l.disabled }
