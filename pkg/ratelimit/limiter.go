// Package ratelimit decides whether a user may be asked for another
// approval. It combines a sliding one-minute request window with an
// exponential backoff that kicks in after repeated denials.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/gm-agent-org/gm-gate/pkg/clock"
)

const (
	Window  = 60 * time.Second
	MinWait = 100 * time.Millisecond
)

type Config struct {
	RequestsPerMinute int
	DenialBackoffBase time.Duration
	DenialBackoffMax  time.Duration
	DenialThreshold   int
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 30,
		DenialBackoffBase: 5 * time.Second,
		DenialBackoffMax:  300 * time.Second,
		DenialThreshold:   3,
	}
}

// UserRateState is the in-memory state kept per user. It is never persisted.
type UserRateState struct {
	RequestTimes []time.Time
	DenialCount  int
	LastDenial   time.Time
	BackoffUntil time.Time
}

// UserStats is a point-in-time view of one user's limits.
type UserStats struct {
	UserID             string  `json:"user_id"`
	RequestsLastMinute int     `json:"requests_last_minute"`
	RequestsRemaining  int     `json:"requests_remaining"`
	DenialCount        int     `json:"denial_count"`
	InBackoff          bool    `json:"in_backoff"`
	BackoffRemaining   float64 `json:"backoff_remaining"` // seconds
}

// Limiter is safe for concurrent use. A single mutex guards all users.
type Limiter struct {
	cfg   Config
	clock clock.Clock

	mu    sync.Mutex
	users map[string]*UserRateState
}

// New builds a Limiter. Non-positive fields of cfg take their
// DefaultConfig values.
func New(cfg Config, clk clock.Clock) *Limiter {
	if clk == nil {
		clk = clock.Real()
	}
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.DenialBackoffBase <= 0 {
		cfg.DenialBackoffBase = def.DenialBackoffBase
	}
	if cfg.DenialBackoffMax <= 0 {
		cfg.DenialBackoffMax = def.DenialBackoffMax
	}
	if cfg.DenialBackoffMax < cfg.DenialBackoffBase {
		cfg.DenialBackoffMax = cfg.DenialBackoffBase
	}
	if cfg.DenialThreshold <= 0 {
		cfg.DenialThreshold = def.DenialThreshold
	}
	return &Limiter{
		cfg:   cfg,
		clock: clk,
		users: make(map[string]*UserRateState),
	}
}

func (l *Limiter) stateLocked(userID string) *UserRateState {
	s, ok := l.users[userID]
	if !ok {
		s = &UserRateState{}
		l.users[userID] = s
	}
	return s
}

// Check reports whether userID may receive another request now. When it
// may not, wait is how long until it could.
func (l *Limiter) Check(userID string) (allowed bool, wait time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkLocked(l.stateLocked(userID), l.clock.Now())
}

func (l *Limiter) RecordRequest(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.stateLocked(userID)
	s.RequestTimes = append(s.RequestTimes, l.clock.Now())
}

// Allow is Check followed by RecordRequest in one critical section, so
// concurrent callers for the same user cannot overshoot the window.
func (l *Limiter) Allow(userID string) (allowed bool, wait time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.stateLocked(userID)
	now := l.clock.Now()
	if allowed, wait = l.checkLocked(s, now); allowed {
		s.RequestTimes = append(s.RequestTimes, now)
	}
	return allowed, wait
}

func (l *Limiter) checkLocked(s *UserRateState, now time.Time) (bool, time.Duration) {
	if s.BackoffUntil.After(now) {
		return false, s.BackoffUntil.Sub(now)
	}

	s.RequestTimes = prune(s.RequestTimes, now)
	if len(s.RequestTimes) >= l.cfg.RequestsPerMinute {
		wait := Window - now.Sub(s.RequestTimes[0])
		if wait < MinWait {
			wait = MinWait
		}
		return false, wait
	}
	return true, 0
}

// RecordDenial counts a human denial. From the configured threshold on,
// the user enters a backoff of base*2^(count-threshold), capped at max.
func (l *Limiter) RecordDenial(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.stateLocked(userID)
	now := l.clock.Now()
	s.DenialCount++
	s.LastDenial = now

	if s.DenialCount >= l.cfg.DenialThreshold {
		s.BackoffUntil = now.Add(l.backoff(s.DenialCount))
	}
}

func (l *Limiter) backoff(count int) time.Duration {
	seconds := l.cfg.DenialBackoffBase.Seconds() * math.Pow(2, float64(count-l.cfg.DenialThreshold))
	ceiling := l.cfg.DenialBackoffMax.Seconds()
	if math.IsInf(seconds, 0) || seconds > ceiling {
		seconds = ceiling
	}
	return time.Duration(seconds * float64(time.Second))
}

// RecordApproval forgives every prior denial.
func (l *Limiter) RecordApproval(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.stateLocked(userID)
	s.DenialCount = 0
	s.BackoffUntil = time.Time{}
}

func (l *Limiter) ClearUser(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.users, userID)
}

func (l *Limiter) Stats(userID string) UserStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := UserStats{UserID: userID}
	s, ok := l.users[userID]
	if !ok {
		st.RequestsRemaining = l.cfg.RequestsPerMinute
		return st
	}

	now := l.clock.Now()
	st.RequestsLastMinute = len(prune(s.RequestTimes, now))
	st.RequestsRemaining = max(0, l.cfg.RequestsPerMinute-st.RequestsLastMinute)
	st.DenialCount = s.DenialCount
	if s.BackoffUntil.After(now) {
		st.InBackoff = true
		st.BackoffRemaining = s.BackoffUntil.Sub(now).Seconds()
	}
	return st
}

// prune drops timestamps that have left the window ending at now. The
// returned slice shares the backing array of times.
func prune(times []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-Window)
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}
