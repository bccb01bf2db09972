package session

import (
	"strings"
	"sync"
	"time"

	"github.com/dshills/bgshell/internal/logbuf"
)

// Status is the externally observable state of a session.
type Status string

const (
	// StatusRunning indicates the command is still executing.
	StatusRunning Status = "running"
	// StatusCompleted indicates the command exited successfully.
	StatusCompleted Status = "completed"
	// StatusFailed indicates a non-zero exit, forced kill, or timeout.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status is absorbing.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// DefaultScope is the isolation partition used when no scope key is given.
const DefaultScope = "default"

// maxNameRunes bounds the display name derived from command text.
const maxNameRunes = 64

// Session represents one tracked command execution.
type Session struct {
	// ID is assigned by the registry at registration time.
	ID string

	// ScopeKey is the isolation partition the session belongs to.
	ScopeKey string

	// Name is a display label derived from the command text.
	Name string

	// Command is the exact shell command string being executed.
	Command string

	// StartedAt is when the command was launched.
	StartedAt time.Time

	// Log is the session's output buffer. Internally synchronized.
	Log *logbuf.Buffer

	mu         sync.RWMutex
	status     Status
	finishedAt time.Time
	exitCode   *int
}

// New creates a running session for command under scopeKey, backed by the
// given log buffer. The registry assigns the ID.
func New(scopeKey, command string, log *logbuf.Buffer) *Session {
	if scopeKey == "" {
		scopeKey = DefaultScope
	}
	if log == nil {
		log = logbuf.New()
	}
	return &Session{
		ScopeKey:  scopeKey,
		Name:      DeriveName(command),
		Command:   command,
		StartedAt: time.Now(),
		Log:       log,
		status:    StatusRunning,
	}
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// ExitCode returns the recorded exit code. The second return is false
// while running and after a forced kill.
func (s *Session) ExitCode() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.exitCode == nil {
		return 0, false
	}
	return *s.exitCode, true
}

// FinishedAt returns the terminal timestamp, zero while running.
func (s *Session) FinishedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finishedAt
}

// MarkCompleted transitions the session to completed with the given exit
// code and freezes the log. No-op if already terminal.
func (s *Session) MarkCompleted(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return
	}
	s.status = StatusCompleted
	s.exitCode = &code
	s.finishedAt = time.Now()
	s.Log.Freeze()
}

// MarkFailed transitions the session to failed and freezes the log. A nil
// code records an abnormal termination (forced kill, spawn failure).
// No-op if already terminal.
func (s *Session) MarkFailed(code *int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return
	}
	s.status = StatusFailed
	s.exitCode = code
	s.finishedAt = time.Now()
	s.Log.Freeze()
}

// Summary is a read-only snapshot of a session for listings.
type Summary struct {
	ID         string
	Name       string
	Command    string
	Status     Status
	StartedAt  time.Time
	FinishedAt time.Time
	TotalLines int
}

// Snapshot returns a consistent point-in-time summary.
func (s *Session) Snapshot() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Summary{
		ID:         s.ID,
		Name:       s.Name,
		Command:    s.Command,
		Status:     s.status,
		StartedAt:  s.StartedAt,
		FinishedAt: s.finishedAt,
		TotalLines: s.Log.Len(),
	}
}

// DeriveName produces the display name for a command: its first line,
// whitespace-normalized, truncated to a display width. Deterministic and
// independent of execution outcome.
func DeriveName(command string) string {
	line := command
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.Join(strings.Fields(line), " ")

	runes := []rune(line)
	if len(runes) > maxNameRunes {
		return string(runes[:maxNameRunes]) + "…"
	}
	return line
}
