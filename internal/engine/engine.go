package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/bgshell/internal/logbuf"
	"github.com/dshills/bgshell/internal/logging"
	"github.com/dshills/bgshell/internal/process"
	"github.com/dshills/bgshell/internal/sanitize"
	"github.com/dshills/bgshell/internal/session"
)

const (
	// DefaultYield is the synchronous wait window before a still-running
	// command is handed off to background tracking.
	DefaultYield = 10 * time.Second

	// DefaultTimeout is the hard lifetime bound for a command.
	DefaultTimeout = 10 * time.Minute
)

// Request describes one command execution.
type Request struct {
	// Command is the shell command string to execute.
	Command string

	// ScopeKey is the isolation partition for any resulting session.
	ScopeKey string

	// Dir is the working directory. Empty means inherit.
	Dir string

	// Env adds environment variables for this command.
	Env map[string]string

	// Background skips the synchronous wait entirely.
	Background bool

	// Elevated runs the command through the elevation prefix.
	Elevated bool

	// Yield is the synchronous wait window. Zero means DefaultYield.
	Yield time.Duration

	// Timeout is the hard lifetime bound. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Outcome is the engine's answer to a Run call.
//
// A running outcome carries the session id for later polling. A terminal
// outcome (the command finished inside the yield window) carries the full
// output inline and no session id: nothing was registered.
type Outcome struct {
	Status     session.Status
	SessionID  string
	Lines      []string
	TotalLines int
	ExitCode   *int
	Duration   time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		e.log = l.WithComponent("engine")
	}
}

// WithElevatePrefix overrides the elevation command prefix.
func WithElevatePrefix(prefix []string) Option {
	return func(e *Engine) {
		e.elevatePrefix = prefix
	}
}

// Engine runs commands and reports their terminal status into the
// registry.
//
// Engine is safe for concurrent use; independent commands progress
// without blocking each other.
type Engine struct {
	reg           *session.Registry
	log           *logging.Logger
	elevatePrefix []string

	// procs maps live session ids to their process handles. A session
	// owns exactly one handle for its running lifetime; the finalizer
	// releases it on terminal transition.
	mu    sync.Mutex
	procs map[string]*process.Proc
}

// New creates an Engine backed by the given registry.
func New(reg *session.Registry, opts ...Option) *Engine {
	e := &Engine{
		reg:   reg,
		log:   logging.Nop,
		procs: make(map[string]*process.Proc),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes req per the backgrounding policy.
//
// Spawn failures are returned as errors; every failure after the process
// has started is recorded as terminal session state instead, observable
// only through polling.
func (e *Engine) Run(ctx context.Context, req Request) (Outcome, error) {
	yield := req.Yield
	if yield <= 0 {
		yield = DefaultYield
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	buf := logbuf.New()
	proc, err := process.Spawn(req.Command, process.Options{
		Dir:           req.Dir,
		Env:           req.Env,
		Elevated:      req.Elevated,
		ElevatePrefix: e.elevatePrefix,
		OnLine: func(line string) {
			buf.Append(sanitize.Line(line))
		},
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("spawn command: %w", err)
	}

	e.watchdog(proc, timeout)

	if req.Background {
		return e.handOff(req, buf, proc)
	}

	yieldTimer := time.NewTimer(yield)
	defer yieldTimer.Stop()

	select {
	case <-proc.Done():
		return inlineOutcome(buf, proc), nil
	case <-yieldTimer.C:
		return e.handOff(req, buf, proc)
	case <-ctx.Done():
		// Caller is gone; the command keeps running under a session so
		// its result stays observable.
		return e.handOff(req, buf, proc)
	}
}

// Kill force-terminates a running session's process. The session
// transitions to failed via its finalizer. Terminal sessions are a no-op.
// Unknown or foreign-scope ids return session.ErrSessionNotFound.
func (e *Engine) Kill(scopeKey, id string) error {
	s, err := e.reg.Get(scopeKey, id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	proc := e.procs[s.ID]
	e.mu.Unlock()

	if proc == nil {
		return nil // already terminal
	}
	return proc.Kill()
}

// Registry returns the engine's session registry.
func (e *Engine) Registry() *session.Registry {
	return e.reg
}

// watchdog enforces the hard timeout: once exceeded, the process group
// is killed and the finalizer records the failure.
func (e *Engine) watchdog(proc *process.Proc, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	go func() {
		defer timer.Stop()
		select {
		case <-proc.Done():
		case <-timer.C:
			e.log.Warn("hard timeout exceeded after %s, killing process %d", timeout, proc.PID())
			_ = proc.Kill()
		}
	}()
}

// handOff registers the still-running command as a session and returns a
// running handle. From here on the finalizer goroutine is the session's
// single writer.
func (e *Engine) handOff(req Request, buf *logbuf.Buffer, proc *process.Proc) (Outcome, error) {
	s := session.New(req.ScopeKey, req.Command, buf)
	id, err := e.reg.Register(req.ScopeKey, s)
	if err != nil {
		_ = proc.Kill()
		return Outcome{}, fmt.Errorf("register session: %w", err)
	}

	e.mu.Lock()
	e.procs[id] = proc
	e.mu.Unlock()

	go e.finalize(s, proc)

	e.log.Info("session %s backgrounded (%s)", id, s.Name)

	return Outcome{
		Status:     session.StatusRunning,
		SessionID:  id,
		TotalLines: buf.Len(),
		Duration:   proc.Runtime(),
	}, nil
}

// finalize waits for process exit and records the terminal status. It is
// the only writer for the session after hand-off.
func (e *Engine) finalize(s *session.Session, proc *process.Proc) {
	<-proc.Done()

	switch {
	case proc.Killed():
		s.MarkFailed(nil)
		e.log.Info("session %s failed (killed)", s.ID)
	case proc.ExitCode() == 0:
		s.MarkCompleted(0)
		e.log.Debug("session %s completed", s.ID)
	default:
		code := proc.ExitCode()
		s.MarkFailed(&code)
		e.log.Info("session %s failed (exit %d)", s.ID, code)
	}

	e.mu.Lock()
	delete(e.procs, s.ID)
	e.mu.Unlock()
}

// inlineOutcome builds the synchronous result for a command that finished
// inside the yield window. No session is registered.
func inlineOutcome(buf *logbuf.Buffer, proc *process.Proc) Outcome {
	buf.Freeze()
	lines := buf.All()

	out := Outcome{
		Lines:      lines,
		TotalLines: len(lines),
		Duration:   proc.Runtime(),
	}

	switch {
	case proc.Killed():
		out.Status = session.StatusFailed
	case proc.ExitCode() == 0:
		out.Status = session.StatusCompleted
		code := 0
		out.ExitCode = &code
	default:
		code := proc.ExitCode()
		out.Status = session.StatusFailed
		out.ExitCode = &code
	}
	return out
}
