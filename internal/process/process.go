package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// State represents the state of a spawned process.
type State int32

const (
	// StateRunning indicates the process is currently running.
	StateRunning State = iota
	// StateExited indicates the process exited on its own.
	StateExited
	// StateKilled indicates the process was terminated by a signal.
	StateKilled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// DefaultElevatePrefix is prepended to the shell invocation for elevated
// commands. Non-interactive so a missing credential fails instead of
// hanging on a password prompt.
var DefaultElevatePrefix = []string{"sudo", "-n", "--"}

// defaultBufferSize bounds a single captured output line.
const defaultBufferSize = 256 * 1024

// Options configures Spawn.
type Options struct {
	// Dir is the working directory. Empty means inherit.
	Dir string

	// Env adds environment variables on top of the current environment.
	Env map[string]string

	// Elevated wraps the shell invocation with ElevatePrefix.
	Elevated bool

	// ElevatePrefix overrides DefaultElevatePrefix.
	ElevatePrefix []string

	// OnLine is invoked for each newline-delimited chunk of merged
	// stdout/stderr output, in emission order. May be nil.
	OnLine func(line string)

	// BufferSize bounds the length of a single output line.
	BufferSize int
}

// Proc is a spawned shell command with lifecycle tracking.
//
// Proc is safe for concurrent use.
type Proc struct {
	// Command is the shell command string being executed.
	Command string

	// Started is the time the process was started.
	Started time.Time

	cmd *exec.Cmd

	// done is closed after the process has exited and all output has
	// been delivered to OnLine.
	done chan struct{}

	state    atomic.Int32
	exitCode atomic.Int32
	killed   atomic.Bool

	// exitErr stores any error from Wait.
	exitErr error
	mu      sync.RWMutex
}

// Spawn starts command through a shell interpreter and begins capturing
// its merged output. The returned Proc is already running.
func Spawn(command string, opts Options) (*Proc, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}

	argv := []string{shellPath(), "-c", command}
	if opts.Elevated {
		prefix := opts.ElevatePrefix
		if len(prefix) == 0 {
			prefix = DefaultElevatePrefix
		}
		argv = append(append([]string{}, prefix...), argv...)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = buildEnvironment(opts.Env)

	// Own process group so Kill can take down the whole pipeline.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	// A single shared pipe keeps stdout and stderr in emission order.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, fmt.Errorf("start process: %w", err)
	}

	// The child holds its own copy of the write end.
	_ = pw.Close()

	p := &Proc{
		Command: command,
		Started: time.Now(),
		cmd:     cmd,
		done:    make(chan struct{}),
	}
	p.state.Store(int32(StateRunning))
	p.exitCode.Store(-1) // -1 indicates not exited

	bufSize := opts.BufferSize
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}

	go p.captureLoop(pr, opts.OnLine, bufSize)

	return p, nil
}

// captureLoop drains merged output line by line, then reaps the process.
func (p *Proc) captureLoop(pr *os.File, onLine func(string), bufSize int) {
	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, bufSize), bufSize)

	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
	// If scanning stopped early (oversized line), keep draining so the
	// child never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, pr)
	_ = pr.Close()

	p.waitLoop()
}

// waitLoop reaps the process and records exit state.
func (p *Proc) waitLoop() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()

	exitCode := 0
	state := StateExited

	if err != nil {
		exitCode = -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				if status.Signaled() {
					state = StateKilled
					exitCode = -1
				}
			}
		}
	}

	if p.killed.Load() {
		state = StateKilled
		exitCode = -1
	}

	p.exitCode.Store(int32(exitCode))
	p.state.Store(int32(state))
	close(p.done)
}

// State returns the current process state.
func (p *Proc) State() State {
	return State(p.state.Load())
}

// ExitCode returns the process exit code. Returns -1 while running and
// after a forced kill.
func (p *Proc) ExitCode() int {
	return int(p.exitCode.Load())
}

// ExitError returns any error from waiting on the process.
func (p *Proc) ExitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// Killed reports whether the process was forcibly terminated.
func (p *Proc) Killed() bool {
	return p.killed.Load() || p.State() == StateKilled
}

// Done returns a channel that is closed once the process has exited and
// all of its output has been delivered.
func (p *Proc) Done() <-chan struct{} {
	return p.done
}

// IsRunning returns true if the process is currently running.
func (p *Proc) IsRunning() bool {
	return p.State() == StateRunning
}

// PID returns the process ID, or -1 if unavailable.
func (p *Proc) PID() int {
	if p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// Kill force-terminates the process group with SIGKILL. Idempotent and
// safe to call after natural exit.
func (p *Proc) Kill() error {
	if !p.IsRunning() {
		return nil
	}
	p.killed.Store(true)

	pid := p.PID()
	if pid <= 0 {
		return nil
	}

	// Negative pid targets the whole process group.
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		if err == syscall.ESRCH {
			return nil
		}
		// Fall back to the direct process if group kill is refused.
		if killErr := p.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			return fmt.Errorf("kill process: %w", killErr)
		}
	}
	return nil
}

// Runtime returns how long the process has been running, or the total
// runtime if it has exited.
func (p *Proc) Runtime() time.Duration {
	return time.Since(p.Started)
}

// shellPath returns the interpreter used for commands.
func shellPath() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}

// buildEnvironment layers extra variables over the current environment
// with deterministic ordering.
func buildEnvironment(extra map[string]string) []string {
	if len(extra) == 0 {
		return nil // inherit
	}

	envMap := make(map[string]string)
	for _, kv := range os.Environ() {
		if idx := strings.Index(kv, "="); idx > 0 {
			envMap[kv[:idx]] = kv[idx+1:]
		}
	}
	for k, v := range extra {
		envMap[k] = v
	}

	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(envMap))
	for _, k := range keys {
		env = append(env, k+"="+envMap[k])
	}
	return env
}

// Sentinel errors.
var (
	// ErrEmptyCommand is returned when Spawn receives a blank command.
	ErrEmptyCommand = fmt.Errorf("empty command")
)
