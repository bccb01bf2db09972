package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dshills/bgshell/internal/engine"
	"github.com/dshills/bgshell/internal/logging"
	"github.com/dshills/bgshell/internal/session"
)

// ErrElevationDenied is returned when a call explicitly requests elevated
// execution but the adapter's policy disallows it. The message text is
// part of the contract.
var ErrElevationDenied = fmt.Errorf("elevated is not available right now.")

// ExecTool is the command-execution entry point.
//
// Request fields: command (required), background (optional bool), yieldMs
// (optional, overrides the configured yield threshold for this call),
// elevated (optional bool).
type ExecTool struct {
	cfg Config
	eng *engine.Engine
	log *logging.Logger
}

// ExecOption configures an ExecTool.
type ExecOption func(*ExecTool)

// WithExecLogger sets the tool's logger.
func WithExecLogger(l *logging.Logger) ExecOption {
	return func(t *ExecTool) {
		t.log = l.WithComponent("tool.exec")
	}
}

// NewExecTool creates the command-execution entry point.
func NewExecTool(cfg Config, eng *engine.Engine, opts ...ExecOption) *ExecTool {
	t := &ExecTool{
		cfg: cfg.normalize(),
		eng: eng,
		log: logging.Nop,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Call executes one tool request. args is the raw JSON argument object.
//
// Validation failures and denied elevation are returned as errors; a
// command that runs and fails is returned as a failed-status Result.
func (t *ExecTool) Call(ctx context.Context, callID string, args []byte) (Result, error) {
	if !gjson.ValidBytes(args) {
		return Result{}, fmt.Errorf("invalid arguments: not a JSON object")
	}
	parsed := gjson.ParseBytes(args)

	command := parsed.Get("command")
	if !command.Exists() || command.String() == "" {
		return Result{}, fmt.Errorf("command is required")
	}

	elevated, err := t.resolveElevation(parsed.Get("elevated"))
	if err != nil {
		return Result{}, err
	}

	yield := time.Duration(t.cfg.BackgroundMs) * time.Millisecond
	if y := parsed.Get("yieldMs"); y.Exists() {
		yield = time.Duration(y.Int()) * time.Millisecond
		if yield <= 0 {
			// An explicit zero yield means hand off immediately.
			yield = time.Millisecond
		}
	}

	t.log.Debug("call %s: %s", callID, session.DeriveName(command.String()))

	out, err := t.eng.Run(ctx, engine.Request{
		Command:    command.String(),
		ScopeKey:   t.cfg.ScopeKey,
		Background: parsed.Get("background").Bool(),
		Elevated:   elevated,
		Yield:      yield,
		Timeout:    time.Duration(t.cfg.TimeoutSec) * time.Second,
	})
	if err != nil {
		return Result{}, err
	}

	return execResult(out), nil
}

// resolveElevation applies the elevation policy to the call's elevated
// flag.
//
// An explicit true with a disallowing policy fails fast. No explicit flag
// with DefaultLevel "on" runs elevated only when the policy permits it;
// when it does not, the command still runs at the normal level.
func (t *ExecTool) resolveElevation(flag gjson.Result) (bool, error) {
	if flag.Exists() {
		if !flag.Bool() {
			return false, nil
		}
		if !t.cfg.Elevated.Permits() {
			return false, ErrElevationDenied
		}
		return true, nil
	}
	return t.cfg.Elevated.DefaultOn(), nil
}

// execResult translates an engine outcome into the wire result.
func execResult(out engine.Outcome) Result {
	if out.Status == session.StatusRunning {
		text := fmt.Sprintf("Command is running in the background.\nsessionId: %s", out.SessionID)
		return textResult(text, Details{
			Status:     session.StatusRunning,
			SessionID:  out.SessionID,
			TotalLines: intPtr(out.TotalLines),
		})
	}

	return textResult(strings.Join(out.Lines, "\n"), Details{
		Status:     out.Status,
		TotalLines: intPtr(out.TotalLines),
		ExitCode:   out.ExitCode,
	})
}
