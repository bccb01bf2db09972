package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dshills/bgshell/internal/engine"
	"github.com/dshills/bgshell/internal/logging"
	"github.com/dshills/bgshell/internal/session"
)

// ProcTool is the process-control entry point.
//
// Request fields: action (required: poll, list, log, or kill), sessionId
// (required for poll, log, and kill), offset and limit (optional ints,
// log only).
type ProcTool struct {
	cfg Config
	eng *engine.Engine
	log *logging.Logger
}

// ProcOption configures a ProcTool.
type ProcOption func(*ProcTool)

// WithProcLogger sets the tool's logger.
func WithProcLogger(l *logging.Logger) ProcOption {
	return func(t *ProcTool) {
		t.log = l.WithComponent("tool.proc")
	}
}

// NewProcTool creates the process-control entry point. It shares the
// engine (and therefore the registry) with its paired ExecTool.
func NewProcTool(cfg Config, eng *engine.Engine, opts ...ProcOption) *ProcTool {
	t := &ProcTool{
		cfg: cfg.normalize(),
		eng: eng,
		log: logging.Nop,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Call executes one process-control request.
//
// A missing or unknown action and a missing sessionId are validation
// errors. An id that is unknown or belongs to another scope yields a
// failed-status Result, never an error.
func (t *ProcTool) Call(ctx context.Context, callID string, args []byte) (Result, error) {
	if !gjson.ValidBytes(args) {
		return Result{}, fmt.Errorf("invalid arguments: not a JSON object")
	}
	parsed := gjson.ParseBytes(args)

	action := parsed.Get("action").String()
	t.log.Debug("call %s: action=%s", callID, action)

	switch action {
	case "poll":
		return t.poll(parsed)
	case "list":
		return t.list()
	case "log":
		return t.readLog(parsed)
	case "kill":
		return t.kill(parsed)
	case "":
		return Result{}, fmt.Errorf("action is required")
	default:
		return Result{}, fmt.Errorf("unknown action: %q", action)
	}
}

// sessionID extracts the required sessionId argument.
func sessionID(parsed gjson.Result) (string, error) {
	id := parsed.Get("sessionId")
	if !id.Exists() || id.String() == "" {
		return "", fmt.Errorf("sessionId is required")
	}
	return id.String(), nil
}

func (t *ProcTool) poll(parsed gjson.Result) (Result, error) {
	id, err := sessionID(parsed)
	if err != nil {
		return Result{}, err
	}

	s, err := t.eng.Registry().Get(t.cfg.ScopeKey, id)
	if err != nil {
		return notFoundResult(), nil
	}

	sum := s.Snapshot()
	text := fmt.Sprintf("%s: %s", sum.Name, sum.Status)
	details := Details{
		Status:     sum.Status,
		SessionID:  sum.ID,
		TotalLines: intPtr(sum.TotalLines),
	}
	if code, ok := s.ExitCode(); ok {
		text = fmt.Sprintf("%s (exit %d)", text, code)
		details.ExitCode = intPtr(code)
	}
	return textResult(text, details), nil
}

func (t *ProcTool) list() (Result, error) {
	sessions := t.eng.Registry().List(t.cfg.ScopeKey)

	infos := make([]SessionInfo, 0, len(sessions))
	var sb strings.Builder
	for _, s := range sessions {
		sum := s.Snapshot()
		infos = append(infos, SessionInfo{
			SessionID: sum.ID,
			Name:      sum.Name,
			Status:    sum.Status,
			StartedAt: sum.StartedAt,
		})
		fmt.Fprintf(&sb, "%s  %s  %s\n", sum.ID, sum.Status, sum.Name)
	}

	text := sb.String()
	if text == "" {
		text = "no sessions"
	}
	return textResult(text, Details{Sessions: infos}), nil
}

func (t *ProcTool) readLog(parsed gjson.Result) (Result, error) {
	id, err := sessionID(parsed)
	if err != nil {
		return Result{}, err
	}

	s, err := t.eng.Registry().Get(t.cfg.ScopeKey, id)
	if err != nil {
		return notFoundResult(), nil
	}

	var offset, limit *int
	if o := parsed.Get("offset"); o.Exists() {
		offset = intPtr(int(o.Int()))
	}
	if l := parsed.Get("limit"); l.Exists() {
		limit = intPtr(int(l.Int()))
	}

	lines, total := s.Log.Slice(offset, limit)

	return textResult(strings.Join(lines, "\n"), Details{
		Status:     s.Status(),
		SessionID:  s.ID,
		TotalLines: intPtr(total),
	}), nil
}

func (t *ProcTool) kill(parsed gjson.Result) (Result, error) {
	id, err := sessionID(parsed)
	if err != nil {
		return Result{}, err
	}

	if err := t.eng.Kill(t.cfg.ScopeKey, id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return notFoundResult(), nil
		}
		return Result{}, err
	}

	s, err := t.eng.Registry().Get(t.cfg.ScopeKey, id)
	if err != nil {
		return notFoundResult(), nil
	}

	return textResult("termination requested", Details{
		Status:    s.Status(),
		SessionID: s.ID,
	}), nil
}
