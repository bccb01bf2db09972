package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dshills/bgshell/internal/engine"
	"github.com/dshills/bgshell/internal/session"
)

// newPair builds an ExecTool/ProcTool pair over a fresh registry.
func newPair(cfg Config) (*ExecTool, *ProcTool) {
	eng := engine.New(session.NewRegistry())
	return NewExecTool(cfg, eng), NewProcTool(cfg, eng)
}

func callJSON(t *testing.T, call func(context.Context, string, []byte) (Result, error), args string) Result {
	t.Helper()
	res, err := call(context.Background(), "call-1", []byte(args))
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	return res
}

// waitTerminal polls until the session leaves running or the deadline
// passes, returning the final poll result.
func waitTerminal(t *testing.T, proc *ProcTool, id string, timeout time.Duration) Result {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		res := callJSON(t, proc.Call, fmt.Sprintf(`{"action":"poll","sessionId":%q}`, id))
		if res.Details.Status != session.StatusRunning {
			return res
		}
		if time.Now().After(deadline) {
			t.Fatalf("session %s never reached a terminal status", id)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestExec_SyncResult(t *testing.T) {
	exec, _ := newPair(DefaultConfig())

	res := callJSON(t, exec.Call, `{"command":"echo hello"}`)

	if res.Details.Status != session.StatusCompleted {
		t.Errorf("expected completed, got %v", res.Details.Status)
	}
	if res.Details.SessionID != "" {
		t.Errorf("sync result must carry no session id, got %q", res.Details.SessionID)
	}
	if len(res.Content) != 1 || res.Content[0].Type != "text" || res.Content[0].Text != "hello" {
		t.Errorf("unexpected content: %+v", res.Content)
	}
	if res.Details.ExitCode == nil || *res.Details.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %v", res.Details.ExitCode)
	}
}

func TestExec_YieldThenBackground(t *testing.T) {
	exec, proc := newPair(DefaultConfig())

	res := callJSON(t, exec.Call, `{"command":"echo working; sleep 1; echo done","yieldMs":100}`)

	if res.Details.Status != session.StatusRunning {
		t.Fatalf("expected running, got %v", res.Details.Status)
	}
	id := res.Details.SessionID
	if id == "" {
		t.Fatal("expected session id in details")
	}
	if !strings.Contains(res.Content[0].Text, id) {
		t.Errorf("expected handle text to mention the session id, got %q", res.Content[0].Text)
	}

	final := waitTerminal(t, proc, id, 10*time.Second)
	if final.Details.Status != session.StatusCompleted {
		t.Fatalf("expected completed, got %v", final.Details.Status)
	}

	logRes := callJSON(t, proc.Call, fmt.Sprintf(`{"action":"log","sessionId":%q}`, id))
	text := logRes.Content[0].Text
	if !strings.Contains(text, "working") || !strings.Contains(text, "done") {
		t.Errorf("expected full output in log, got %q", text)
	}
}

func TestExec_ExplicitBackground(t *testing.T) {
	exec, proc := newPair(DefaultConfig())

	start := time.Now()
	res := callJSON(t, exec.Call, `{"command":"echo quick","background":true}`)
	if time.Since(start) > time.Second {
		t.Errorf("explicit background blocked for %v", time.Since(start))
	}

	if res.Details.Status != session.StatusRunning {
		t.Fatalf("expected running, got %v", res.Details.Status)
	}

	listRes := callJSON(t, proc.Call, `{"action":"list"}`)
	if len(listRes.Details.Sessions) != 1 {
		t.Fatalf("expected 1 listed session, got %d", len(listRes.Details.Sessions))
	}
	if listRes.Details.Sessions[0].SessionID != res.Details.SessionID {
		t.Error("listed session does not match returned handle")
	}
}

func TestExec_NameDerivation(t *testing.T) {
	exec, proc := newPair(DefaultConfig())

	res := callJSON(t, exec.Call, `{"command":"echo hello","background":true}`)
	listRes := callJSON(t, proc.Call, `{"action":"list"}`)

	if len(listRes.Details.Sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(listRes.Details.Sessions))
	}
	if got := listRes.Details.Sessions[0].Name; got != "echo hello" {
		t.Errorf("expected name %q, got %q", "echo hello", got)
	}
	_ = res
}

func TestExec_TimeoutEnforced(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimeoutSec = 1
	exec, proc := newPair(cfg)

	res := callJSON(t, exec.Call, `{"command":"sleep 30; echo survived","background":true}`)

	final := waitTerminal(t, proc, res.Details.SessionID, 10*time.Second)
	if final.Details.Status != session.StatusFailed {
		t.Errorf("expected failed after timeout, got %v", final.Details.Status)
	}
	if final.Details.ExitCode != nil {
		t.Errorf("expected absent exit code after forced kill, got %v", *final.Details.ExitCode)
	}
}

func TestExec_ElevationDenied(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Elevated = ElevatedPolicy{Enabled: true, Allowed: false, DefaultLevel: "off"}
	exec, _ := newPair(cfg)

	_, err := exec.Call(context.Background(), "call-1", []byte(`{"command":"echo hi","elevated":true}`))
	if err == nil {
		t.Fatal("expected elevation error")
	}
	if !strings.Contains(err.Error(), "elevated is not available right now.") {
		t.Errorf("unexpected error message: %q", err.Error())
	}
}

func TestExec_ElevationDefaultOnDowngradesSilently(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Elevated = ElevatedPolicy{Enabled: true, Allowed: false, DefaultLevel: "on"}
	exec, _ := newPair(cfg)

	res := callJSON(t, exec.Call, `{"command":"echo unprivileged"}`)
	if res.Details.Status != session.StatusCompleted {
		t.Errorf("expected command to run unprivileged, got %v", res.Details.Status)
	}
	if res.Content[0].Text != "unprivileged" {
		t.Errorf("unexpected output: %q", res.Content[0].Text)
	}
}

func TestExec_ExplicitFalseIgnoresPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Elevated = ElevatedPolicy{Enabled: false, Allowed: false, DefaultLevel: "off"}
	exec, _ := newPair(cfg)

	res := callJSON(t, exec.Call, `{"command":"echo ok","elevated":false}`)
	if res.Details.Status != session.StatusCompleted {
		t.Errorf("expected completed, got %v", res.Details.Status)
	}
}

func TestExec_ValidationErrors(t *testing.T) {
	exec, _ := newPair(DefaultConfig())

	if _, err := exec.Call(context.Background(), "c", []byte(`{}`)); err == nil {
		t.Error("expected error for missing command")
	}
	if _, err := exec.Call(context.Background(), "c", []byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestLog_TailAndOffsetSlicing(t *testing.T) {
	exec, proc := newPair(DefaultConfig())

	res := callJSON(t, exec.Call, `{"command":"echo one; echo two; echo three","background":true}`)
	id := res.Details.SessionID
	waitTerminal(t, proc, id, 5*time.Second)

	// limit alone: tail semantics.
	tail := callJSON(t, proc.Call, fmt.Sprintf(`{"action":"log","sessionId":%q,"limit":2}`, id))
	if tail.Content[0].Text != "two\nthree" {
		t.Errorf("expected tail [two three], got %q", tail.Content[0].Text)
	}
	if tail.Details.TotalLines == nil || *tail.Details.TotalLines != 3 {
		t.Errorf("expected totalLines 3, got %v", tail.Details.TotalLines)
	}

	// offset: zero-based forward index.
	mid := callJSON(t, proc.Call, fmt.Sprintf(`{"action":"log","sessionId":%q,"offset":1,"limit":1}`, id))
	if mid.Content[0].Text != "two" {
		t.Errorf("expected [two], got %q", mid.Content[0].Text)
	}
	if mid.Details.TotalLines == nil || *mid.Details.TotalLines != 3 {
		t.Errorf("expected totalLines 3, got %v", mid.Details.TotalLines)
	}
}

func TestScopeIsolation(t *testing.T) {
	eng := engine.New(session.NewRegistry())

	alphaCfg := DefaultConfig()
	alphaCfg.ScopeKey = "agent:alpha"
	betaCfg := DefaultConfig()
	betaCfg.ScopeKey = "agent:beta"

	alphaExec := NewExecTool(alphaCfg, eng)
	alphaProc := NewProcTool(alphaCfg, eng)
	betaProc := NewProcTool(betaCfg, eng)

	res := callJSON(t, alphaExec.Call, `{"command":"echo secret","background":true}`)
	id := res.Details.SessionID
	waitTerminal(t, alphaProc, id, 5*time.Second)

	// Foreign list must not include the session.
	betaList := callJSON(t, betaProc.Call, `{"action":"list"}`)
	if len(betaList.Details.Sessions) != 0 {
		t.Errorf("foreign scope sees %d sessions", len(betaList.Details.Sessions))
	}

	// Foreign poll yields the uniform failed shape, never the real status.
	betaPoll := callJSON(t, betaProc.Call, fmt.Sprintf(`{"action":"poll","sessionId":%q}`, id))
	if betaPoll.Details.Status != session.StatusFailed {
		t.Errorf("expected failed-shaped response, got %v", betaPoll.Details.Status)
	}
	if strings.Contains(betaPoll.Content[0].Text, "secret") {
		t.Error("foreign poll leaked session content")
	}

	// And identical to an unknown id.
	unknown := callJSON(t, betaProc.Call, `{"action":"poll","sessionId":"no-such-id"}`)
	if betaPoll.Content[0].Text != unknown.Content[0].Text || betaPoll.Details.Status != unknown.Details.Status {
		t.Error("foreign id distinguishable from unknown id")
	}
}

func TestPoll_IdempotentOnTerminal(t *testing.T) {
	exec, proc := newPair(DefaultConfig())

	res := callJSON(t, exec.Call, `{"command":"echo alpha; echo beta","background":true}`)
	id := res.Details.SessionID
	first := waitTerminal(t, proc, id, 5*time.Second)

	for i := 0; i < 5; i++ {
		again := callJSON(t, proc.Call, fmt.Sprintf(`{"action":"poll","sessionId":%q}`, id))
		if again.Details.Status != first.Details.Status {
			t.Fatalf("terminal status changed between polls: %v vs %v",
				again.Details.Status, first.Details.Status)
		}
		logRes := callJSON(t, proc.Call, fmt.Sprintf(`{"action":"log","sessionId":%q}`, id))
		if logRes.Content[0].Text != "alpha\nbeta" {
			t.Fatalf("terminal log changed: %q", logRes.Content[0].Text)
		}
	}
}

func TestProc_Kill(t *testing.T) {
	exec, proc := newPair(DefaultConfig())

	res := callJSON(t, exec.Call, `{"command":"sleep 30","background":true}`)
	id := res.Details.SessionID

	killRes := callJSON(t, proc.Call, fmt.Sprintf(`{"action":"kill","sessionId":%q}`, id))
	if killRes.Details.SessionID != id {
		t.Errorf("kill result names wrong session: %q", killRes.Details.SessionID)
	}

	final := waitTerminal(t, proc, id, 5*time.Second)
	if final.Details.Status != session.StatusFailed {
		t.Errorf("expected failed after kill, got %v", final.Details.Status)
	}
}

func TestProc_ValidationErrors(t *testing.T) {
	_, proc := newPair(DefaultConfig())

	if _, err := proc.Call(context.Background(), "c", []byte(`{}`)); err == nil {
		t.Error("expected error for missing action")
	}
	if _, err := proc.Call(context.Background(), "c", []byte(`{"action":"dance"}`)); err == nil {
		t.Error("expected error for unknown action")
	}
	if _, err := proc.Call(context.Background(), "c", []byte(`{"action":"poll"}`)); err == nil {
		t.Error("expected error for missing sessionId")
	}
	if _, err := proc.Call(context.Background(), "c", []byte(`{"action":"log"}`)); err == nil {
		t.Error("expected error for missing sessionId on log")
	}
}

func TestProc_ListEmpty(t *testing.T) {
	_, proc := newPair(DefaultConfig())

	res := callJSON(t, proc.Call, `{"action":"list"}`)
	if len(res.Details.Sessions) != 0 {
		t.Errorf("expected no sessions, got %d", len(res.Details.Sessions))
	}
	if res.Content[0].Text != "no sessions" {
		t.Errorf("unexpected empty-list text: %q", res.Content[0].Text)
	}
}

func TestResult_WireShape(t *testing.T) {
	exec, _ := newPair(DefaultConfig())

	res := callJSON(t, exec.Call, `{"command":"echo hi"}`)

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	raw := string(data)
	for _, want := range []string{`"content"`, `"type":"text"`, `"details"`, `"status":"completed"`, `"totalLines"`, `"exitCode"`} {
		if !strings.Contains(raw, want) {
			t.Errorf("wire shape missing %s: %s", want, raw)
		}
	}
	// Optional fields absent from a sync result.
	for _, absent := range []string{`"sessionId"`, `"sessions"`} {
		if strings.Contains(raw, absent) {
			t.Errorf("wire shape must omit %s for sync results: %s", absent, raw)
		}
	}
}
