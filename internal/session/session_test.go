package session

import (
	"strings"
	"testing"

	"github.com/dshills/bgshell/internal/logbuf"
)

func TestDeriveName(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    string
	}{
		{"simple", "echo hello", "echo hello"},
		{"first line only", "echo hello\necho world", "echo hello"},
		{"whitespace normalized", "  echo \t hello  ", "echo hello"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveName(tt.command); got != tt.want {
				t.Errorf("DeriveName(%q) = %q, want %q", tt.command, got, tt.want)
			}
		})
	}
}

func TestDeriveName_Truncation(t *testing.T) {
	long := strings.Repeat("x", 200)
	got := DeriveName(long)

	runes := []rune(got)
	if len(runes) != maxNameRunes+1 {
		t.Errorf("expected %d runes, got %d", maxNameRunes+1, len(runes))
	}
	if runes[len(runes)-1] != '…' {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New("", "echo hi", nil)

	if s.ScopeKey != DefaultScope {
		t.Errorf("expected default scope, got %q", s.ScopeKey)
	}
	if s.Log == nil {
		t.Fatal("expected log buffer allocated")
	}
	if s.Status() != StatusRunning {
		t.Errorf("expected running, got %v", s.Status())
	}
	if !s.FinishedAt().IsZero() {
		t.Error("expected zero FinishedAt while running")
	}
}

func TestMarkCompleted(t *testing.T) {
	s := New("scope", "echo hi", nil)
	s.Log.Append("hi")

	s.MarkCompleted(0)

	if s.Status() != StatusCompleted {
		t.Errorf("expected completed, got %v", s.Status())
	}
	code, ok := s.ExitCode()
	if !ok || code != 0 {
		t.Errorf("expected exit code 0, got %d (ok=%v)", code, ok)
	}
	if s.FinishedAt().IsZero() {
		t.Error("expected FinishedAt set")
	}
	if !s.Log.Frozen() {
		t.Error("expected log frozen after terminal transition")
	}
}

func TestMarkFailed_ForcedKill(t *testing.T) {
	s := New("scope", "sleep 99", nil)

	s.MarkFailed(nil)

	if s.Status() != StatusFailed {
		t.Errorf("expected failed, got %v", s.Status())
	}
	if _, ok := s.ExitCode(); ok {
		t.Error("expected absent exit code on forced kill")
	}
}

func TestTerminalIsAbsorbing(t *testing.T) {
	s := New("scope", "exit 2", nil)
	code := 2
	s.MarkFailed(&code)

	s.MarkCompleted(0)

	if s.Status() != StatusFailed {
		t.Errorf("terminal status reverted: %v", s.Status())
	}
	got, ok := s.ExitCode()
	if !ok || got != 2 {
		t.Errorf("exit code changed after terminal: %d (ok=%v)", got, ok)
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusRunning.Terminal() {
		t.Error("running must not be terminal")
	}
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Error("completed and failed must be terminal")
	}
}

func TestSnapshot(t *testing.T) {
	s := New("scope", "echo hello world", logbuf.New())
	s.Log.Append("hello world")
	s.MarkCompleted(0)

	sum := s.Snapshot()
	if sum.Name != "echo hello world" {
		t.Errorf("unexpected name %q", sum.Name)
	}
	if sum.Status != StatusCompleted {
		t.Errorf("unexpected status %v", sum.Status)
	}
	if sum.TotalLines != 1 {
		t.Errorf("expected 1 line, got %d", sum.TotalLines)
	}
}
