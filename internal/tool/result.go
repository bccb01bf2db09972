package tool

import (
	"time"

	"github.com/dshills/bgshell/internal/session"
)

// Content is one block of printable result content.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SessionInfo is a listing entry for one session.
type SessionInfo struct {
	SessionID string         `json:"sessionId"`
	Name      string         `json:"name"`
	Status    session.Status `json:"status"`
	StartedAt time.Time      `json:"startedAt"`
}

// Details is the structured half of a Result. Which optional fields are
// populated depends on the status and the action that produced it:
// running/terminal command results carry SessionID or ExitCode, log reads
// carry TotalLines, and list carries Sessions. The flattened shape with
// omitted empties preserves the original wire contract.
type Details struct {
	Status     session.Status `json:"status,omitempty"`
	SessionID  string         `json:"sessionId,omitempty"`
	TotalLines *int           `json:"totalLines,omitempty"`
	ExitCode   *int           `json:"exitCode,omitempty"`
	Sessions   []SessionInfo  `json:"sessions,omitempty"`
}

// Result is the response to a tool call.
type Result struct {
	Content []Content `json:"content"`
	Details Details   `json:"details"`
}

// textResult builds a single-text-block result.
func textResult(text string, details Details) Result {
	return Result{
		Content: []Content{{Type: "text", Text: text}},
		Details: details,
	}
}

// notFoundResult is the uniform response for unknown and foreign-scope
// session ids. Shaped like a failure rather than an error so pollers
// degrade gracefully; it must not reveal whether the id exists elsewhere.
func notFoundResult() Result {
	return textResult("session not found", Details{
		Status: session.StatusFailed,
	})
}

func intPtr(n int) *int {
	return &n
}
