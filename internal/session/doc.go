// Package session tracks command executions and the registry that scopes
// them.
//
// A Session records one command execution: its status, timestamps, exit
// code, and output log. The Registry maps (scopeKey, sessionId) to
// sessions and enforces the isolation guarantee: a session registered
// under one scope is indistinguishable from a nonexistent one when queried
// from any other scope.
//
// Status transitions are monotonic. Once a session reaches a terminal
// status (completed or failed) no operation moves it back, its log is
// frozen, and further mutations are no-ops. Only the execution engine
// goroutine that owns a session writes to it; all other access is
// read-only.
package session
