// Package engine orchestrates command lifecycles and the backgrounding
// policy.
//
// Run launches a command, races it against a yield deadline and a hard
// timeout, and decides between returning a full result synchronously and
// handing back a session handle while the command keeps running. Terminal
// outcomes of backgrounded commands are recorded in the session registry
// and observed through polling; they are never raised as errors.
//
// Exactly one finalizer goroutine owns a session's mutable state, so
// poll, list, and log reads never contend with process completion.
package engine
