// Package tool exposes the supervisor through a request/response tool
// contract.
//
// Two paired entry points share a configuration bundle: ExecTool runs
// shell commands under the backgrounding policy, and ProcTool queries the
// sessions those commands leave behind (poll, list, log, kill). Every
// call implicitly carries the adapter's scope key; adapters constructed
// with different scope keys are fully isolated from each other's sessions
// even over a shared registry.
//
// Request arguments arrive as raw JSON and are read tolerantly; results
// carry printable text content plus a typed details payload matching the
// wire contract.
package tool
