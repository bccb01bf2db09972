// Package sanitize converts raw process output into printable text.
//
// Child processes emit ANSI escape sequences, carriage-return overwrites,
// and stray control bytes. The log store only keeps printable lines, so
// every captured line passes through Line before storage.
package sanitize
