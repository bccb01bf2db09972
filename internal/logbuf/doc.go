// Package logbuf stores session output as an append-only sequence of lines.
//
// A Buffer grows only while its session is running and is frozen once the
// session reaches a terminal status. Slicing supports both tail windows
// (most recent lines) and zero-based forward offsets, and always reports
// the buffer's full current length so pollers can detect growth.
package logbuf
