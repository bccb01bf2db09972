package logbuf

import "sync"

// DefaultTailLines is the window returned by Slice when neither offset nor
// limit is given.
const DefaultTailLines = 100

// Buffer is an append-only, thread-safe sequence of output lines.
type Buffer struct {
	mu     sync.RWMutex
	lines  []string
	frozen bool
}

// New creates an empty buffer.
func New() *Buffer {
	return &Buffer{
		lines: make([]string, 0, 64),
	}
}

// Append adds a line to the buffer. Appends after Freeze are dropped.
func (b *Buffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return
	}
	b.lines = append(b.lines, line)
}

// Freeze makes the buffer immutable. Called when the owning session
// reaches a terminal status. Idempotent.
func (b *Buffer) Freeze() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen = true
}

// Frozen reports whether the buffer has been frozen.
func (b *Buffer) Frozen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frozen
}

// Len returns the total number of lines.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}

// All returns a copy of every line in order.
func (b *Buffer) All() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.copyRange(0, len(b.lines))
}

// Tail returns the last n lines.
func (b *Buffer) Tail(n int) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	start := len(b.lines) - n
	if start < 0 {
		start = 0
	}
	return b.copyRange(start, len(b.lines))
}

// Slice returns a window of lines plus the buffer's total length.
//
// Semantics:
//   - offset and limit both nil: the last DefaultTailLines lines.
//   - limit alone: the last limit lines (tail, not head).
//   - offset set: zero-based forward index from the start; limit bounds
//     how many lines from that offset are returned (nil limit: to end).
//
// Negative values are treated as unset. The returned total always
// reflects the full current length regardless of the requested window.
func (b *Buffer) Slice(offset, limit *int) ([]string, int) {
	if offset != nil && *offset < 0 {
		offset = nil
	}
	if limit != nil && *limit < 0 {
		limit = nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	total := len(b.lines)

	if offset == nil {
		n := DefaultTailLines
		if limit != nil {
			n = *limit
		}
		if n <= 0 {
			return []string{}, total
		}
		start := total - n
		if start < 0 {
			start = 0
		}
		return b.copyRange(start, total), total
	}

	start := *offset
	if start >= total {
		return []string{}, total
	}
	end := total
	if limit != nil && start+*limit < end {
		end = start + *limit
	}
	return b.copyRange(start, end), total
}

// copyRange copies lines[start:end]. Callers must hold the lock.
func (b *Buffer) copyRange(start, end int) []string {
	out := make([]string, end-start)
	copy(out, b.lines[start:end])
	return out
}
