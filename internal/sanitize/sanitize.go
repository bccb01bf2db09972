package sanitize

import "strings"

// filterState tracks progress through an escape sequence.
type filterState int

const (
	stateGround filterState = iota
	stateEscape
	stateCSI
	stateOSC
	stateOSCEscape
)

// Line sanitizes a single line of process output.
//
// ANSI escape sequences (CSI, OSC, and single-character escapes) are
// removed, carriage-return overwrites are resolved to the final visible
// content, and remaining non-printable control bytes are dropped. Tabs
// are preserved.
func Line(s string) string {
	return resolveCarriage(strip(s))
}

// Bytes sanitizes a raw byte chunk. See Line.
func Bytes(b []byte) []byte {
	return []byte(Line(string(b)))
}

// strip removes escape sequences and control bytes, keeping tab and CR.
// CR survives so resolveCarriage can apply overwrite semantics afterward.
func strip(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	state := stateGround
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch state {
		case stateGround:
			switch {
			case b == 0x1b:
				state = stateEscape
			case b == '\t' || b == '\r':
				out.WriteByte(b)
			case b < 0x20 || b == 0x7f:
				// drop control byte
			default:
				out.WriteByte(b)
			}

		case stateEscape:
			switch b {
			case '[':
				state = stateCSI
			case ']':
				state = stateOSC
			default:
				// Two-byte escape (ESC c, ESC 7, ...): consume and resume.
				state = stateGround
			}

		case stateCSI:
			// Parameter and intermediate bytes are 0x20-0x3f; the final
			// byte of a CSI sequence is 0x40-0x7e.
			if b >= 0x40 && b <= 0x7e {
				state = stateGround
			}

		case stateOSC:
			// OSC data runs until BEL or ST (ESC \).
			switch b {
			case 0x07:
				state = stateGround
			case 0x1b:
				state = stateOSCEscape
			}

		case stateOSCEscape:
			if b == '\\' {
				state = stateGround
			} else {
				state = stateOSC
			}
		}
	}

	return out.String()
}

// resolveCarriage collapses carriage-return overwrites to the segment a
// terminal would have left visible. Progress bars that repaint a line with
// "\rxx%" sanitize to the final repaint.
func resolveCarriage(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}

	segments := strings.Split(s, "\r")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}
