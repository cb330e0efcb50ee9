// Package toolname makes tool names safe for upstream identifier alphabets.
//
// Internal tool names routinely contain slashes (MCP-style "server/tool"),
// which strict upstream validation rejects. Encode maps every disallowed
// byte to an escape sequence drawn from the accepted alphabet; Decode is its
// exact inverse, so Decode(Encode(x)) == x for every input, including names
// that already contain the escape character.
package toolname

import (
	"fmt"
	"strings"
)

// escape introduces a two-hex-digit byte escape. The character itself is
// escaped on encode, which is what makes the transform reversible for
// arbitrary input.
const escape = '-'

// Encode rewrites name so it only contains characters accepted by strict
// upstream identifier validation. Applied to tool definitions and to
// tool_call names written into history.
func Encode(name string) string {
	if !strings.ContainsAny(name, "/-") {
		return name
	}
	var b strings.Builder
	b.Grow(len(name) + 4)
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '/' || c == escape {
			fmt.Fprintf(&b, "%c%02x", escape, c)
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Decode reverses Encode, restoring the original human-readable name.
// Escape sequences that do not decode to a valid pair pass through
// unchanged, so Decode is total over arbitrary upstream input.
func Decode(safe string) string {
	if !strings.ContainsRune(safe, escape) {
		return safe
	}
	var b strings.Builder
	b.Grow(len(safe))
	for i := 0; i < len(safe); i++ {
		c := safe[i]
		if c == escape && i+2 < len(safe) {
			if v, ok := unhexPair(safe[i+1], safe[i+2]); ok {
				b.WriteByte(v)
				i += 2
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func unhexPair(hi, lo byte) (byte, bool) {
	h, ok1 := unhex(hi)
	l, ok2 := unhex(lo)
	if !ok1 || !ok2 {
		return 0, false
	}
	return h<<4 | l, true
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
