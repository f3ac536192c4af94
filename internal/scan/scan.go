package scan

import (
	"fmt"
	"strconv"
	"strings"
)

// DecodeError reports an integer literal with no usable digits.
type DecodeError struct {
	Text string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("can't decode integer %q", e.Text)
}

// SkipWhitespace drops leading spaces and tabs. Newlines are not
// whitespace here: callers hand in lines that are already chomped.
func SkipWhitespace(s string) string {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return s[i:]
}

// NextToken returns the next run of non-blank characters and the text that
// follows it. Whitespace after the token is skipped, and so is a single
// trailing comma.
func NextToken(s string) (tok, rest string) {
	s = SkipWhitespace(s)

	end := 0
	for end < len(s) {
		c := s[end]
		if c == ' ' || c == '\t' || c == 0 {
			break
		}
		end++
	}

	tok = s[:end]
	rest = SkipWhitespace(s[end:])
	if strings.HasPrefix(rest, ",") {
		rest = rest[1:]
	}
	return tok, rest
}

// Remaining is the rest of the line with leading whitespace removed.
func Remaining(s string) string {
	return SkipWhitespace(s)
}

// DecodeInt decodes a Verilog style literal to 32 bits. Wider values are
// truncated the same way an unsigned cast would.
func DecodeInt(s string) (uint32, error) {
	v, err := DecodeUint64(s)
	return uint32(v), err
}

// DecodeUint64 decodes a literal such as 8'hFF, 'd12, 16'h00_10, 0x40 or 17.
// Underscores are ignored. A 'h marker selects hex and a 'd marker selects
// decimal; without either the radix comes from the usual C prefixes.
func DecodeUint64(s string) (uint64, error) {
	clean := strings.ReplaceAll(s, "_", "")

	if i := strings.Index(clean, "'h"); i >= 0 {
		return parsePrefix(clean[i+2:], 16, s)
	}
	if i := strings.Index(clean, "'d"); i >= 0 {
		return parsePrefix(clean[i+2:], 10, s)
	}
	return AutoBase(clean)
}

// AutoBase parses the leading integer of s, picking the radix from its
// prefix: 0x is hex, a leading 0 is octal, anything else decimal. Text after
// the digits is ignored.
func AutoBase(s string) (uint64, error) {
	t := SkipWhitespace(s)
	t = strings.TrimPrefix(t, "+")

	if len(t) > 2 && t[0] == '0' && (t[1] == 'x' || t[1] == 'X') && isDigit(t[2], 16) {
		return parsePrefix(t[2:], 16, s)
	}
	if len(t) > 0 && t[0] == '0' {
		return parsePrefix(t, 8, s)
	}
	return parsePrefix(t, 10, s)
}

// parsePrefix converts the longest run of base digits at the start of s.
func parsePrefix(s string, base int, orig string) (uint64, error) {
	s = SkipWhitespace(s)

	end := 0
	for end < len(s) && isDigit(s[end], base) {
		end++
	}
	if end == 0 {
		return 0, &DecodeError{Text: orig}
	}

	v, err := strconv.ParseUint(s[:end], base, 64)
	if err != nil {
		return 0, &DecodeError{Text: orig}
	}
	return v, nil
}

func isDigit(c byte, base int) bool {
	switch {
	case c >= '0' && c <= '9':
		return int(c-'0') < base
	case c >= 'a' && c <= 'f':
		return base == 16
	case c >= 'A' && c <= 'F':
		return base == 16
	}
	return false
}
