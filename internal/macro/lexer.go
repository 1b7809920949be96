package macro

import "strings"

// stripComments removes '#'-to-end-of-line comments, honoring quote state so
// a '#' inside a quoted string literal is never treated as a comment start —
// test_macros.py exercises exactly this across multiline macro text.
func stripComments(s string) string {
	var b strings.Builder
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			b.WriteByte(c)
		case c == '#' && !inQuotes:
			for i < len(s) && s[i] != '\n' {
				i++
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// stripInsignificantWhitespace removes spaces, tabs, and newlines outside of
// quoted strings, so a macro can be written across multiple indented lines.
func stripInsignificantWhitespace(s string) string {
	var b strings.Builder
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' {
			inQuotes = !inQuotes
			b.WriteByte(c)
			continue
		}
		if !inQuotes && (c == ' ' || c == '\t' || c == '\n' || c == '\r') {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// findMatchingBracket returns the index of the ')' matching the '(' at
// openIdx, honoring nested parens and quoted strings.
func findMatchingBracket(s string, openIdx int) (int, error) {
	depth := 0
	inQuotes := false
	for i := openIdx; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case inQuotes:
			// nothing
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return -1, parseErrf(s[openIdx:], "unbalanced bracket")
}

// splitTopLevel splits s on sep, ignoring occurrences inside nested
// parentheses or quoted strings.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth := 0
	inQuotes := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case inQuotes:
			// nothing
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == sep && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// hasTopLevelChar reports whether c occurs at nesting depth 0 outside of
// quoted strings anywhere in s.
func hasTopLevelChar(s string, c byte) bool {
	depth := 0
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '"':
			inQuotes = !inQuotes
		case inQuotes:
			// nothing
		case s[i] == '(':
			depth++
		case s[i] == ')':
			depth--
		case s[i] == c && depth == 0:
			return true
		}
	}
	return false
}

// findTopLevelEquals finds the first '=' outside quotes/parens, used to
// detect name=value keyword arguments. Returns -1 if there is none.
func findTopLevelEquals(s string) int {
	depth := 0
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '"':
			inQuotes = !inQuotes
		case inQuotes:
			// nothing
		case s[i] == '(':
			depth++
		case s[i] == ')':
			depth--
		case s[i] == '=' && depth == 0:
			return i
		}
	}
	return -1
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		isAlnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
		if !isAlnum {
			return false
		}
	}
	return true
}

// rewritePlusSyntax implements the '+' infix shorthand (spec §4.2): a
// top-level "a+b+c" with no enclosing call is rewritten to hold_keys(a,b,c).
// Only applies when '+' appears at nesting depth 0 of the whole macro text;
// a '+' nested inside some other call's arguments is left untouched.
func rewritePlusSyntax(s string) (string, error) {
	if !hasTopLevelChar(s, '+') {
		return s, nil
	}
	parts := splitTopLevel(s, '+')
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return "", parseErrf(s, "invalid '+' syntax: empty operand")
		}
	}
	return "hold_keys(" + strings.Join(parts, ",") + ")", nil
}

func unquote(raw string) (string, error) {
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return "", parseErrf(raw, "unterminated string literal")
	}
	return raw[1 : len(raw)-1], nil
}
