package store

import "strings"

// Statements splits SQL text on semicolons that are outside string literals,
// quoted identifiers and comments. Each statement comes back without its
// terminator and without surrounding whitespace or comments; statements made
// only of whitespace and comments are dropped.
func Statements(text string) []string {
	var out []string
	first, last := -1, -1 // significant bytes of the current statement

	mark := func(from, to int) {
		if first < 0 {
			first = from
		}
		last = to
	}
	flush := func() {
		if first >= 0 {
			out = append(out, text[first:last])
		}
		first, last = -1, -1
	}

	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == ';':
			flush()
			i++
		case c == '-' && strings.HasPrefix(text[i:], "--"):
			if j := strings.IndexByte(text[i:], '\n'); j >= 0 {
				i += j + 1
			} else {
				i = len(text)
			}
		case c == '/' && strings.HasPrefix(text[i:], "/*"):
			if j := strings.Index(text[i+2:], "*/"); j >= 0 {
				i += j + 4
			} else {
				i = len(text)
			}
		case c == '\'' || c == '"' || c == '`' || c == '[':
			end := quotedEnd(text, i)
			mark(i, end)
			i = end
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			i++
		default:
			mark(i, i+1)
			i++
		}
	}
	flush()
	return out
}

// quotedEnd returns the index just past the literal or identifier opening at
// start. A doubled quote character is an escaped quote. An unterminated
// literal runs to the end of text and is left for the engine to reject.
func quotedEnd(text string, start int) int {
	closer := text[start]
	if closer == '[' {
		closer = ']'
	}
	for j := start + 1; j < len(text); j++ {
		if text[j] != closer {
			continue
		}
		if closer != ']' && j+1 < len(text) && text[j+1] == closer {
			j++
			continue
		}
		return j + 1
	}
	return len(text)
}
