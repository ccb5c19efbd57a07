package schedule

import (
	"strings"
)

// scan is the result of one string-aware pass over candidate JSON text.
type scan struct {
	stack    []byte // unclosed '[' and '{'
	inString bool

	// rootEnd is the index just past the character that closed the root
	// value, or -1 when the root never closed.
	rootEnd int

	// lastElem is the index just past the last object or array that
	// completed as a direct child of a root array, or -1.
	lastElem int

	// mismatch is set when a closer did not match the open bracket; the
	// scan stops there.
	mismatch bool

	// last is the last significant (non-space) byte outside strings, or
	// '"' when the text ended right after a string.
	last byte
}

func scanJSON(s string) scan {
	sc := scan{rootEnd: -1, lastElem: -1}
	escaped := false
	rootIsArray := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if sc.inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				sc.inString = false
				sc.last = '"'
			}
			continue
		}

		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		case '"':
			sc.inString = true
		case '[', '{':
			if len(sc.stack) == 0 && sc.rootEnd < 0 {
				rootIsArray = c == '['
			}
			sc.stack = append(sc.stack, c)
		case ']', '}':
			if len(sc.stack) == 0 || !matches(sc.stack[len(sc.stack)-1], c) {
				sc.mismatch = true
				return sc
			}
			sc.stack = sc.stack[:len(sc.stack)-1]
			switch len(sc.stack) {
			case 0:
				if sc.rootEnd < 0 {
					sc.rootEnd = i + 1
				}
			case 1:
				if rootIsArray {
					sc.lastElem = i + 1
				}
			}
		}
		sc.last = c
	}
	return sc
}

func matches(open, closer byte) bool {
	return (open == '[' && closer == ']') || (open == '{' && closer == '}')
}

// stripFences removes a surrounding ``` / ```json fence pair.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "[{") {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// trimToRoot drops prose before the first '[' or '{'. A bare object root
// is opened as an array so the bracket-closing repair can wrap it. It
// returns "" when the text has no JSON container at all.
func trimToRoot(s string) (rooted string, leading, wrapped bool) {
	i := strings.IndexAny(s, "[{")
	if i < 0 {
		return "", false, false
	}
	rooted = s[i:]
	if rooted[0] == '{' {
		return "[" + rooted, i > 0, true
	}
	return rooted, i > 0, false
}

// trimTrailingCommas drops commas that directly precede a closing bracket.
func trimTrailingCommas(s string) (string, bool) {
	var b strings.Builder
	b.Grow(len(s))
	changed := false
	inString, escaped := false, false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == ']' || s[j] == '}') {
				changed = true
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String(), changed
}

// cutAfterRoot drops non-space content that follows a closed root value.
func cutAfterRoot(s string) (string, bool) {
	sc := scanJSON(s)
	if sc.rootEnd < 0 || strings.TrimSpace(s[sc.rootEnd:]) == "" {
		return s, false
	}
	return s[:sc.rootEnd], true
}

// closeBrackets appends the minimal closers for an unterminated root. It
// refuses when the text stops mid-string or right after a key separator,
// where closing would fabricate a partial element.
func closeBrackets(s string) (string, bool) {
	sc := scanJSON(s)
	if sc.mismatch || sc.inString || len(sc.stack) == 0 || sc.rootEnd >= 0 {
		return s, false
	}
	if sc.last == ':' {
		return s, false
	}

	out := strings.TrimRightFunc(s, func(r rune) bool { return r < 0x80 && isSpace(byte(r)) })
	out = strings.TrimSuffix(out, ",")

	var b strings.Builder
	b.WriteString(out)
	for i := len(sc.stack) - 1; i >= 0; i-- {
		if sc.stack[i] == '[' {
			b.WriteByte(']')
		} else {
			b.WriteByte('}')
		}
	}
	return b.String(), true
}

// truncateToLastElement keeps the root array up to its last complete
// element and closes it.
func truncateToLastElement(s string) (string, bool) {
	sc := scanJSON(s)
	if sc.lastElem < 0 {
		return s, false
	}
	if sc.rootEnd >= 0 && !sc.mismatch {
		return s, false
	}
	return s[:sc.lastElem] + "]", true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
