package dot

import (
	"fmt"
	"strings"
)

// RepairWarning reports that repair failed and the input was returned as-is.
type RepairWarning struct {
	Line  int // 1-based line being repaired when the failure happened, 0 if unknown
	Cause any
}

func (w *RepairWarning) Error() string {
	if w.Line > 0 {
		return fmt.Sprintf("DOT repair failed at line %d: %v", w.Line, w.Cause)
	}
	return fmt.Sprintf("DOT repair failed: %v", w.Cause)
}

// artifacts are escape sequences that leak into DOT produced by a JSON or
// HTML encoding layer.
var artifacts = strings.NewReplacer(
	`\u003d`, "=",
	`\u003e`, ">",
	`\u003c`, "<",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// Sanitize repairs common defects in DOT text from an untrusted source.
//
// The text is processed line by line. Blank lines and comments are kept
// exactly as they are. Every other line is trimmed and then:
//
//  1. Escape artifacts (\u003d, &lt;, &quot; and friends) are decoded.
//  2. Quoted label values are re-escaped so each is a single valid string.
//  3. Edge statements lose trailing separators and get spaces around
//     operators that touch their operands (a->b becomes a -> b).
//  4. A ';' is appended unless the line already ends a statement or opens
//     or continues a block or attribute list.
//
// Sanitize never fails. If repair panics, the original text is returned
// together with a non-nil warning. Output of Sanitize is a fixed point:
// sanitizing it again returns the same text.
func Sanitize(text string) (out string, warn *RepairWarning) {
	line := 0
	defer func() {
		if r := recover(); r != nil {
			out, warn = text, &RepairWarning{Line: line, Cause: r}
		}
	}()

	lines := strings.Split(artifacts.Replace(text), "\n")
	fixed := make([]string, len(lines))
	inComment := false
	for i, raw := range lines {
		line = i + 1
		l := strings.TrimSpace(raw)

		if inComment {
			fixed[i] = raw
			if strings.Contains(l, "*/") {
				inComment = false
			}
			continue
		}
		if l == "" || strings.HasPrefix(l, "//") || strings.HasPrefix(l, "#") {
			fixed[i] = raw
			continue
		}
		if strings.HasPrefix(l, "/*") {
			fixed[i] = raw
			inComment = !strings.Contains(l[2:], "*/")
			continue
		}

		fixed[i] = repairLine(l)
	}
	return strings.Join(fixed, "\n"), nil
}

// repairLine is swapped out in tests.
var repairLine = sanitizeLine

func sanitizeLine(l string) string {
	if strings.Contains(l, "label=") {
		l = fixLabels(l)
	}

	// An attribute list left open continues on the next line.
	open := openBrackets(l) > 0

	if isEdge(l) {
		if !open {
			l = strings.TrimRight(l, ",;")
		}
		l = spaceEdgeOps(l)
	}

	if open || l == "" {
		return l
	}
	switch l[len(l)-1] {
	case ';', '{', '}', '[', ',':
		return l
	}
	return l + ";"
}

// isEdge reports whether l contains an edge operator outside quotes.
func isEdge(l string) bool {
	found := false
	scanUnquoted(l, func(i int) bool {
		if i+1 < len(l) && (l[i:i+2] == "->" || l[i:i+2] == "--") {
			found = true
			return false
		}
		return true
	})
	return found
}

// spaceEdgeOps inserts single spaces around edge operators whose neighbours
// on both sides are word characters.
func spaceEdgeOps(l string) string {
	var b strings.Builder
	b.Grow(len(l) + 8)
	last := 0
	scanUnquoted(l, func(i int) bool {
		if i+2 >= len(l) || i == 0 {
			return true
		}
		op := l[i : i+2]
		if op != "->" && op != "--" {
			return true
		}
		if isWord(l[i-1]) && isWord(l[i+2]) {
			b.WriteString(l[last:i])
			b.WriteString(" " + op + " ")
			last = i + 2
		}
		return true
	})
	if last == 0 {
		return l
	}
	b.WriteString(l[last:])
	return b.String()
}

// openBrackets counts '[' minus ']' outside quotes.
func openBrackets(l string) int {
	n := 0
	scanUnquoted(l, func(i int) bool {
		switch l[i] {
		case '[':
			n++
		case ']':
			n--
		}
		return true
	})
	return n
}

// scanUnquoted calls fn with the index of every byte outside double-quoted
// strings until fn returns false.
func scanUnquoted(l string, fn func(i int) bool) {
	inQuote := false
	for i := 0; i < len(l); i++ {
		c := l[i]
		if inQuote {
			switch c {
			case '\\':
				i++
			case '"':
				inQuote = false
			}
			continue
		}
		if c == '"' {
			inQuote = true
			continue
		}
		if !fn(i) {
			return
		}
	}
}

func isWord(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// fixLabels re-escapes the value of every label="..." attribute on the line.
func fixLabels(l string) string {
	const key = `label="`
	var b strings.Builder
	rest := l
	for {
		idx := strings.Index(rest, key)
		if idx < 0 {
			break
		}
		start := idx + len(key)
		end := labelEnd(rest, start)
		if end < 0 {
			break
		}
		b.WriteString(rest[:start])
		b.WriteString(escapeLabel(rest[start:end]))
		b.WriteByte('"')
		rest = rest[end+1:]
	}
	if b.Len() == 0 {
		return l
	}
	b.WriteString(rest)
	return b.String()
}

// labelEnd finds the quote closing a label value that starts at s[start].
// The closing quote is the first unescaped '"' followed, after optional
// spaces, by ']', ',', ';', the end of the line, or (after at least one
// space) the next attribute's "name=". Embedded quotes that are not followed
// by a delimiter belong to the value. Returns -1 if none.
func labelEnd(s string, start int) int {
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
				j++
			}
			if j == len(s) || s[j] == ']' || s[j] == ',' || s[j] == ';' {
				return i
			}
			if j > i+1 && startsAttr(s[j:]) {
				return i
			}
		}
	}
	return -1
}

// startsAttr reports whether s begins with an attribute name and '='.
func startsAttr(s string) bool {
	n := 0
	for n < len(s) && isWord(s[n]) {
		n++
	}
	if n == 0 || ('0' <= s[0] && s[0] <= '9') {
		return false
	}
	for n < len(s) && (s[n] == ' ' || s[n] == '\t') {
		n++
	}
	return n < len(s) && s[n] == '='
}

// escapeLabel escapes quotes, backslashes, newlines and tabs in a label
// value. Existing escape sequences are kept, so escaping is idempotent.
func escapeLabel(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch c {
		case '\\':
			if i+1 < len(v) && isEscape(v[i+1]) {
				b.WriteByte(c)
				b.WriteByte(v[i+1])
				i++
				continue
			}
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// isEscape reports whether \c is an escape sequence Graphviz understands
// inside a quoted string.
func isEscape(c byte) bool {
	switch c {
	case '"', '\\', 'n', 'l', 'r', 't', 'N', 'G', 'E', 'H', 'T', 'L':
		return true
	}
	return false
}
