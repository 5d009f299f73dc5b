package dot

import (
	"fmt"
	"strings"
)

// Validate performs a lightweight structural check of DOT text and returns
// human-readable warnings. An empty result means nothing suspicious was
// found; it does not mean Graphviz will accept the text.
//
// Checks:
//   - the first statement opens with graph, digraph or strict
//   - '{' and '}' balance across the whole text
//   - each line has an even number of unescaped quotes
//   - no doubled separators (",,", ",;", ",}")
func Validate(text string) []string {
	var warnings []string

	lines := strings.Split(text, "\n")
	header := ""
	depth := 0
	for i, raw := range lines {
		l := strings.TrimSpace(raw)
		if l == "" || strings.HasPrefix(l, "//") || strings.HasPrefix(l, "#") || strings.HasPrefix(l, "/*") {
			continue
		}
		if header == "" {
			header = l
		}

		if quotes(l)%2 != 0 {
			warnings = append(warnings, fmt.Sprintf("line %d: unbalanced quotes", i+1))
		}
		if strings.Contains(l, ",,") || strings.HasSuffix(l, ",;") || strings.HasSuffix(l, ",}") {
			warnings = append(warnings, fmt.Sprintf("line %d: stray comma", i+1))
		}
		scanUnquoted(l, func(j int) bool {
			switch l[j] {
			case '{':
				depth++
			case '}':
				depth--
			}
			return true
		})
	}

	if header == "" {
		return append(warnings, "graph text is empty")
	}
	if !hasGraphKeyword(header) {
		warnings = append([]string{"graph must start with digraph, graph or strict"}, warnings...)
	}
	if depth != 0 {
		warnings = append(warnings, fmt.Sprintf("unbalanced braces (%+d)", depth))
	}
	return warnings
}

func hasGraphKeyword(l string) bool {
	word, _, _ := strings.Cut(l, " ")
	word, _, _ = strings.Cut(word, "{")
	switch strings.ToLower(word) {
	case "digraph", "graph", "strict":
		return true
	}
	return false
}

func quotes(l string) int {
	n := 0
	for i := 0; i < len(l); i++ {
		switch l[i] {
		case '\\':
			i++
		case '"':
			n++
		}
	}
	return n
}
