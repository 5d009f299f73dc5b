package dot

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"valid digraph", "digraph G {\n  a -> b;\n}", nil},
		{"valid graph", "graph {\n  a -- b;\n}", nil},
		{"strict", "strict digraph G { a -> b; }", nil},
		{"uppercase keyword", "DIGRAPH G {\n}", nil},
		{"comment before header", "// generated\ndigraph G {\n}", nil},
		{"brace in label ignored", "digraph G {\n  a [label=\"{\"];\n}", nil},
		{"missing header", "G {\n  a -> b;\n}", []string{"graph must start"}},
		{"unbalanced open", "digraph G {\n  a -> b;\n", []string{"unbalanced braces (+1)"}},
		{"unbalanced close", "digraph G {\n}\n}", []string{"unbalanced braces (-1)"}},
		{"odd quotes", "digraph G {\n  a [label=\"x];\n}", []string{"line 2: unbalanced quotes"}},
		{"stray comma", "digraph G {\n  a [color=red,,shape=box];\n}", []string{"line 2: stray comma"}},
		{"empty", "  \n", []string{"graph text is empty"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("Validate() = %v, want %d warning(s) like %v", got, len(tt.want), tt.want)
			}
			for i := range got {
				if !strings.Contains(got[i], tt.want[i]) {
					t.Errorf("warning %d = %q, want it to contain %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSanitizeFailsOpen(t *testing.T) {
	orig := repairLine
	defer func() { repairLine = orig }()
	repairLine = func(l string) string {
		if strings.Contains(l, "boom") {
			panic("unexpected input")
		}
		return orig(l)
	}

	in := "digraph G {\n  a->b\n  boom\n}"
	got, warn := Sanitize(in)
	if warn == nil {
		t.Fatal("expected a repair warning")
	}
	if got != in {
		t.Errorf("Sanitize() = %q, want the original text", got)
	}
	if warn.Line != 3 {
		t.Errorf("warning line = %d, want 3", warn.Line)
	}
}
