package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/parsegraph/pkg/analysis"
)

// stdout receives all human-readable output. Tests swap it for a buffer.
var stdout io.Writer = os.Stdout

var (
	colorAccent = lipgloss.Color("36")  // teal: titles, numbers, spinner
	colorOK     = lipgloss.Color("35")  // green: success, cache hits
	colorWarn   = lipgloss.Color("220") // amber: warnings, diagnostics
	colorFail   = lipgloss.Color("167") // red: errors
	colorLink   = lipgloss.Color("75")  // blue: URLs, commands
	colorText   = lipgloss.Color("255")
	colorMuted  = lipgloss.Color("245")
	colorFaint  = lipgloss.Color("240")
)

// Exported styles are shared with subcommands that format their own lines.
var (
	StyleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	StyleLink    = lipgloss.NewStyle().Foreground(colorLink).Underline(true)
	StyleDim     = lipgloss.NewStyle().Foreground(colorFaint)
	StyleValue   = lipgloss.NewStyle().Foreground(colorText)
	StyleNumber  = lipgloss.NewStyle().Foreground(colorAccent)
	StyleWarning = lipgloss.NewStyle().Foreground(colorWarn)
)

var (
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorAccent)
	styleKey         = lipgloss.NewStyle().Foreground(colorMuted).Width(12)
	styleCommand     = lipgloss.NewStyle().Foreground(colorLink)
	styleTokenType   = lipgloss.NewStyle().Foreground(colorAccent).Width(16)
	stylePosition    = lipgloss.NewStyle().Foreground(colorFaint).Width(8)
)

// status is the leading marker of a one-line message.
type status struct {
	icon  string
	style lipgloss.Style
}

var (
	statusOK   = status{"✓", lipgloss.NewStyle().Foreground(colorOK)}
	statusFail = status{"✗", lipgloss.NewStyle().Foreground(colorFail)}
	statusWarn = status{"!", lipgloss.NewStyle().Foreground(colorWarn)}
	statusInfo = status{"›", lipgloss.NewStyle().Foreground(colorMuted)}
)

func (st status) println(msg string) {
	fmt.Fprintln(stdout, st.style.Render(st.icon)+" "+msg)
}

func printSuccess(format string, args ...any) { statusOK.println(fmt.Sprintf(format, args...)) }
func printError(format string, args ...any)   { statusFail.println(fmt.Sprintf(format, args...)) }
func printInfo(format string, args ...any)    { statusInfo.println(fmt.Sprintf(format, args...)) }

func printWarning(format string, args ...any) {
	statusWarn.println(StyleWarning.Render(fmt.Sprintf(format, args...)))
}

// printDetail prints an indented, dimmed line under the previous message.
func printDetail(format string, args ...any) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile announces a written output file.
func printFile(path string) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render("→")+" "+StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Fprintln(stdout, styleKey.Render(key)+" "+StyleValue.Render(value))
}

// printNextStep suggests a follow-up command.
func printNextStep(description, cmd string) {
	fmt.Fprintln(stdout, StyleDim.Render(description+":")+" "+styleCommand.Render(cmd))
}

// printStats prints analysis statistics on a single line.
func printStats(res analysis.Result, cached bool) {
	parts := []string{
		fmt.Sprintf("%d tokens", len(res.Tokens)),
		fmt.Sprintf("%d diagnostics", len(res.Errors)),
	}
	if res.AST != nil {
		parts = append(parts, "ast")
	}

	origin := statusInfo.style.Render("fresh")
	if cached {
		origin = statusOK.style.Render("cached")
	}

	sep := StyleDim.Render(" · ")
	line := "  "
	for _, part := range parts {
		line += StyleDim.Render(part) + sep
	}
	line += origin
	fmt.Fprintln(stdout, line)
}

// printDiagnostics prints one line per backend diagnostic.
func printDiagnostics(name string, diags []analysis.Diagnostic) {
	for _, d := range diags {
		pos := fmt.Sprintf("%s:%d:%d", name, d.Line, d.Column)
		fmt.Fprint(stdout, "  ")
		statusFail.println(StyleValue.Render(pos) + " " + d.Message)
	}
}

// printTokens prints the token stream as an aligned table.
func printTokens(tokens []analysis.Token) {
	for _, tok := range tokens {
		pos := fmt.Sprintf("%d:%d", tok.Line, tok.Column)
		fmt.Fprintln(stdout, "  "+stylePosition.Render(pos)+styleTokenType.Render(tok.Type)+StyleValue.Render(fmt.Sprintf("%q", tok.Text)))
	}
}

// printTree prints the parenthesised parse tree, indented under its file.
func printTree(lisp string) {
	for _, line := range strings.Split(strings.TrimRight(lisp, "\n"), "\n") {
		fmt.Fprintln(stdout, "  "+StyleDim.Render(line))
	}
}

