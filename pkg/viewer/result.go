package viewer

import (
	"context"
	"strings"

	"github.com/matzehuels/parsegraph/pkg/analysis"
)

// Surfaces used for analysis results.
const (
	SurfaceParseTree = "parse-tree"
	SurfaceAST       = "ast"
)

// DefaultEmptyMessages are the placeholders shown on the result surfaces
// before anything was analysed.
var DefaultEmptyMessages = map[string]string{
	SurfaceParseTree: "no parse tree yet, analyze some code first",
	SurfaceAST:       "no AST yet, analyze some code first",
}

// ShowResult renders the graphs of an analysis result: the parse tree on
// SurfaceParseTree and, if the backend sent one, the AST on SurfaceAST.
// A graph without DOT text leaves its surface empty with an explanation.
func (e *Engine) ShowResult(ctx context.Context, res analysis.Result) {
	if strings.TrimSpace(res.ParseTree.Dot) == "" {
		_ = e.SetEmpty(SurfaceParseTree, "no parse tree data")
	} else {
		_ = e.Render(ctx, res.ParseTree.Dot, SurfaceParseTree)
	}

	switch {
	case res.AST == nil:
		_ = e.SetEmpty(SurfaceAST, "no AST available from this server")
	case strings.TrimSpace(res.AST.Dot) == "":
		_ = e.SetEmpty(SurfaceAST, "no AST data")
	default:
		_ = e.Render(ctx, res.AST.Dot, SurfaceAST)
	}
}
