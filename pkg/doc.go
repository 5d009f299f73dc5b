// Package pkg provides the libraries behind parsegraph, a client for a
// source-analysis backend that shows tokens, diagnostics and parse graphs.
//
// # Overview
//
// The pkg directory is organized into three areas:
//
//  1. Orchestration: [analysis], [httputil], [cache] and [lifecycle] submit
//     source text to the backend and keep track of what happened
//  2. Rendering: [render], [render/dot], [render/nodelink] and [viewer] turn
//     the DOT graphs in a result into SVG with zoom and pan state
//  3. Support: [errors], [observability] and [buildinfo]
//
// # Architecture
//
// The typical data flow:
//
//	source text
//	     ↓
//	[analysis.Service] (cache lookup, lifecycle record)
//	     ↓
//	[httputil.Client] (bounded call, retried on transient failures)
//	     ↓
//	[analysis.Result] (validated tokens, diagnostics, parse tree, AST)
//	     ↓
//	[viewer.Engine] (DOT repair, Graphviz layout, view transform)
//	     ↓
//	SVG/PDF/PNG output
//
// # Quick Start
//
//	svc := analysis.New(analysis.Options{BaseURL: analysis.DefaultBaseURL})
//	res, err := svc.Analyze(ctx, "fn main() {}")
//	if err != nil {
//	    return err
//	}
//
//	gv := nodelink.NewGraphviz()
//	defer gv.Close()
//	engine := viewer.New(gv, viewer.Options{})
//	engine.ShowResult(ctx, res)
//
//	exp, err := engine.Export(viewer.SurfaceParseTree)
//
// # Errors
//
// Every failure crossing a package boundary carries a machine-readable code
// from [errors] (TIMEOUT, HTTP_ERROR, NETWORK_ERROR, INVALID_FORMAT, ...).
// Use [errors.Is] with a code to branch on the kind of failure.
//
// [analysis]: https://pkg.go.dev/github.com/matzehuels/parsegraph/pkg/analysis
// [analysis.Service]: https://pkg.go.dev/github.com/matzehuels/parsegraph/pkg/analysis#Service
// [analysis.Result]: https://pkg.go.dev/github.com/matzehuels/parsegraph/pkg/analysis#Result
// [httputil]: https://pkg.go.dev/github.com/matzehuels/parsegraph/pkg/httputil
// [httputil.Client]: https://pkg.go.dev/github.com/matzehuels/parsegraph/pkg/httputil#Client
// [cache]: https://pkg.go.dev/github.com/matzehuels/parsegraph/pkg/cache
// [lifecycle]: https://pkg.go.dev/github.com/matzehuels/parsegraph/pkg/lifecycle
// [render]: https://pkg.go.dev/github.com/matzehuels/parsegraph/pkg/render
// [render/dot]: https://pkg.go.dev/github.com/matzehuels/parsegraph/pkg/render/dot
// [render/nodelink]: https://pkg.go.dev/github.com/matzehuels/parsegraph/pkg/render/nodelink
// [viewer]: https://pkg.go.dev/github.com/matzehuels/parsegraph/pkg/viewer
// [viewer.Engine]: https://pkg.go.dev/github.com/matzehuels/parsegraph/pkg/viewer#Engine
// [errors]: https://pkg.go.dev/github.com/matzehuels/parsegraph/pkg/errors
// [errors.Is]: https://pkg.go.dev/github.com/matzehuels/parsegraph/pkg/errors#Is
// [observability]: https://pkg.go.dev/github.com/matzehuels/parsegraph/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/parsegraph/pkg/buildinfo
package pkg
