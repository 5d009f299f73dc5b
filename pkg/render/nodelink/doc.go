// Package nodelink renders parse trees as node-link diagrams.
//
// # Overview
//
// This package turns Graphviz DOT text into SVG using an in-process
// Graphviz, so no dot binary needs to be installed. Nodes appear as boxes
// connected by arrows, laid out top to bottom.
//
// # Usage
//
// Create one renderer and reuse it; the Graphviz runtime is initialized on
// first use and kept until [Graphviz.Close]:
//
//	r := nodelink.NewGraphviz()
//	defer r.Close()
//	svg, err := r.RenderSVG(ctx, dot)
//
// PDF and PNG are converted from the SVG:
//
//	png, err := render.Convert(svg, render.FormatPNG, 2.0)  // 2x scale
//
// DOT from an untrusted source should go through [dot.Sanitize] first.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering. PDF and PNG conversion through [render.Convert] requires
// librsvg (rsvg-convert).
//
// [dot.Sanitize]: github.com/matzehuels/parsegraph/pkg/render/dot.Sanitize
// [render.Convert]: github.com/matzehuels/parsegraph/pkg/render.Convert
package nodelink
