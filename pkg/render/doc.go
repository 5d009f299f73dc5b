// Package render provides graph rendering for analysis results.
//
// # Overview
//
// This package contains the pieces that turn a parse tree graph into
// something a person can look at:
//
//   - DOT repair and validation (in [dot] subpackage)
//   - Graphviz node-link rendering (in [nodelink] subpackage)
//   - Generic format conversion (SVG to PDF/PNG)
//
// The interactive surface state (zoom, drag, export) lives in the viewer
// package, which drives these.
//
// # Format Conversion
//
// The [ToPDF] and [ToPNG] functions convert any SVG to other formats using
// the external rsvg-convert tool (from librsvg).
//
//	svg, err := nodelink.NewGraphviz().RenderSVG(ctx, text)
//	pdf, err := render.ToPDF(svg)
//	png, err := render.ToPNG(svg, 2.0)  // 2x scale
//
// [dot]: github.com/matzehuels/parsegraph/pkg/render/dot
// [nodelink]: github.com/matzehuels/parsegraph/pkg/render/nodelink
package render
