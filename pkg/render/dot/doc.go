// Package dot repairs and checks Graphviz DOT text received from an
// untrusted backend.
//
// # Overview
//
// The analysis backend emits parse trees as DOT, but the text often carries
// leftovers from the JSON and HTML layers it passed through (\u003d,
// &quot;) and small syntax defects such as missing semicolons or edges
// written as a->b. [Sanitize] fixes those line by line before the text is
// handed to a renderer.
//
// This is best-effort repair, not a parser. [Sanitize] never fails: if
// anything goes wrong the original text comes back together with a
// [RepairWarning], and the renderer gets a chance to fail on its own terms.
//
//	fixed, warn := dot.Sanitize(raw)
//	if warn != nil {
//	    logger.Warn("using unrepaired graph", "error", warn)
//	}
//	for _, w := range dot.Validate(fixed) {
//	    logger.Warn("suspicious graph", "warning", w)
//	}
//
// # Validation
//
// [Validate] is a separate lightweight check: graph-kind header, balanced
// braces, balanced quotes. Its findings are warnings only.
package dot
