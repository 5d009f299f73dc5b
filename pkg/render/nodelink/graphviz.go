package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/goccy/go-graphviz"

	perrors "github.com/matzehuels/parsegraph/pkg/errors"
)

// Graphviz renders DOT text to SVG with an in-process Graphviz.
//
// The Graphviz runtime is created on first use rather than in the
// constructor. If creation fails the error is returned and the next call
// tries again. A Graphviz is safe for concurrent use; renders are
// serialized because the underlying runtime is not reentrant.
type Graphviz struct {
	mu    sync.Mutex
	gv    *graphviz.Graphviz
	newGV func(context.Context) (*graphviz.Graphviz, error)
}

// NewGraphviz returns a renderer that initializes Graphviz lazily.
func NewGraphviz() *Graphviz {
	return &Graphviz{newGV: func(ctx context.Context) (*graphviz.Graphviz, error) { return graphviz.New(ctx) }}
}

// Init creates the Graphviz runtime if it doesn't exist yet. Calling Init is
// optional; [Graphviz.RenderSVG] does it on demand.
func (r *Graphviz) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initLocked(ctx)
}

func (r *Graphviz) initLocked(ctx context.Context) error {
	if r.gv != nil {
		return nil
	}
	gv, err := r.newGV(ctx)
	if err != nil {
		return perrors.Wrap(perrors.ErrCodeRenderUnavailable, err, "init graphviz")
	}
	r.gv = gv
	return nil
}

// RenderSVG lays out dot and returns SVG bytes with a normalized viewBox.
//
// Initialization failures carry RENDER_UNAVAILABLE; parse and layout
// failures carry RENDER_FAILED.
func (r *Graphviz) RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.initLocked(ctx); err != nil {
		return nil, err
	}

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeRenderFailed, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := r.gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeRenderFailed, err, "render")
	}
	return normalizeViewBox(buf.Bytes()), nil
}

// Close releases the Graphviz runtime. The renderer can be used again
// afterwards; it will reinitialize on the next render.
func (r *Graphviz) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gv == nil {
		return nil
	}
	err := r.gv.Close()
	r.gv = nil
	return err
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root <svg> tag so the drawing starts at the
// origin and its width and height match the viewBox. Graphviz emits pt units
// and a translated viewBox, which scale badly when embedded.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	replaced := false
	return svgTagRe.ReplaceAllFunc(svg, func(m []byte) []byte {
		if replaced {
			return m
		}
		replaced = true
		return []byte(tag)
	})
}
