// Package viewer keeps the interactive state of rendered graph surfaces.
//
// A surface is a named display area ("parse-tree", "ast", ...). The [Engine]
// renders DOT text onto a surface, remembers the last artifact for export,
// and tracks the pan/zoom transform the user has applied to it. Rendering
// problems never escape [Engine.Render]; they show up as a placeholder on
// the surface instead:
//
//	eng := viewer.New(nodelink.NewGraphviz(), viewer.Options{})
//	_ = eng.Render(ctx, res.ParseTree.Dot, viewer.SurfaceParseTree)
//	view, _ := eng.Surface(viewer.SurfaceParseTree)
//	if view.Status != viewer.StatusRendered {
//	    fmt.Println(view.Message)
//	}
package viewer

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	perrors "github.com/matzehuels/parsegraph/pkg/errors"
	"github.com/matzehuels/parsegraph/pkg/observability"
	"github.com/matzehuels/parsegraph/pkg/render"
	"github.com/matzehuels/parsegraph/pkg/render/dot"
)

// Zoom limits.
const (
	MinZoom = 0.1
	MaxZoom = 5.0

	zoomOut = 0.9
	zoomIn  = 1.1
)

// Renderer turns DOT text into SVG.
type Renderer interface {
	RenderSVG(ctx context.Context, dot string) ([]byte, error)
}

// initializer is implemented by renderers with an expensive setup step.
type initializer interface {
	Init(ctx context.Context) error
}

// Status is what a surface currently shows.
type Status string

const (
	StatusEmpty       Status = "empty"       // nothing rendered yet
	StatusRendered    Status = "rendered"    // the last render succeeded
	StatusError       Status = "error"       // the last render failed
	StatusUnavailable Status = "unavailable" // the renderer could not be loaded
)

// State is the result of the last successful render on a surface.
type State struct {
	SourceText string    `json:"source_text"` // sanitized DOT
	Artifact   []byte    `json:"-"`           // SVG
	Timestamp  time.Time `json:"timestamp"`
}

// Transform is the pan/zoom applied to a surface: scale first, then
// translate by the offsets.
type Transform struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
}

// Identity is the transform of an untouched surface.
var Identity = Transform{Scale: 1}

// SurfaceView is a snapshot of one surface.
type SurfaceView struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Zoom      float64   `json:"zoom"`
	Transform Transform `json:"transform"`
	Dragging  bool      `json:"dragging"`
	State     *State    `json:"state,omitempty"`
}

// Export is a downloadable copy of a surface's artifact.
type Export struct {
	Filename  string
	MediaType string
	Data      []byte
}

// Options configures an [Engine].
type Options struct {
	// EmptyMessages maps surface ids to the text shown when nothing is
	// rendered. Surfaces without an entry use a generic message.
	EmptyMessages map[string]string
	Logger        *log.Logger
}

type drag struct {
	startX, startY float64
	base           Transform
}

type surface struct {
	status    Status
	message   string
	state     *State
	zoom      float64
	transform Transform
	drag      *drag
}

// Engine manages graph surfaces. It is safe for concurrent use.
type Engine struct {
	renderer Renderer
	logger   *log.Logger
	empty    map[string]string
	now      func() time.Time

	initMu sync.Mutex
	ready  bool

	mu       sync.Mutex
	surfaces map[string]*surface
}

// New creates an Engine drawing with r.
func New(r Renderer, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Engine{
		renderer: r,
		logger:   opts.Logger,
		empty:    maps.Clone(opts.EmptyMessages),
		now:      time.Now,
		surfaces: make(map[string]*surface),
	}
}

// Render draws dotText on the surface id.
//
// Only an invalid surface id is reported as an error. A renderer that cannot
// be loaded leaves the surface unavailable, and a failed render leaves it
// showing the error message; both are visible through [Engine.Surface] and
// keep the last successful state exportable. On success the previous state
// is replaced and the view is reset to the surface's stored zoom.
func (e *Engine) Render(ctx context.Context, dotText, id string) error {
	if err := perrors.ValidateSurfaceID(id); err != nil {
		return err
	}

	if err := e.init(ctx); err != nil {
		e.logger.Error("graph renderer unavailable", "surface", id, "error", err)
		e.setPlaceholder(id, StatusUnavailable, "graph renderer failed to load: "+perrors.UserMessage(err))
		return nil
	}

	fixed, warn := dot.Sanitize(dotText)
	if warn != nil {
		e.logger.Warn("DOT repair failed, using original text", "surface", id, "error", warn)
	}
	for _, w := range dot.Validate(fixed) {
		e.logger.Warn("suspicious DOT", "surface", id, "warning", w)
	}

	start := time.Now()
	svg, err := e.renderer.RenderSVG(ctx, fixed)
	observability.Render().OnRender(ctx, id, time.Since(start), err)
	if err == nil && len(svg) == 0 {
		err = perrors.New(perrors.ErrCodeRenderFailed, "renderer produced no output")
	}
	if err != nil {
		e.logger.Error("graph render failed", "surface", id, "error", err)
		e.setPlaceholder(id, StatusError, "graph render failed: "+perrors.UserMessage(err))
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.surfaceLocked(id)
	s.status = StatusRendered
	s.message = ""
	s.state = &State{SourceText: fixed, Artifact: svg, Timestamp: e.now()}
	s.transform = Transform{Scale: s.zoom}
	s.drag = nil
	e.logger.Debug("graph rendered", "surface", id, "bytes", len(svg))
	return nil
}

// init loads the renderer once. A failed load is retried on the next call.
func (e *Engine) init(ctx context.Context) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.ready {
		return nil
	}
	if in, ok := e.renderer.(initializer); ok {
		if err := in.Init(ctx); err != nil {
			return err
		}
	}
	e.ready = true
	return nil
}

func (e *Engine) setPlaceholder(id string, st Status, msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.surfaceLocked(id)
	s.status = st
	s.message = msg
	s.drag = nil
}

// Clear discards all render state and zoom. Every known surface goes back
// to its empty placeholder.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range e.surfaces {
		e.surfaces[id] = e.newSurface(id)
	}
}

// SetEmpty shows the empty placeholder on a surface with a custom message.
// Zoom and the last rendered state are kept; only [Engine.Clear] drops them.
func (e *Engine) SetEmpty(id, message string) error {
	if err := perrors.ValidateSurfaceID(id); err != nil {
		return err
	}
	if message == "" {
		message = e.emptyMessage(id)
	}
	e.setPlaceholder(id, StatusEmpty, message)
	return nil
}

// Wheel applies one scroll step: positive deltaY zooms out by 10%, anything
// else zooms in by 10%. The zoom is clamped to [MinZoom, MaxZoom], stored
// for the surface and any drag offset is dropped. Returns the new zoom.
func (e *Engine) Wheel(id string, deltaY float64) (float64, error) {
	if err := perrors.ValidateSurfaceID(id); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.surfaceLocked(id)
	factor := zoomIn
	if deltaY > 0 {
		factor = zoomOut
	}
	s.zoom = clampZoom(s.zoom * factor)
	s.transform = Transform{Scale: s.zoom}
	return s.zoom, nil
}

// DragStart begins a drag at pointer position (x, y).
func (e *Engine) DragStart(id string, x, y float64) error {
	if err := perrors.ValidateSurfaceID(id); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.surfaceLocked(id)
	s.drag = &drag{startX: x, startY: y, base: s.transform}
	return nil
}

// DragMove moves an active drag to (x, y). The surface is translated by the
// pointer's distance from where the drag started, on top of the transform
// it had at that moment. Without an active drag this is a no-op.
func (e *Engine) DragMove(id string, x, y float64) (Transform, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.surfaces[id]
	if !ok {
		return Transform{}, perrors.New(perrors.ErrCodeSurfaceNotFound, "surface %q not found", id)
	}
	if s.drag == nil {
		return s.transform, nil
	}
	t := s.drag.base
	t.OffsetX += x - s.drag.startX
	t.OffsetY += y - s.drag.startY
	s.transform = t
	return t, nil
}

// DragEnd finishes the active drag, keeping the current transform.
func (e *Engine) DragEnd(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.surfaces[id]; ok {
		s.drag = nil
	}
}

// ResetZoom restores the identity transform and a stored zoom of 1.
func (e *Engine) ResetZoom(id string) error {
	if err := perrors.ValidateSurfaceID(id); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.surfaceLocked(id)
	s.zoom = 1
	s.transform = Identity
	s.drag = nil
	return nil
}

// Export returns the last rendered SVG of a surface as a download named
// <id>_YYYYMMDD_HHMMSS.svg. It fails with NOTHING_TO_EXPORT if the surface
// has no successful render since the last [Engine.Clear].
func (e *Engine) Export(id string) (Export, error) {
	e.mu.Lock()
	s, ok := e.surfaces[id]
	var st *State
	if ok {
		st = s.state
	}
	e.mu.Unlock()

	if st == nil {
		return Export{}, perrors.New(perrors.ErrCodeNothingToExport, "no graph to export on %q", id)
	}
	return Export{
		Filename:  fmt.Sprintf("%s_%s.svg", id, e.now().Format("20060102_150405")),
		MediaType: render.FormatSVG.MediaType(),
		Data:      slices.Clone(st.Artifact),
	}, nil
}

// ExportAs is [Engine.Export] converted to another format. PDF and PNG need
// rsvg-convert; scale only applies to PNG.
func (e *Engine) ExportAs(id string, f render.Format, scale float64) (Export, error) {
	exp, err := e.Export(id)
	if err != nil || f == render.FormatSVG {
		return exp, err
	}
	data, err := render.Convert(exp.Data, f, scale)
	if err != nil {
		return Export{}, err
	}
	exp.Data = data
	exp.MediaType = f.MediaType()
	exp.Filename = exp.Filename[:len(exp.Filename)-len(".svg")] + "." + string(f)
	return exp, nil
}

// State returns a copy of the surface's last successful render.
func (e *Engine) State(id string) (State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.surfaces[id]
	if !ok || s.state == nil {
		return State{}, false
	}
	return copyState(s.state), true
}

// Surface returns a snapshot of a surface.
func (e *Engine) Surface(id string) (SurfaceView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.surfaces[id]
	if !ok {
		return SurfaceView{}, false
	}
	v := SurfaceView{
		ID:        id,
		Status:    s.status,
		Message:   s.message,
		Zoom:      s.zoom,
		Transform: s.transform,
		Dragging:  s.drag != nil,
	}
	if s.state != nil {
		st := copyState(s.state)
		v.State = &st
	}
	return v, true
}

// Zoom returns the stored zoom of a surface, 1 for unknown surfaces.
func (e *Engine) Zoom(id string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.surfaces[id]; ok {
		return s.zoom
	}
	return 1
}

// Surfaces returns the ids of all known surfaces in sorted order.
func (e *Engine) Surfaces() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Sorted(maps.Keys(e.surfaces))
}

// must hold e.mu
func (e *Engine) surfaceLocked(id string) *surface {
	s, ok := e.surfaces[id]
	if !ok {
		s = e.newSurface(id)
		e.surfaces[id] = s
	}
	return s
}

func (e *Engine) newSurface(id string) *surface {
	return &surface{
		status:    StatusEmpty,
		message:   e.emptyMessage(id),
		zoom:      1,
		transform: Identity,
	}
}

func (e *Engine) emptyMessage(id string) string {
	if msg, ok := e.empty[id]; ok {
		return msg
	}
	return "nothing rendered yet"
}

func clampZoom(z float64) float64 {
	return max(MinZoom, min(MaxZoom, z))
}

func copyState(st *State) State {
	out := *st
	out.Artifact = slices.Clone(st.Artifact)
	return out
}
