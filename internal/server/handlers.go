package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/parsegraph/pkg/analysis"
	perrors "github.com/matzehuels/parsegraph/pkg/errors"
	"github.com/matzehuels/parsegraph/pkg/lifecycle"
	"github.com/matzehuels/parsegraph/pkg/render"
	"github.com/matzehuels/parsegraph/pkg/viewer"
)

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	Code string `json:"code"`
}

// AnalyzeResponse carries the analysis and the state of the result surfaces
// after rendering it.
type AnalyzeResponse struct {
	Result   analysis.Result      `json:"result"`
	Cached   bool                 `json:"cached"`
	Surfaces []viewer.SurfaceView `json:"surfaces"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	analysis.Status
	Server string         `json:"server"`
	Info   map[string]any `json:"info,omitempty"`
}

// Settings is the runtime-adjustable part of the service configuration.
type Settings struct {
	Server string `json:"server"`
	Cache  *bool  `json:"cache,omitempty"`
}

// RequestView is a lifecycle record with its error flattened to text.
type RequestView struct {
	lifecycle.Record
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// RequestsResponse is the body of GET /api/requests.
type RequestsResponse struct {
	Active  []RequestView `json:"active"`
	History []RequestView `json:"history"`
}

// WheelRequest is one scroll step.
type WheelRequest struct {
	DeltaY float64 `json:"delta_y"`
}

// DragRequest is a pointer event of a drag gesture.
type DragRequest struct {
	Action string  `json:"action"` // start, move or end
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// HandleAnalyze handles POST /api/analyze.
//
// The result graphs are rendered onto the parse-tree and ast surfaces before
// responding, so a front end can fetch them right away.
func (s *Server) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, cached, err := s.svc.AnalyzeWithCacheInfo(r.Context(), req.Code)
	if err != nil {
		s.logger.Warn("analysis failed", "error", err, "request_id", requestID(r))
		writeError(w, err)
		return
	}

	s.engine.ShowResult(r.Context(), res)
	resp := AnalyzeResponse{Result: res, Cached: cached}
	for _, id := range []string{viewer.SurfaceParseTree, viewer.SurfaceAST} {
		if v, ok := s.engine.Surface(id); ok {
			resp.Surfaces = append(resp.Surfaces, v)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleStatus handles GET /api/status.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.svc.CheckStatus(r.Context())
	resp := StatusResponse{Status: st, Server: s.svc.BaseURL()}
	if st.Online {
		if info, ok := s.svc.ServerInfo(r.Context()); ok {
			resp.Info = info
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGetSettings handles GET /api/settings.
func (s *Server) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	enabled := s.svc.CacheEnabled()
	writeJSON(w, http.StatusOK, Settings{Server: s.svc.BaseURL(), Cache: &enabled})
}

// HandlePutSettings handles PUT /api/settings. Changing the server clears
// the result cache; an empty server leaves it unchanged.
func (s *Server) HandlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req Settings
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Server != "" {
		if err := perrors.ValidateURL(req.Server); err != nil {
			writeError(w, err)
			return
		}
		s.svc.SetBaseURL(req.Server)
		s.logger.Info("backend changed", "server", s.svc.BaseURL())
	}
	if req.Cache != nil {
		s.svc.SetCacheEnabled(*req.Cache)
	}
	s.HandleGetSettings(w, r)
}

// HandleClearCache handles DELETE /api/cache.
func (s *Server) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	s.svc.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

// HandleRequests handles GET /api/requests.
func (s *Server) HandleRequests(w http.ResponseWriter, r *http.Request) {
	t := s.svc.Tracker()
	writeJSON(w, http.StatusOK, RequestsResponse{
		Active:  requestViews(t.ActiveRecords()),
		History: requestViews(t.History()),
	})
}

func requestViews(recs []lifecycle.Record) []RequestView {
	out := make([]RequestView, len(recs))
	for i, rec := range recs {
		out[i] = RequestView{Record: rec, Done: rec.Status.Terminal(), Error: rec.Error()}
	}
	return out
}

// HandleSurfaces handles GET /api/surfaces.
func (s *Server) HandleSurfaces(w http.ResponseWriter, r *http.Request) {
	ids := s.engine.Surfaces()
	out := make([]viewer.SurfaceView, 0, len(ids))
	for _, id := range ids {
		if v, ok := s.engine.Surface(id); ok {
			out = append(out, v)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleClear handles DELETE /api/surfaces.
func (s *Server) HandleClear(w http.ResponseWriter, r *http.Request) {
	s.engine.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// HandleSurface handles GET /api/surfaces/{id}.
func (s *Server) HandleSurface(w http.ResponseWriter, r *http.Request) {
	s.writeSurface(w, chi.URLParam(r, "id"))
}

func (s *Server) writeSurface(w http.ResponseWriter, id string) {
	v, ok := s.engine.Surface(id)
	if !ok {
		writeError(w, perrors.New(perrors.ErrCodeSurfaceNotFound, "surface %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleExport handles GET /api/surfaces/{id}/export.
//
// Query parameters: format (svg, pdf or png; default svg) and scale (PNG
// only; default 2).
func (s *Server) HandleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	format := render.FormatSVG
	if f := r.URL.Query().Get("format"); f != "" {
		var err error
		if format, err = render.ParseFormat(f); err != nil {
			writeError(w, err)
			return
		}
	}
	scale, err := parseFloat(r, "scale", 2)
	if err != nil {
		writeError(w, err)
		return
	}

	exp, err := s.engine.ExportAs(id, format, scale)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", exp.MediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(exp.Data)))
	_, _ = w.Write(exp.Data)
}

// HandleWheel handles POST /api/surfaces/{id}/wheel.
func (s *Server) HandleWheel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req WheelRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.engine.Wheel(id, req.DeltaY); err != nil {
		writeError(w, err)
		return
	}
	s.writeSurface(w, id)
}

// HandleDrag handles POST /api/surfaces/{id}/drag.
func (s *Server) HandleDrag(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req DragRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	var err error
	switch req.Action {
	case "start":
		err = s.engine.DragStart(id, req.X, req.Y)
	case "move":
		_, err = s.engine.DragMove(id, req.X, req.Y)
	case "end":
		s.engine.DragEnd(id)
	default:
		err = perrors.New(perrors.ErrCodeInvalidInput, "unknown drag action %q (want start, move or end)", req.Action)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeSurface(w, id)
}

// HandleReset handles POST /api/surfaces/{id}/reset.
func (s *Server) HandleReset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.ResetZoom(id); err != nil {
		writeError(w, err)
		return
	}
	s.writeSurface(w, id)
}
