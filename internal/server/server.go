// Package server exposes the analysis service and the graph viewer over HTTP
// for a local front end.
//
// # Routes
//
//	POST   /api/analyze               analyse source text, render both graphs
//	GET    /api/status                backend health and info
//	GET    /api/settings              backend URL and cache switch
//	PUT    /api/settings              change them
//	DELETE /api/cache                 drop cached results
//	GET    /api/requests              in-flight and past backend requests
//	GET    /api/surfaces              all surfaces
//	DELETE /api/surfaces              clear every surface
//	GET    /api/surfaces/{id}         one surface
//	GET    /api/surfaces/{id}/export  download the rendered graph (?format=svg|pdf|png)
//	POST   /api/surfaces/{id}/wheel   zoom step
//	POST   /api/surfaces/{id}/drag    drag start/move/end
//	POST   /api/surfaces/{id}/reset   reset zoom
//	GET    /metrics                   Prometheus metrics
//
// Errors are returned as JSON [ErrorResponse] values carrying the error code.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/parsegraph/pkg/analysis"
	perrors "github.com/matzehuels/parsegraph/pkg/errors"
	"github.com/matzehuels/parsegraph/pkg/viewer"
)

// maxBodySize caps request bodies.
const maxBodySize = 1 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Options configures [New].
type Options struct {
	// Gatherer backs /metrics. The route is omitted if nil.
	Gatherer prometheus.Gatherer
	Logger   *log.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	svc    *analysis.Service
	engine *viewer.Engine
	logger *log.Logger
	router chi.Router
}

// New wires the routes for svc and engine.
func New(svc *analysis.Service, engine *viewer.Engine, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	s := &Server{svc: svc, engine: engine, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.HandleAnalyze)
		r.Get("/status", s.HandleStatus)
		r.Get("/settings", s.HandleGetSettings)
		r.Put("/settings", s.HandlePutSettings)
		r.Delete("/cache", s.HandleClearCache)
		r.Get("/requests", s.HandleRequests)

		r.Get("/surfaces", s.HandleSurfaces)
		r.Delete("/surfaces", s.HandleClear)
		r.Route("/surfaces/{id}", func(r chi.Router) {
			r.Get("/", s.HandleSurface)
			r.Get("/export", s.HandleExport)
			r.Post("/wheel", s.HandleWheel)
			r.Post("/drag", s.HandleDrag)
			r.Post("/reset", s.HandleReset)
		})
	})

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", requestID(r))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err's code onto an HTTP status.
func writeError(w http.ResponseWriter, err error) {
	code := perrors.GetCode(err)
	if code == "" {
		code = perrors.ErrCodeInternal
	}
	writeJSON(w, statusFor(code), ErrorResponse{Error: perrors.UserMessage(err), Code: string(code)})
}

func statusFor(code perrors.Code) int {
	switch code {
	case perrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case perrors.ErrCodeSurfaceNotFound, perrors.ErrCodeNothingToExport:
		return http.StatusNotFound
	case perrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case perrors.ErrCodeHTTP, perrors.ErrCodeNetwork, perrors.ErrCodeInvalidFormat:
		return http.StatusBadGateway
	case perrors.ErrCodeRenderUnavailable:
		return http.StatusServiceUnavailable
	case perrors.ErrCodeCancelled:
		return 499 // client closed request
	}
	return http.StatusInternalServerError
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidInput, err, "invalid request body")
	}
	return nil
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

func parseFloat(r *http.Request, key string, def float64) (float64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, perrors.New(perrors.ErrCodeInvalidInput, "%s must be a number, got %q", key, v)
	}
	return f, nil
}
