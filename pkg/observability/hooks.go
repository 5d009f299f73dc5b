// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about analysis requests, cache operations, HTTP calls and
// graph rendering.
//
// Every category starts out as a no-op. The Prometheus-backed implementation lives in the prom subpackage and is
// registered by the serve command.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Analysis().OnAnalyzeStart(ctx, fingerprint)
//	// ... call the backend ...
//	observability.Analysis().OnAnalyzeComplete(ctx, fingerprint, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// AnalysisHooks receives events from the analysis orchestrator.
// Only network-path analyses are reported; cache hits go to [CacheHooks].
type AnalysisHooks interface {
	OnAnalyzeStart(ctx context.Context, fingerprint string)
	OnAnalyzeComplete(ctx context.Context, fingerprint string, duration time.Duration, err error)
}

// CacheHooks receives result cache lookups and writes. size is the number
// of entries after a write.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// HTTPHooks receives backend calls. OnError covers network failures and
// timeouts; HTTP error statuses arrive through OnResponse.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)
	OnError(ctx context.Context, method, host, path string, err error)
}

// RenderHooks receives one event per graph render, successful or not.
type RenderHooks interface {
	OnRender(ctx context.Context, surface string, duration time.Duration, err error)
}

type NoopAnalysisHooks struct{}

func (NoopAnalysisHooks) OnAnalyzeStart(context.Context, string)                          {}
func (NoopAnalysisHooks) OnAnalyzeComplete(context.Context, string, time.Duration, error) {}

type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

type NoopRenderHooks struct{}

func (NoopRenderHooks) OnRender(context.Context, string, time.Duration, error) {}

// slot holds the registered implementation of one hook category.
type slot[H any] struct {
	mu   sync.RWMutex
	cur  H
	noop H
}

func newSlot[H any](noop H) *slot[H] { return &slot[H]{cur: noop, noop: noop} }

func (s *slot[H]) get() H {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// set installs h; a nil h is ignored.
func (s *slot[H]) set(h H) {
	if any(h) == nil {
		return
	}
	s.mu.Lock()
	s.cur = h
	s.mu.Unlock()
}

func (s *slot[H]) reset() {
	s.mu.Lock()
	s.cur = s.noop
	s.mu.Unlock()
}

var (
	analysisSlot = newSlot[AnalysisHooks](NoopAnalysisHooks{})
	cacheSlot    = newSlot[CacheHooks](NoopCacheHooks{})
	httpSlot     = newSlot[HTTPHooks](NoopHTTPHooks{})
	renderSlot   = newSlot[RenderHooks](NoopRenderHooks{})
)

// Register hooks once at startup, before the first request or render.

func SetAnalysisHooks(h AnalysisHooks) { analysisSlot.set(h) }
func SetCacheHooks(h CacheHooks)       { cacheSlot.set(h) }
func SetHTTPHooks(h HTTPHooks)         { httpSlot.set(h) }
func SetRenderHooks(h RenderHooks)     { renderSlot.set(h) }

func Analysis() AnalysisHooks { return analysisSlot.get() }
func Cache() CacheHooks       { return cacheSlot.get() }
func HTTP() HTTPHooks         { return httpSlot.get() }
func Render() RenderHooks     { return renderSlot.get() }

// Reset restores every category to its no-op default.
func Reset() {
	analysisSlot.reset()
	cacheSlot.reset()
	httpSlot.reset()
	renderSlot.reset()
}
