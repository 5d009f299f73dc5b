// Package analysis orchestrates requests against the source-analysis backend.
//
// A [Service] accepts source text and returns a validated [Result]. It combines
// the pieces underneath it:
//
//   - [cache.FIFO] keyed by [cache.Fingerprint] so identical text is only
//     analysed once
//   - [httputil.Client.SendWithRetry] for bounded, retried transport
//   - [lifecycle.Tracker] so callers can observe in-flight and past requests
//
// # Usage
//
//	svc := analysis.New(analysis.Options{BaseURL: "http://localhost:7071"})
//	res, err := svc.Analyze(ctx, "fn main() {}")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.ParseTree.Dot)
//
// Results returned to callers are copies; mutating one never affects the
// cached value.
package analysis

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/parsegraph/pkg/buildinfo"
	"github.com/matzehuels/parsegraph/pkg/cache"
	perrors "github.com/matzehuels/parsegraph/pkg/errors"
	"github.com/matzehuels/parsegraph/pkg/httputil"
	"github.com/matzehuels/parsegraph/pkg/lifecycle"
	"github.com/matzehuels/parsegraph/pkg/observability"
)

// DefaultBaseURL is the address of a locally running backend.
const DefaultBaseURL = "http://localhost:7071"

const (
	analysePath = "/analyse"
	healthPath  = "/health"
	infoPath    = "/info"

	cacheKeyType = "analysis"
)

// Status is the outcome of a health probe.
type Status struct {
	Online  bool   `json:"online"`
	Message string `json:"message"`
}

// Options configures a [Service]. Zero values pick defaults.
type Options struct {
	BaseURL     string        // default DefaultBaseURL
	Timeout     time.Duration // per-call deadline, default httputil.DefaultTimeout
	Attempts    int           // total attempts per analysis, default httputil.DefaultAttempts
	RetryDelay  time.Duration // linear backoff base, default httputil.DefaultRetryDelay
	CacheSize   int           // default cache.DefaultSize
	NoCache     bool          // start with caching disabled
	HistorySize int           // default lifecycle.DefaultHistorySize

	// Tracker receives request records. A private one is created if nil.
	Tracker    *lifecycle.Tracker
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Service is the analysis orchestrator. It is safe for concurrent use.
//
// Concurrent analyses of the same text are not coalesced: both go to the
// backend and the last one to finish owns the cache entry.
type Service struct {
	client   *httputil.Client
	cache    *cache.FIFO[Result]
	tracker  *lifecycle.Tracker
	attempts int
	delay    time.Duration
	logger   *log.Logger

	mu           sync.RWMutex
	cacheEnabled bool
}

// New creates a Service.
func New(opts Options) *Service {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Attempts <= 0 {
		opts.Attempts = httputil.DefaultAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = httputil.DefaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Tracker == nil {
		opts.Tracker = lifecycle.New(lifecycle.Options{HistorySize: opts.HistorySize, Logger: opts.Logger})
	}
	return &Service{
		client: httputil.NewClient(httputil.ClientOptions{
			BaseURL:    opts.BaseURL,
			Timeout:    opts.Timeout,
			Headers:    map[string]string{"User-Agent": buildinfo.UserAgent()},
			HTTPClient: opts.HTTPClient,
			Logger:     opts.Logger,
		}),
		cache:        cache.New[Result](opts.CacheSize),
		tracker:      opts.Tracker,
		attempts:     opts.Attempts,
		delay:        opts.RetryDelay,
		logger:       opts.Logger,
		cacheEnabled: !opts.NoCache,
	}
}

// Analyze submits code for analysis, serving repeated text from the cache.
func (s *Service) Analyze(ctx context.Context, code string) (Result, error) {
	res, _, err := s.AnalyzeWithCacheInfo(ctx, code)
	return res, err
}

// AnalyzeWithCacheInfo is [Service.Analyze] that also reports whether the
// result came from the cache.
//
// Empty or whitespace-only text fails with INVALID_INPUT before any network
// activity. Cache hits skip transport and tracking entirely. Cancelling ctx
// records the request as cancelled and returns a CANCELLED error.
func (s *Service) AnalyzeWithCacheInfo(ctx context.Context, code string) (Result, bool, error) {
	if err := perrors.ValidateSource(code); err != nil {
		return Result{}, false, err
	}

	fp := cache.Fingerprint(code)
	cacheHooks := observability.Cache()
	if s.CacheEnabled() {
		if res, ok := s.cache.Get(fp); ok {
			cacheHooks.OnCacheHit(ctx, cacheKeyType)
			s.logger.Debug("analysis cache hit", "key", fp)
			return res.Clone(), true, nil
		}
		cacheHooks.OnCacheMiss(ctx, cacheKeyType)
	}

	id := lifecycle.NewID("analyze")
	s.tracker.Start(id, "analyze source")

	hooks := observability.Analysis()
	hooks.OnAnalyzeStart(ctx, fp)
	start := time.Now()
	res, err := s.fetch(ctx, code)
	hooks.OnAnalyzeComplete(ctx, fp, time.Since(start), err)

	if err != nil {
		if isCancelled(ctx, err) {
			s.tracker.Cancel(id)
			return Result{}, false, perrors.Wrap(perrors.ErrCodeCancelled, err, "analysis cancelled")
		}
		err = perrors.Wrap(httputil.CodeOf(err), err, "analysis failed")
		s.tracker.Complete(id, nil, err)
		return Result{}, false, err
	}

	if s.CacheEnabled() {
		s.cache.Put(fp, res.Clone())
		cacheHooks.OnCacheSet(ctx, cacheKeyType, s.cache.Len())
	}
	s.tracker.Complete(id, res.Clone(), nil)
	return res, false, nil
}

func (s *Service) fetch(ctx context.Context, code string) (Result, error) {
	resp, err := s.client.SendWithRetry(ctx, httputil.Request{
		Method: http.MethodPost,
		Path:   analysePath,
		Header: map[string]string{"Content-Type": "text/plain; charset=utf-8"},
		Body:   []byte(code),
	}, s.attempts, s.delay)
	if err != nil {
		return Result{}, err
	}
	if !resp.Structured {
		return Result{}, perrors.New(perrors.ErrCodeInvalidFormat,
			"invalid analysis response: expected JSON, got %q", resp.ContentType)
	}
	return DecodeResult(resp.Data)
}

// CheckStatus probes the backend's health endpoint once, without retries.
// It never fails: problems are reported as an offline Status.
func (s *Service) CheckStatus(ctx context.Context) Status {
	id := lifecycle.NewID("status")
	s.tracker.Start(id, "check server status")

	_, err := s.client.Send(ctx, httputil.Request{Method: http.MethodGet, Path: healthPath})
	if err != nil {
		if isCancelled(ctx, err) {
			s.tracker.Cancel(id)
		} else {
			s.tracker.Complete(id, nil, err)
		}
		return Status{Online: false, Message: err.Error()}
	}

	st := Status{Online: true, Message: "server connection ok"}
	s.tracker.Complete(id, st, nil)
	return st
}

// ServerInfo fetches the backend's self-description. The call is best
// effort: failures are logged and reported as false.
func (s *Service) ServerInfo(ctx context.Context) (map[string]any, bool) {
	resp, err := s.client.Send(ctx, httputil.Request{Method: http.MethodGet, Path: infoPath})
	if err != nil {
		s.logger.Warn("could not fetch server info", "error", err)
		return nil, false
	}
	var info map[string]any
	if err := resp.Decode(&info); err != nil {
		s.logger.Warn("could not fetch server info", "error", err)
		return nil, false
	}
	return info, true
}

// BaseURL returns the current backend address.
func (s *Service) BaseURL() string { return s.client.BaseURL() }

// SetBaseURL points the service at another backend. Results cached from the
// previous backend are dropped; setting the current address again keeps them.
func (s *Service) SetBaseURL(u string) {
	if !s.client.SetBaseURL(u) {
		return
	}
	s.cache.Clear()
	s.logger.Debug("backend changed", "url", s.client.BaseURL())
}

// SetCacheEnabled turns result caching on or off. Disabling it also drops
// every cached result.
func (s *Service) SetCacheEnabled(enabled bool) {
	s.mu.Lock()
	s.cacheEnabled = enabled
	s.mu.Unlock()
	if !enabled {
		s.cache.Clear()
	}
}

// CacheEnabled reports whether results are cached.
func (s *Service) CacheEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cacheEnabled
}

// ClearCache drops every cached result.
func (s *Service) ClearCache() { s.cache.Clear() }

// Cache exposes the result cache, e.g. for persisting it between runs.
func (s *Service) Cache() *cache.FIFO[Result] { return s.cache }

// Tracker returns the lifecycle tracker receiving this service's records.
func (s *Service) Tracker() *lifecycle.Tracker { return s.tracker }

func isCancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
