package analysis

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/parsegraph/pkg/buildinfo"
	perrors "github.com/matzehuels/parsegraph/pkg/errors"
	"github.com/matzehuels/parsegraph/pkg/lifecycle"
)

const sampleResponse = `{
	"success": true,
	"tokens": [
		{"type": "KW_FN", "text": "fn", "line": 1, "column": 0},
		{"type": "IDENT", "text": "main", "line": 1, "column": 3}
	],
	"parseTree": {"lisp": "(program (fn main))", "dot": "digraph G { a -> b }"},
	"errors": []
}`

// fakeBackend serves /analyse, /health and /info and counts analyse calls.
type fakeBackend struct {
	*httptest.Server
	hits atomic.Int32
	body atomic.Value
}

func newFakeBackend(t *testing.T, analyse http.HandlerFunc) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/analyse", func(w http.ResponseWriter, r *http.Request) {
		fb.hits.Add(1)
		data, _ := io.ReadAll(r.Body)
		fb.body.Store(string(data))
		analyse(w, r)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"rust-analyser","version":"0.3.1"}`))
	})
	fb.Server = httptest.NewServer(mux)
	t.Cleanup(fb.Close)
	return fb
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func newTestService(url string) *Service {
	return New(Options{
		BaseURL:    url,
		Attempts:   4,
		RetryDelay: time.Millisecond,
		Timeout:    2 * time.Second,
		Logger:     log.New(io.Discard),
	})
}

func TestAnalyzeEndToEnd(t *testing.T) {
	fb := newFakeBackend(t, jsonHandler(sampleResponse))
	svc := newTestService(fb.URL)
	ctx := context.Background()

	res, hit, err := svc.AnalyzeWithCacheInfo(ctx, "fn main() {}")
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if hit {
		t.Error("first call should not be a cache hit")
	}
	if !res.Success || len(res.Tokens) != 2 || res.ParseTree.Dot != "digraph G { a -> b }" {
		t.Errorf("unexpected result: %+v", res)
	}
	if got := fb.body.Load(); got != "fn main() {}" {
		t.Errorf("backend received %q", got)
	}

	res2, hit, err := svc.AnalyzeWithCacheInfo(ctx, "fn main() {}")
	if err != nil {
		t.Fatalf("second Analyze() error: %v", err)
	}
	if !hit {
		t.Error("second call should be a cache hit")
	}
	if fb.hits.Load() != 1 {
		t.Errorf("backend hits = %d, want 1", fb.hits.Load())
	}
	if res2.ParseTree != res.ParseTree {
		t.Error("cached result differs")
	}

	hist := svc.Tracker().History()
	if len(hist) != 1 || hist[0].Status != lifecycle.StatusSuccess {
		t.Errorf("History() = %+v, want one success record", hist)
	}
}

func TestAnalyzeSendsUserAgent(t *testing.T) {
	var agent atomic.Value
	fb := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.Header.Get("User-Agent"))
		jsonHandler(sampleResponse)(w, r)
	})
	if _, err := newTestService(fb.URL).Analyze(context.Background(), "fn main() {}"); err != nil {
		t.Fatal(err)
	}
	if got := agent.Load(); got != buildinfo.UserAgent() {
		t.Errorf("User-Agent = %v, want %q", got, buildinfo.UserAgent())
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	fb := newFakeBackend(t, jsonHandler(sampleResponse))
	svc := newTestService(fb.URL)

	for _, code := range []string{"", "   ", "\n\t "} {
		_, err := svc.Analyze(context.Background(), code)
		if !perrors.Is(err, perrors.ErrCodeInvalidInput) {
			t.Errorf("Analyze(%q) error = %v, want INVALID_INPUT", code, err)
		}
	}
	if fb.hits.Load() != 0 {
		t.Errorf("backend hits = %d, want 0", fb.hits.Load())
	}
	if len(svc.Tracker().History()) != 0 {
		t.Error("rejected input should not be tracked")
	}
}

func TestAnalyzeInvalidPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing parseTree", `{"success":true,"tokens":[],"errors":[]}`},
		{"missing success", `{"tokens":[],"parseTree":{"lisp":"","dot":""},"errors":[]}`},
		{"tokens not array", `{"success":true,"tokens":{},"parseTree":{"lisp":"","dot":""},"errors":[]}`},
		{"token without type", `{"success":true,"tokens":[{"text":"fn","line":1,"column":0}],"parseTree":{"lisp":"","dot":""},"errors":[]}`},
		{"token line as string", `{"success":true,"tokens":[{"type":"KW","text":"fn","line":"1","column":0}],"parseTree":{"lisp":"","dot":""},"errors":[]}`},
		{"diagnostic without message", `{"success":false,"tokens":[],"parseTree":{"lisp":"","dot":""},"errors":[{"line":1,"column":2}]}`},
		{"ast without dot", `{"success":true,"tokens":[],"parseTree":{"lisp":"","dot":""},"errors":[],"ast":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := newFakeBackend(t, jsonHandler(tt.body))
			svc := newTestService(fb.URL)

			_, err := svc.Analyze(context.Background(), "fn main() {}")
			if !perrors.Is(err, perrors.ErrCodeInvalidFormat) {
				t.Fatalf("Analyze() error = %v, want INVALID_FORMAT", err)
			}
			if svc.Cache().Len() != 0 {
				t.Error("invalid payload must not be cached")
			}
			if fb.hits.Load() != 1 {
				t.Errorf("backend hits = %d, want 1 (validation errors are not retried)", fb.hits.Load())
			}
			if hist := svc.Tracker().History(); hist[0].Status != lifecycle.StatusError {
				t.Errorf("record status = %q, want error", hist[0].Status)
			}
		})
	}
}

func TestAnalyzeHTTP404AttemptedOnce(t *testing.T) {
	fb := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	svc := newTestService(fb.URL)

	_, err := svc.Analyze(context.Background(), "fn main() {}")
	if !perrors.Is(err, perrors.ErrCodeHTTP) {
		t.Fatalf("Analyze() error = %v, want HTTP_ERROR", err)
	}
	if !strings.Contains(err.Error(), "HTTP 404: Not Found") {
		t.Errorf("error = %q, want status text", err)
	}
	if fb.hits.Load() != 1 {
		t.Errorf("backend hits = %d, want 1", fb.hits.Load())
	}
}

func TestAnalyzeServerErrorRetried(t *testing.T) {
	fb := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	svc := newTestService(fb.URL)

	_, err := svc.Analyze(context.Background(), "fn main() {}")
	if !perrors.Is(err, perrors.ErrCodeHTTP) {
		t.Fatalf("Analyze() error = %v, want HTTP_ERROR", err)
	}
	if fb.hits.Load() != 4 {
		t.Errorf("backend hits = %d, want 4", fb.hits.Load())
	}
}

func TestAnalyzeNetworkFailureRetried(t *testing.T) {
	// Count connection attempts with a listener that immediately hangs up.
	var attempts atomic.Int32
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("hijacking not supported")
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	srv.Start()
	defer srv.Close()

	svc := newTestService(srv.URL)
	_, err := svc.Analyze(context.Background(), "fn main() {}")
	if !perrors.Is(err, perrors.ErrCodeNetwork) {
		t.Fatalf("Analyze() error = %v, want NETWORK_ERROR", err)
	}
	if attempts.Load() != 4 {
		t.Errorf("attempts = %d, want 4", attempts.Load())
	}
}

func TestAnalyzeCancelled(t *testing.T) {
	fb := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	svc := newTestService(fb.URL)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := svc.Analyze(ctx, "fn main() {}")
	if !perrors.Is(err, perrors.ErrCodeCancelled) {
		t.Fatalf("Analyze() error = %v, want CANCELLED", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("error should wrap context.Canceled")
	}
	if hist := svc.Tracker().History(); hist[0].Status != lifecycle.StatusCancelled {
		t.Errorf("record status = %q, want cancelled", hist[0].Status)
	}
}

func TestAnalyzeResultsAreCopies(t *testing.T) {
	fb := newFakeBackend(t, jsonHandler(sampleResponse))
	svc := newTestService(fb.URL)

	res, _ := svc.Analyze(context.Background(), "fn main() {}")
	res.Tokens[0].Text = "mutated"

	again, _ := svc.Analyze(context.Background(), "fn main() {}")
	if again.Tokens[0].Text != "fn" {
		t.Error("mutating a returned result changed the cached one")
	}
}

func TestSetBaseURLClearsCache(t *testing.T) {
	fb := newFakeBackend(t, jsonHandler(sampleResponse))
	svc := newTestService(fb.URL)

	svc.Analyze(context.Background(), "fn main() {}")
	if svc.Cache().Len() != 1 {
		t.Fatal("result should be cached")
	}

	svc.SetBaseURL(fb.URL + "/")
	if svc.Cache().Len() != 1 {
		t.Error("SetBaseURL with the same address should keep the cache")
	}
	if svc.BaseURL() != fb.URL {
		t.Errorf("BaseURL() = %q, want trailing slash trimmed", svc.BaseURL())
	}

	other := newFakeBackend(t, jsonHandler(sampleResponse))
	svc.SetBaseURL(other.URL)
	if svc.Cache().Len() != 0 {
		t.Error("SetBaseURL should clear the cache")
	}

	svc.Analyze(context.Background(), "fn main() {}")
	if fb.hits.Load() != 1 || other.hits.Load() != 1 {
		t.Errorf("backend hits = %d/%d, want 1/1", fb.hits.Load(), other.hits.Load())
	}
}

func TestSetCacheEnabled(t *testing.T) {
	fb := newFakeBackend(t, jsonHandler(sampleResponse))
	svc := newTestService(fb.URL)
	ctx := context.Background()

	svc.Analyze(ctx, "fn main() {}")
	svc.SetCacheEnabled(false)
	if svc.Cache().Len() != 0 {
		t.Error("disabling the cache should clear it")
	}

	svc.Analyze(ctx, "fn main() {}")
	svc.Analyze(ctx, "fn main() {}")
	if fb.hits.Load() != 3 {
		t.Errorf("backend hits = %d, want 3 with caching disabled", fb.hits.Load())
	}
	if svc.Cache().Len() != 0 {
		t.Error("nothing should be cached while disabled")
	}

	svc.SetCacheEnabled(true)
	svc.Analyze(ctx, "fn main() {}")
	svc.Analyze(ctx, "fn main() {}")
	if fb.hits.Load() != 4 {
		t.Errorf("backend hits = %d, want 4", fb.hits.Load())
	}
}

func TestClearCache(t *testing.T) {
	fb := newFakeBackend(t, jsonHandler(sampleResponse))
	svc := newTestService(fb.URL)

	svc.Analyze(context.Background(), "fn main() {}")
	svc.ClearCache()
	svc.Analyze(context.Background(), "fn main() {}")
	if fb.hits.Load() != 2 {
		t.Errorf("backend hits = %d, want 2", fb.hits.Load())
	}
}

func TestCheckStatus(t *testing.T) {
	fb := newFakeBackend(t, jsonHandler(sampleResponse))
	svc := newTestService(fb.URL)

	st := svc.CheckStatus(context.Background())
	if !st.Online {
		t.Errorf("CheckStatus() = %+v, want online", st)
	}

	hist := svc.Tracker().History()
	if len(hist) != 1 || !strings.HasPrefix(hist[0].ID, "status-") {
		t.Errorf("History() = %+v, want one status record", hist)
	}
}

func TestCheckStatusOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	svc := newTestService(url)
	st := svc.CheckStatus(context.Background())
	if st.Online {
		t.Error("CheckStatus() reported online for a closed server")
	}
	if !strings.Contains(st.Message, "network error") {
		t.Errorf("Message = %q", st.Message)
	}
	if hist := svc.Tracker().History(); hist[0].Status != lifecycle.StatusError {
		t.Errorf("record status = %q, want error", hist[0].Status)
	}
}

func TestServerInfo(t *testing.T) {
	fb := newFakeBackend(t, jsonHandler(sampleResponse))
	svc := newTestService(fb.URL)

	info, ok := svc.ServerInfo(context.Background())
	if !ok {
		t.Fatal("ServerInfo() failed")
	}
	if info["name"] != "rust-analyser" {
		t.Errorf("info = %v", info)
	}

	svc.SetBaseURL(fb.URL + "/missing")
	if _, ok := svc.ServerInfo(context.Background()); ok {
		t.Error("ServerInfo() should report false on 404")
	}
}

func TestSharedTracker(t *testing.T) {
	fb := newFakeBackend(t, jsonHandler(sampleResponse))
	tr := lifecycle.New(lifecycle.Options{Logger: log.New(io.Discard)})

	var completed int
	tr.Subscribe(lifecycle.ListenerFuncs{Complete: func(lifecycle.Record) { completed++ }})

	svc := New(Options{BaseURL: fb.URL, Tracker: tr, Logger: log.New(io.Discard)})
	if svc.Tracker() != tr {
		t.Fatal("Tracker() should return the supplied tracker")
	}
	svc.Analyze(context.Background(), "fn main() {}")
	svc.Analyze(context.Background(), "fn main() {}")
	if completed != 1 {
		t.Errorf("completed = %d, want 1 (cache hits are not tracked)", completed)
	}
}
