package httputil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	perrors "github.com/matzehuels/parsegraph/pkg/errors"
)

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(ClientOptions{BaseURL: "http://localhost:7071/"})

	if c.BaseURL() != "http://localhost:7071" {
		t.Errorf("BaseURL() = %q, want trailing slash removed", c.BaseURL())
	}
	if c.Timeout() != DefaultTimeout {
		t.Errorf("Timeout() = %v, want %v", c.Timeout(), DefaultTimeout)
	}
	if c.http == nil {
		t.Error("http client is nil")
	}
}

func TestClientSetBaseURL(t *testing.T) {
	c := NewClient(ClientOptions{BaseURL: "http://a"})
	if !c.SetBaseURL("http://b:9000//") {
		t.Error("SetBaseURL() should report a change")
	}
	if c.BaseURL() != "http://b:9000" {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
	if c.SetBaseURL(" http://b:9000/ ") {
		t.Error("SetBaseURL() with the same normalized address should report no change")
	}
}

func TestClientSendJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/analyse" {
			t.Errorf("path = %s, want /analyse", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "text/plain; charset=utf-8" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "fn main() {}" {
			t.Errorf("body = %q", body)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"message":"hello"}`))
	}))
	defer server.Close()

	c := NewClient(ClientOptions{BaseURL: server.URL})
	resp, err := c.Send(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/analyse",
		Header: map[string]string{"Content-Type": "text/plain; charset=utf-8"},
		Body:   []byte("fn main() {}"),
	})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if !resp.Structured {
		t.Error("JSON response should be structured")
	}

	var v struct {
		Message string `json:"message"`
	}
	if err := resp.Decode(&v); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if v.Message != "hello" {
		t.Errorf("message = %q, want %q", v.Message, "hello")
	}
}

func TestClientSendText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	c := NewClient(ClientOptions{BaseURL: server.URL})
	resp, err := c.Send(context.Background(), Request{Path: "/health"})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if resp.Structured {
		t.Error("text response should not be structured")
	}
	if resp.Text() != "OK" {
		t.Errorf("Text() = %q, want OK", resp.Text())
	}
	if err := resp.Decode(&struct{}{}); !perrors.Is(err, perrors.ErrCodeInvalidFormat) {
		t.Errorf("Decode() on text error = %v, want INVALID_FORMAT", err)
	}
}

func TestClientSendMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": tru`))
	}))
	defer server.Close()

	c := NewClient(ClientOptions{BaseURL: server.URL})
	_, err := c.Send(context.Background(), Request{Path: "/analyse"})
	if !perrors.Is(err, perrors.ErrCodeInvalidFormat) {
		t.Errorf("Send() error = %v, want INVALID_FORMAT", err)
	}
	if !IsPermanent(err) {
		t.Error("malformed JSON should be permanent")
	}
}

func TestClientSendHTTPError(t *testing.T) {
	tests := []struct {
		status    int
		message   string
		permanent bool
	}{
		{http.StatusNotFound, "HTTP 404: Not Found", true},
		{http.StatusBadRequest, "HTTP 400: Bad Request", true},
		{http.StatusInternalServerError, "HTTP 500: Internal Server Error", false},
		{http.StatusBadGateway, "HTTP 502: Bad Gateway", false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			c := NewClient(ClientOptions{BaseURL: server.URL})
			_, err := c.Send(context.Background(), Request{Path: "/"})

			var te *TransportError
			if !errors.As(err, &te) {
				t.Fatalf("Send() error = %T, want *TransportError", err)
			}
			if te.Kind != KindHTTP || te.StatusCode != tt.status {
				t.Errorf("got kind=%v status=%d", te.Kind, te.StatusCode)
			}
			if te.Error() != tt.message {
				t.Errorf("Error() = %q, want %q", te.Error(), tt.message)
			}
			if te.Permanent() != tt.permanent {
				t.Errorf("Permanent() = %v, want %v", te.Permanent(), tt.permanent)
			}
		})
	}
}

func TestClientSendTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := NewClient(ClientOptions{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := c.Send(context.Background(), Request{Path: "/slow"})

	var te *TransportError
	if !errors.As(err, &te) || te.Kind != KindTimeout {
		t.Fatalf("Send() error = %v, want timeout", err)
	}
	if te.Code() != perrors.ErrCodeTimeout {
		t.Errorf("Code() = %v", te.Code())
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %v, call was not cancelled", elapsed)
	}
}

func TestClientSendNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewClient(ClientOptions{BaseURL: url})
	_, err := c.Send(context.Background(), Request{Path: "/health"})

	var te *TransportError
	if !errors.As(err, &te) || te.Kind != KindNetwork {
		t.Fatalf("Send() error = %v, want network error", err)
	}
	if IsPermanent(err) {
		t.Error("network errors should be transient")
	}
}

func TestClientSendCallerCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	c := NewClient(ClientOptions{BaseURL: server.URL, Timeout: 5 * time.Second})
	_, err := c.Send(ctx, Request{Path: "/"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Send() error = %v, want context.Canceled", err)
	}
}

func TestClientHeadersOverrideDefaults(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Override")
	}))
	defer server.Close()

	c := NewClient(ClientOptions{BaseURL: server.URL, Headers: map[string]string{"X-Override": "default"}})
	if _, err := c.Send(context.Background(), Request{Path: "/", Header: map[string]string{"X-Override": "request"}}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if got != "request" {
		t.Errorf("header = %q, want %q", got, "request")
	}
}

func TestClientContentTypeOnlyWithBody(t *testing.T) {
	var got []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Content-Type"))
	}))
	defer server.Close()

	c := NewClient(ClientOptions{BaseURL: server.URL})
	if _, err := c.Send(context.Background(), Request{Path: "/status"}); err != nil {
		t.Fatalf("Send(GET) error: %v", err)
	}
	if _, err := c.Send(context.Background(), Request{Method: http.MethodPost, Path: "/analyse", Body: []byte(`{}`)}); err != nil {
		t.Fatalf("Send(POST) error: %v", err)
	}
	if len(got) != 2 || got[0] != "" || got[1] != "application/json" {
		t.Errorf("Content-Type per request = %q, want [\"\" \"application/json\"]", got)
	}
}

func TestSendWithRetry(t *testing.T) {
	t.Run("404 attempted once", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		c := NewClient(ClientOptions{BaseURL: server.URL})
		_, err := c.SendWithRetry(context.Background(), Request{Path: "/analyse"}, 4, time.Millisecond)
		if err == nil {
			t.Fatal("expected error")
		}
		if hits.Load() != 1 {
			t.Errorf("hits = %d, want 1", hits.Load())
		}
	})

	t.Run("500 then success", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("ok"))
		}))
		defer server.Close()

		c := NewClient(ClientOptions{BaseURL: server.URL})
		resp, err := c.SendWithRetry(context.Background(), Request{Path: "/"}, 4, time.Millisecond)
		if err != nil {
			t.Fatalf("SendWithRetry() error: %v", err)
		}
		if resp.Text() != "ok" {
			t.Errorf("Text() = %q", resp.Text())
		}
		if hits.Load() != 3 {
			t.Errorf("hits = %d, want 3", hits.Load())
		}
	})
}

func TestIsJSON(t *testing.T) {
	tests := map[string]bool{
		"application/json":                true,
		"application/json; charset=utf-8": true,
		"application/problem+json":        true,
		"text/plain":                      false,
		"":                                false,
	}
	for ct, want := range tests {
		if got := isJSON(ct); got != want {
			t.Errorf("isJSON(%q) = %v, want %v", ct, got, want)
		}
	}
}
