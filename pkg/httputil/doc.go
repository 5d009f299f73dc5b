// Package httputil provides the transport layer used to talk to the analysis
// backend.
//
// # Overview
//
// This package provides two pieces of infrastructure:
//
//   - [Client]: single bounded-time HTTP calls with classified failures
//   - [Retry]: bounded retry with linear backoff
//
// # Transport
//
// [Client.Send] issues exactly one call. A hard wall-clock deadline is applied
// per call; when it expires the in-flight request is cancelled and a
// [TransportError] of kind [KindTimeout] is returned. Non-2xx responses become
// [KindHTTP] errors carrying the status ("HTTP 404: Not Found"), connection
// problems become [KindNetwork]. Bodies declared as JSON are checked for
// well-formedness; anything else is kept as text.
//
//	client := httputil.NewClient(httputil.ClientOptions{BaseURL: "http://localhost:7071"})
//	resp, err := client.Send(ctx, httputil.Request{Method: http.MethodGet, Path: "/health"})
//
// # Retry
//
// [Retry] separates permanent failures from transient ones. A 4xx status means
// the request itself is wrong, so it is returned after a single attempt.
// Timeouts, 5xx and network errors are retried, waiting baseDelay × attempt
// between tries:
//
//	resp, err := client.SendWithRetry(ctx, req, 4, time.Second)
//
// Wrap errors with [Permanent] to stop a retry loop early.
//
// # Configuration
//
// Default settings mirror the analysis backend's expectations:
//
//   - Timeout: 30 seconds per call
//   - Attempts: 4 (one call plus three retries)
//   - Base delay: 1 second (1s, 2s, 3s between attempts)
package httputil
