// Package proxy is the connection engine behind the listeners: it turns
// accepted frontend connections into proxied HTTP exchanges with the
// single configured backend.
//
// An Engine holds the immutable state shared by every worker (resolved
// backend and CONNECT proxy addresses, TLS dispatch, rate limit
// descriptor, header policy). Each Worker owns an http.Server and a
// downstream transport:
//
//   - HTTP/1.1 downstream: an http.Transport that dials the backend; in
//     HTTP/2 proxy mode the backend is addressed as a forward proxy.
//   - HTTP/2 downstream (client modes and HTTP/2 bridge): one persistent
//     HTTP/2 session per worker, created eagerly when there is a single
//     worker.
//
// A Worker implements listener.ConnectionSink. Accepted connections are
// wrapped with the rate limiter, then TLS when the frontend uses it, and
// handed to the worker's http.Server through an in-memory listener.
// HTTP/2 is offered through ALPN on TLS and through h2c in cleartext.
//
// Header policy: X-Forwarded-For gets the client address appended when
// enabled and is otherwise passed through; Via is appended to requests
// and responses unless disabled. CONNECT requests are answered with 501.
package proxy
