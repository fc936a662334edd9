// Package middleware provides the HTTP middleware wrapped around the
// proxy handler of every frontend connection.
//
// Requests pass through, outermost first:
//  1. Recovery: turns a handler panic into 500 Internal Server Error
//  2. RequestID: assigns X-Request-ID and stores it in the context
//  3. AccessLog: one record and one metric observation per request
//
// Example usage:
//
//	var h http.Handler = proxyHandler
//	h = middleware.AccessLog(logger, recorder, accessLog)(h)
//	h = middleware.RequestIDMiddleware(h)
//	h = middleware.RecoveryMiddleware(logger)(h)
package middleware
