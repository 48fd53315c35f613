// Package middleware provides the HTTP middleware chain of the Callisto API:
// request ids, structured request logging and panic recovery.
//
// The chain is applied outermost first:
//
//	handler = RequestIDMiddleware(handler)
//	handler = LoggingMiddleware(logger)(handler)
//	handler = RecoveryMiddleware(logger)(handler)
//
// The request id is stored with logging.WithRequestID, so handlers and the
// engine log it through the *Context slog methods.
package middleware
