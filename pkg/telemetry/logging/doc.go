// Package logging provides structured logging with credential redaction.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - JSON or text output with a configurable minimum level
//   - Redaction of credential-bearing headers and values
//   - Request ids carried through context.Context
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:         "info",
//	    Format:        "json",
//	    RedactHeaders: true,
//	})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	logger.Info("exchange received",
//	    "request_id", "req-123",
//	    "request_headers", ex.RequestHeaders, // cookie and authorization are redacted
//	)
//
// # Redaction
//
// The values of the cookie, set-cookie, authorization and proxy-authorization
// headers are replaced with [REDACTED] wherever they appear as attribute keys,
// including inside groups. Bearer tokens and password assignments embedded in
// free-form strings are masked as well.
package logging
