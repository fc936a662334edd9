// Package logging configures the process-wide structured logger.
//
// The logger is a log/slog handler chosen by Config: text or JSON on a
// writer (stderr by default), or the local syslog daemon with a
// configurable facility. Credentials that can appear in proxy
// diagnostics (userinfo in URIs, Authorization and Proxy-Authorization
// values) are masked before a record reaches the handler.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "text",
//	})
//	if err != nil {
//	    return err
//	}
//	defer logger.Shutdown()
//	slog.SetDefault(logger.Slog())
//
// Connection-scoped fields travel in the context:
//
//	ctx = logging.WithConnID(ctx, id)
//	logger.InfoContext(ctx, "TLS handshake completed")
package logging
