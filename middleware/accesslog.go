package middleware

import (
	"time"

	"github.com/torquehq/torque"
)

// AccessLogConfig configures the access-log middleware. Fields are
// logged structurally through *torque.Logger (log/slog underneath)
// rather than a text-template format string.
type AccessLogConfig struct {
	Skipper Skipper
	// Logger receives one Info call per completed request.
	Logger *torque.Logger
}

// AccessLog logs method, path, status, and latency for every request
// that reaches it, via res.Defer so the entry is written after the
// route's handler (and anything downstream of this middleware) has
// finished.
func AccessLog(logger *torque.Logger) torque.Middleware {
	return AccessLogWithConfig(AccessLogConfig{Logger: logger})
}

// AccessLogWithConfig returns an access-log middleware built from
// config.
func AccessLogWithConfig(config AccessLogConfig) torque.Middleware {
	if config.Skipper == nil {
		config.Skipper = defaultSkipper
	}

	return func(req *torque.Request, res *torque.Response) (*torque.Response, error) {
		if config.Skipper(req) || config.Logger == nil {
			return nil, nil
		}

		start := time.Now()
		res.Defer(func() {
			config.Logger.Info("request",
				"method", req.Method,
				"path", req.Path,
				"status", res.Status,
				"latency", time.Since(start).String(),
				"remote_addr", req.RemoteAddr,
				"request_id", req.RequestID,
			)
		})
		return nil, nil
	}
}
