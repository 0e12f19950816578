package middleware

import (
	"context"
	"time"

	"github.com/torquehq/torque"
)

// TimeoutConfig configures the per-request deadline middleware.
type TimeoutConfig struct {
	Skipper Skipper
	// Timeout is the deadline applied to the request's context.
	Timeout time.Duration
}

// Timeout attaches a deadline of d to the request context. Handlers are
// expected to observe req.Context().Done(); since torque's chain model
// runs a route's handler directly (no nested goroutine boundary per
// middleware), a 504 is written only when the deadline has already
// passed at the moment this middleware runs. A deadline that expires
// while the handler runs produces no 504; the handler sees it only
// through its context.
func Timeout(d time.Duration) torque.Middleware {
	return TimeoutWithConfig(TimeoutConfig{Timeout: d})
}

// TimeoutWithConfig returns a deadline middleware built from config.
func TimeoutWithConfig(config TimeoutConfig) torque.Middleware {
	if config.Skipper == nil {
		config.Skipper = defaultSkipper
	}

	return func(req *torque.Request, res *torque.Response) (*torque.Response, error) {
		if config.Skipper(req) || config.Timeout <= 0 {
			return nil, nil
		}

		ctx, cancel := context.WithTimeout(req.Context(), config.Timeout)
		req.WithContext(ctx)
		res.Defer(cancel)

		if hreq := req.HTTPRequest(); hreq != nil {
			*hreq = *hreq.WithContext(ctx)
		}

		if ctx.Err() != nil {
			return res.Err(torque.Timeout("request timeout exceeded"))
		}
		return nil, nil
	}
}
