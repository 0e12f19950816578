package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/torquehq/torque"
)

// Common size constants for MaxBytes.
const (
	B  = 1
	KB = 1024 * B
	MB = 1024 * KB
	GB = 1024 * MB
)

// BodyLimitConfig configures the request body size cap.
type BodyLimitConfig struct {
	Skipper Skipper
	// MaxBytes is the maximum allowed request body size.
	MaxBytes int64
}

// BodyLimit wraps the request body in http.MaxBytesReader, so a read past
// maxBytes fails with an error that IsBodyTooLarge recognizes. The
// middleware writes no 413 itself; the handler maps that error.
func BodyLimit(maxBytes int64) torque.Middleware {
	return BodyLimitWithConfig(BodyLimitConfig{MaxBytes: maxBytes})
}

// BodyLimitWithConfig returns a body-size-limiting middleware built from
// config.
func BodyLimitWithConfig(config BodyLimitConfig) torque.Middleware {
	if config.MaxBytes <= 0 {
		panic("middleware: BodyLimit MaxBytes must be greater than 0")
	}
	if config.Skipper == nil {
		config.Skipper = defaultSkipper
	}

	return func(req *torque.Request, res *torque.Response) (*torque.Response, error) {
		if config.Skipper(req) {
			return nil, nil
		}

		hreq := req.HTTPRequest()
		if hreq == nil || req.Body == nil {
			return nil, nil
		}

		req.Body = http.MaxBytesReader(res.HTTPResponseWriter(), req.Body, config.MaxBytes)
		hreq.Body = req.Body
		return nil, nil
	}
}

// IsBodyTooLarge reports whether err was raised by a BodyLimit-wrapped
// reader rejecting an oversized body, so a handler (or the JSON binder
// it calls into) can map it to 413 rather than a generic 400/500.
func IsBodyTooLarge(err error) bool {
	if err == nil {
		return false
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "http: request body too large")
}
