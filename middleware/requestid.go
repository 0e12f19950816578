package middleware

import (
	"github.com/google/uuid"
	"github.com/torquehq/torque"
)

// RequestIDConfig configures the request-ID middleware.
type RequestIDConfig struct {
	Skipper Skipper
	// Generator creates a new request ID. Defaults to uuid.New().String().
	Generator func() string
	// HeaderName is the response header the ID is echoed under. Default
	// "X-Request-ID".
	HeaderName string
	// UseExisting reuses an inbound HeaderName value instead of
	// generating a new one.
	UseExisting bool
}

// RequestID populates req.RequestID (torque's typed slot for it) and
// echoes it on the response, generating a UUID per request.
func RequestID() torque.Middleware {
	return RequestIDWithConfig(RequestIDConfig{})
}

// RequestIDWithConfig returns a request-ID middleware built from config.
func RequestIDWithConfig(config RequestIDConfig) torque.Middleware {
	if config.Skipper == nil {
		config.Skipper = defaultSkipper
	}
	if config.HeaderName == "" {
		config.HeaderName = "X-Request-ID"
	}
	if config.Generator == nil {
		config.Generator = func() string { return uuid.New().String() }
	}

	return func(req *torque.Request, res *torque.Response) (*torque.Response, error) {
		if config.Skipper(req) {
			return nil, nil
		}

		id := ""
		if config.UseExisting {
			id = req.Header.Get(config.HeaderName)
		}
		if id == "" {
			id = config.Generator()
		}

		req.RequestID = id
		res.Header.Set(config.HeaderName, id)
		return nil, nil
	}
}
