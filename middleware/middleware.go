// Package middleware collects the ambient, optional middlewares torque's
// core itself does not mandate: access logging, CORS, response
// compression, secure headers, body-size limiting, handler timeouts, and
// request-ID propagation. Each follows a Config/DefaultConfig/XWithConfig
// shape, adapted to torque's single-signature Middleware model.
package middleware

import "github.com/torquehq/torque"

// Skipper decides whether a middleware should run for req. Returning
// true skips it.
type Skipper func(req *torque.Request) bool

func defaultSkipper(req *torque.Request) bool {
	return false
}
