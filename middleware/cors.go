package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/torquehq/torque"
)

// CORSConfig configures cross-origin resource sharing headers.
type CORSConfig struct {
	Skipper Skipper

	// AllowOrigins lists acceptable Origin values. Default ["*"].
	AllowOrigins []string
	// AllowHeaders lists headers a preflight request may ask for.
	AllowHeaders []string
	// AllowMethods lists methods a preflight request may ask for. Default
	// the common verb set.
	AllowMethods []string
	// AllowCredentials sets Access-Control-Allow-Credentials.
	AllowCredentials bool
	// ExposeHeaders lists headers exposed to the client beyond the
	// CORS-safelisted set.
	ExposeHeaders []string
	// MaxAge is how long, in seconds, a browser may cache a preflight
	// result.
	MaxAge int
}

// DefaultCORSConfig allows any origin with no credentials.
var DefaultCORSConfig = CORSConfig{
	AllowOrigins: []string{"*"},
	AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
}

func (c *CORSConfig) fill() {
	if c.Skipper == nil {
		c.Skipper = defaultSkipper
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = DefaultCORSConfig.AllowOrigins
	}
	if len(c.AllowMethods) == 0 {
		c.AllowMethods = DefaultCORSConfig.AllowMethods
	}
}

// CORS returns a CORS middleware with DefaultCORSConfig.
func CORS() torque.Middleware {
	return CORSWithConfig(DefaultCORSConfig)
}

// CORSWithConfig returns a CORS middleware built from config.
func CORSWithConfig(config CORSConfig) torque.Middleware {
	config.fill()
	allowMethods := strings.Join(config.AllowMethods, ",")
	allowHeaders := strings.Join(config.AllowHeaders, ",")
	exposeHeaders := strings.Join(config.ExposeHeaders, ",")

	return func(req *torque.Request, res *torque.Response) (*torque.Response, error) {
		if config.Skipper(req) {
			return nil, nil
		}

		origin := req.Header.Get("Origin")
		res.Header.Add("Vary", "Origin")
		if origin == "" {
			return nil, nil
		}

		allowed := ""
		for _, o := range config.AllowOrigins {
			if o == "*" || o == origin {
				allowed = o
				break
			}
		}
		if allowed == "" {
			return nil, nil
		}
		res.Header.Set("Access-Control-Allow-Origin", allowed)
		if config.AllowCredentials {
			res.Header.Set("Access-Control-Allow-Credentials", "true")
		}
		if exposeHeaders != "" {
			res.Header.Set("Access-Control-Expose-Headers", exposeHeaders)
		}

		if req.Method != http.MethodOptions {
			return nil, nil
		}

		// Preflight: answer directly rather than letting the route run.
		res.Header.Add("Vary", "Access-Control-Request-Method")
		res.Header.Add("Vary", "Access-Control-Request-Headers")
		res.Header.Set("Access-Control-Allow-Methods", allowMethods)
		if allowHeaders != "" {
			res.Header.Set("Access-Control-Allow-Headers", allowHeaders)
		} else if reqHeaders := req.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			res.Header.Set("Access-Control-Allow-Headers", reqHeaders)
		}
		if config.MaxAge > 0 {
			res.Header.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
		}
		return res.NoContent(http.StatusNoContent)
	}
}
