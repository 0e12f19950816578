package middleware

import (
	"fmt"

	"github.com/torquehq/torque"
)

// SecureConfig configures the response security headers middleware.
type SecureConfig struct {
	Skipper Skipper

	// XSSProtection sets X-XSS-Protection. Default "1; mode=block".
	XSSProtection string
	// ContentTypeNosniff sets X-Content-Type-Options. Default "nosniff".
	ContentTypeNosniff string
	// XFrameOptions sets X-Frame-Options. Default "SAMEORIGIN".
	XFrameOptions string
	// HSTSMaxAge sets Strict-Transport-Security's max-age, in seconds.
	// Zero disables the header.
	HSTSMaxAge int
	// HSTSExcludeSubdomains drops "; includeSubdomains" from the HSTS
	// header.
	HSTSExcludeSubdomains bool
	// ContentSecurityPolicy sets Content-Security-Policy verbatim.
	ContentSecurityPolicy string
}

// DefaultSecureConfig is a conservative baseline safe for most APIs.
var DefaultSecureConfig = SecureConfig{
	XSSProtection:      "1; mode=block",
	ContentTypeNosniff: "nosniff",
	XFrameOptions:      "SAMEORIGIN",
}

// Secure returns a secure-headers middleware with DefaultSecureConfig.
func Secure() torque.Middleware {
	return SecureWithConfig(DefaultSecureConfig)
}

// SecureWithConfig returns a secure-headers middleware built from config.
func SecureWithConfig(config SecureConfig) torque.Middleware {
	if config.Skipper == nil {
		config.Skipper = defaultSkipper
	}

	return func(req *torque.Request, res *torque.Response) (*torque.Response, error) {
		if config.Skipper(req) {
			return nil, nil
		}

		if config.XSSProtection != "" {
			res.Header.Set("X-XSS-Protection", config.XSSProtection)
		}
		if config.ContentTypeNosniff != "" {
			res.Header.Set("X-Content-Type-Options", config.ContentTypeNosniff)
		}
		if config.XFrameOptions != "" {
			res.Header.Set("X-Frame-Options", config.XFrameOptions)
		}
		isTLS := req.HTTPRequest() != nil && req.HTTPRequest().TLS != nil
		if (isTLS || req.Header.Get("X-Forwarded-Proto") == "https") && config.HSTSMaxAge != 0 {
			subdomains := ""
			if !config.HSTSExcludeSubdomains {
				subdomains = "; includeSubdomains"
			}
			res.Header.Set("Strict-Transport-Security", fmt.Sprintf("max-age=%d%s", config.HSTSMaxAge, subdomains))
		}
		if config.ContentSecurityPolicy != "" {
			res.Header.Set("Content-Security-Policy", config.ContentSecurityPolicy)
		}
		return nil, nil
	}
}
