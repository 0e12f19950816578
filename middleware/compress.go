package middleware

import (
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/torquehq/torque"
)

// CompressConfig configures gzip response compression.
type CompressConfig struct {
	Skipper Skipper
	// Level is the gzip compression level. Default gzip.DefaultCompression.
	Level int
}

// DefaultCompressConfig uses gzip's default compression level.
var DefaultCompressConfig = CompressConfig{Level: gzip.DefaultCompression}

// Compress returns a gzip response-compression middleware.
func Compress() torque.Middleware {
	return CompressWithConfig(DefaultCompressConfig)
}

// CompressWithConfig returns a gzip response-compression middleware
// built from config. It installs a wrapping http.ResponseWriter before
// the handler runs, since a flat middleware signature has no nested
// "next" call to wrap after the fact, and registers a Defer to close
// the gzip writer once the handler returns.
func CompressWithConfig(config CompressConfig) torque.Middleware {
	if config.Skipper == nil {
		config.Skipper = defaultSkipper
	}
	level := config.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}

	return func(req *torque.Request, res *torque.Response) (*torque.Response, error) {
		if config.Skipper(req) {
			return nil, nil
		}

		res.Header.Add("Vary", "Accept-Encoding")
		if !strings.Contains(req.Header.Get("Accept-Encoding"), "gzip") {
			return nil, nil
		}

		orig := res.HTTPResponseWriter()
		gw, err := gzip.NewWriterLevel(orig, level)
		if err != nil {
			return nil, nil
		}

		res.Header.Set("Content-Encoding", "gzip")
		res.Header.Del("Content-Length")
		res.SetHTTPResponseWriter(&gzipResponseWriter{ResponseWriter: orig, gw: gw})
		res.Defer(func() { gw.Close() })

		return nil, nil
	}
}

// gzipResponseWriter tees writes through a gzip.Writer, sniffing
// Content-Type from the first chunk when the handler hasn't already
// set one.
type gzipResponseWriter struct {
	http.ResponseWriter
	gw *gzip.Writer
}

func (w *gzipResponseWriter) WriteHeader(status int) {
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(status)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", http.DetectContentType(b))
	}
	return w.gw.Write(b)
}

func (w *gzipResponseWriter) Flush() {
	w.gw.Flush()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
