package torque

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// Server wraps net/http.Server with the listener adaptations (TCP
// keep-alive, optional PROXY protocol) spec.md's HTTP server shell
// component asks for.
type Server struct {
	app  *App
	http *http.Server
	ln   *listener
}

func newServer(a *App) *Server {
	return &Server{
		app: a,
		http: &http.Server{
			Handler:           a,
			ReadTimeout:       a.Config.ReadTimeout,
			ReadHeaderTimeout: a.Config.ReadHeaderTimeout,
			WriteTimeout:      a.Config.WriteTimeout,
			IdleTimeout:       a.Config.IdleTimeout,
			MaxHeaderBytes:    a.Config.MaxHeaderBytes,
		},
	}
}

// serve binds the configured address and blocks serving requests until
// Shutdown is called, at which point it returns http.ErrServerClosed.
func (s *Server) serve() error {
	cfg := s.app.Config

	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		s.ln = newListener(cfg.ProxyProtocol, nil, 0)
		if err := s.ln.listen(cfg.Address); err != nil {
			return err
		}
		return s.http.ServeTLS(s.ln, cfg.TLSCertFile, cfg.TLSKeyFile)
	}

	s.ln = newListener(cfg.ProxyProtocol, nil, 0)
	if err := s.ln.listen(cfg.Address); err != nil {
		return err
	}
	return s.http.Serve(s.ln)
}

// shutdown stops accepting new connections and waits for in-flight
// handlers to finish (net/http's own drain), or ctx to expire. It does not
// drain task queues, stop bridge runtimes or close caches: App does not
// own those, and each has its own Shutdown, Stop or Close.
func (s *Server) shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Addr returns the address the server is actually listening on, useful
// when Config.Address asked for a random port ("host:0").
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ServeHTTP implements http.Handler: it acquires a pooled Request/Response
// pair, resolves the route, runs the effective middleware chain, and
// recycles both before returning.
func (a *App) ServeHTTP(hrw http.ResponseWriter, hr *http.Request) {
	req := acquireRequest()
	res := acquireResponse()
	defer func() {
		res.runDeferred()
		releaseRequest(req)
		releaseResponse(res)
	}()

	req.reset(hr)
	res.reset(hrw, req)

	var match MatchResult
	if hr.Method == http.MethodOptions && hr.URL.Path == "*" {
		match = MatchResult{Allow: a.router.AllMethods(), AutoOptions: true}
	} else {
		match = a.router.Lookup(hr.Method, hr.URL.Path)
	}

	var terminal Handler
	var routeMW []Middleware

	switch {
	case match.Route != nil:
		terminal = match.Route.Handler
		routeMW = match.Route.Middleware
		req.setParams(match.Params)
	case match.AutoOptions:
		res.Header.Set("Allow", strings.Join(match.Allow, ", "))
		terminal = autoOptionsHandler
	case len(match.Allow) > 0:
		res.Header.Set("Allow", strings.Join(match.Allow, ", "))
		terminal = a.MethodNotAllowedHandler
	default:
		terminal = a.NotFoundHandler
	}

	chain := a.middleware.build(routeMW)
	if err := runChain(chain, terminal, req, res, a.Logger); err != nil {
		a.ErrorHandler(err, req, res)
	}
}

// autoOptionsHandler answers an OPTIONS request that matched a path (or
// the server-wide "*") with no explicit OPTIONS handler registered: the
// Allow header was already set by ServeHTTP, so this just closes out the
// response with a 200 and an empty body.
func autoOptionsHandler(req *Request, res *Response) error {
	_, err := res.NoContent(http.StatusOK)
	return err
}
