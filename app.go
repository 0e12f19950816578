package torque

import (
	"context"
	"net/http"
)

// App is the top-level embeddable server core: a Router, a middleware
// chain, configuration, and a Logger, wired together. New App instances
// should only be created via New.
type App struct {
	Config Config
	Logger *Logger

	router     *Router
	middleware middlewareChain
	server     *Server

	// NotFoundHandler and MethodNotAllowedHandler run when the router
	// can't match a route; both are overridable.
	NotFoundHandler         Handler
	MethodNotAllowedHandler Handler

	// ErrorHandler converts an error returned from the middleware chain
	// into a response, when the chain itself did not already write one.
	ErrorHandler func(err error, req *Request, res *Response)
}

// New returns an App configured with cfg, or DefaultConfig() if cfg is nil.
func New(cfg *Config) *App {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}

	a := &App{
		Config:                  c,
		Logger:                  newLogger(c.AppName, c.DebugMode),
		router:                  NewRouter(),
		NotFoundHandler:         defaultNotFoundHandler,
		MethodNotAllowedHandler: defaultMethodNotAllowedHandler,
		ErrorHandler:            defaultErrorHandler,
	}
	a.server = newServer(a)
	return a
}

// Use registers a global middleware at the given priority, ascending
// (lower priorities run first).
func (a *App) Use(priority int, mw Middleware) {
	a.middleware.use(priority, mw)
}

func (a *App) GET(pattern string, h Handler, mws ...Middleware) *Route {
	return a.router.Handle(http.MethodGet, pattern, h, mws...)
}

func (a *App) HEAD(pattern string, h Handler, mws ...Middleware) *Route {
	return a.router.Handle(http.MethodHead, pattern, h, mws...)
}

func (a *App) POST(pattern string, h Handler, mws ...Middleware) *Route {
	return a.router.Handle(http.MethodPost, pattern, h, mws...)
}

func (a *App) PUT(pattern string, h Handler, mws ...Middleware) *Route {
	return a.router.Handle(http.MethodPut, pattern, h, mws...)
}

func (a *App) PATCH(pattern string, h Handler, mws ...Middleware) *Route {
	return a.router.Handle(http.MethodPatch, pattern, h, mws...)
}

func (a *App) DELETE(pattern string, h Handler, mws ...Middleware) *Route {
	return a.router.Handle(http.MethodDelete, pattern, h, mws...)
}

func (a *App) OPTIONS(pattern string, h Handler, mws ...Middleware) *Route {
	return a.router.Handle(http.MethodOptions, pattern, h, mws...)
}

// Serve starts the HTTP server and blocks until it stops, returning
// http.ErrServerClosed on a clean Shutdown.
func (a *App) Serve() error {
	return a.server.serve()
}

// Shutdown gracefully stops the HTTP server: it stops accepting
// connections and waits for in-flight handlers until ctx expires. Task
// queues, bridge runtimes and caches are not touched.
func (a *App) Shutdown(ctx context.Context) error {
	return a.server.shutdown(ctx)
}

func defaultNotFoundHandler(req *Request, res *Response) error {
	_, err := res.Err(NotFound("no route matches " + req.Method + " " + req.Path))
	return err
}

func defaultMethodNotAllowedHandler(req *Request, res *Response) error {
	_, err := res.Err(MethodNotAllowed("method not allowed: " + req.Method))
	return err
}

func defaultErrorHandler(err error, req *Request, res *Response) {
	res.Err(err)
}
