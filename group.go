package torque

import "strings"

// Group is a path-prefixed view over an App that carries its own set of
// route-level middlewares, inherited by every route registered through it.
// Nested groups append their prefix and middlewares to the parent's.
type Group struct {
	app        *App
	prefix     string
	middleware []Middleware
}

// Group returns a new Group rooted at prefix, with mws as the route-level
// middlewares of every route registered within it; they run after the
// App's global middlewares.
func (a *App) Group(prefix string, mws ...Middleware) *Group {
	return &Group{app: a, prefix: strings.TrimSuffix(prefix, "/"), middleware: mws}
}

// Group returns a nested Group whose prefix and middlewares extend g's.
func (g *Group) Group(prefix string, mws ...Middleware) *Group {
	merged := make([]Middleware, 0, len(g.middleware)+len(mws))
	merged = append(merged, g.middleware...)
	merged = append(merged, mws...)
	return &Group{app: g.app, prefix: g.prefix + strings.TrimSuffix(prefix, "/"), middleware: merged}
}

// Handle registers a route under the group's prefix with the group's
// inherited middlewares followed by any route-specific ones.
func (g *Group) Handle(method, pattern string, h Handler, mws ...Middleware) *Route {
	full := g.prefix + pattern
	if full == "" {
		full = "/"
	}
	chain := make([]Middleware, 0, len(g.middleware)+len(mws))
	chain = append(chain, g.middleware...)
	chain = append(chain, mws...)
	return g.app.router.Handle(method, full, h, chain...)
}

func (g *Group) GET(pattern string, h Handler, mws ...Middleware) *Route {
	return g.Handle("GET", pattern, h, mws...)
}

func (g *Group) POST(pattern string, h Handler, mws ...Middleware) *Route {
	return g.Handle("POST", pattern, h, mws...)
}

func (g *Group) PUT(pattern string, h Handler, mws ...Middleware) *Route {
	return g.Handle("PUT", pattern, h, mws...)
}

func (g *Group) PATCH(pattern string, h Handler, mws ...Middleware) *Route {
	return g.Handle("PATCH", pattern, h, mws...)
}

func (g *Group) DELETE(pattern string, h Handler, mws ...Middleware) *Route {
	return g.Handle("DELETE", pattern, h, mws...)
}
