package torque

import (
	"runtime"
	"sort"
)

// Handler serves a matched request.
type Handler func(*Request, *Response) error

// Middleware observes a request and either lets it continue (returning a
// nil *Response and nil error) or short-circuits it by returning a
// *Response. This is the single-signature model spec section 9's Open
// Question resolves on: a middleware that wants "post-route" behavior
// registers it with Response.Defer, which runs after the handler returns,
// so one signature expresses both flavors.
type Middleware func(*Request, *Response) (*Response, error)

// globalMiddleware pairs a Middleware with its execution priority.
type globalMiddleware struct {
	priority int
	mw       Middleware
}

// middlewareChain holds the stable-sorted set of global middlewares plus
// whatever route-level middlewares get appended at dispatch time.
type middlewareChain struct {
	globals []globalMiddleware
}

// use registers a global middleware at the given priority. Registration is
// expected to happen before Serve; the chain is re-sorted eagerly so lookups
// never re-sort on the hot path.
func (c *middlewareChain) use(priority int, mw Middleware) {
	c.globals = append(c.globals, globalMiddleware{priority: priority, mw: mw})
	sort.SliceStable(c.globals, func(i, j int) bool {
		return c.globals[i].priority < c.globals[j].priority
	})
}

// build returns the effective chain for one request: globals, in ascending
// priority order, followed by the route's own middlewares, per spec
// section 4.2 ("Effective chain = global-middlewares ⊕ route-middlewares").
func (c *middlewareChain) build(route []Middleware) []Middleware {
	chain := make([]Middleware, 0, len(c.globals)+len(route))
	for _, g := range c.globals {
		chain = append(chain, g.mw)
	}
	chain = append(chain, route...)
	return chain
}

// runChain executes the chain sequentially. The first middleware to return
// a non-nil *Response (or a non-nil error) stops the chain; otherwise the
// terminal handler runs. Panics are recovered at this boundary and surfaced
// as a KindInternal error, per spec section 4.2 ("Panics/exceptions are
// caught at the chain boundary and logged"). Since the chain's single
// signature has no nested "next" closure for a middleware to wrap, an
// individual middleware cannot catch the panic of whatever runs after
// it; the stack trace is captured once, here, at the one place that does
// sit around the whole downstream chain.
func runChain(chain []Middleware, terminal Handler, req *Request, res *Response, logger *Logger) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			if logger != nil {
				stack := make([]byte, 4<<10)
				n := runtime.Stack(stack, false)
				logger.Error("panic recovered", "path", req.Path, "panic", r, "stack", string(stack[:n]))
			}
			retErr = NewError(KindInternal, "panic recovered")
		}
	}()

	for _, mw := range chain {
		short, err := mw(req, res)
		if err != nil {
			return err
		}
		if short != nil {
			return nil
		}
	}

	return terminal(req, res)
}
