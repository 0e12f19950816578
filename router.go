package torque

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// paramType is the declared type of a {name:type} path param.
type paramType uint8

const (
	paramString paramType = iota
	paramInt
	paramFloat
	paramPath
)

func parseParamType(s string) (paramType, bool) {
	switch s {
	case "", "string":
		return paramString, true
	case "int":
		return paramInt, true
	case "float":
		return paramFloat, true
	case "path":
		return paramPath, true
	default:
		return 0, false
	}
}

type nodeKind uint8

const (
	staticKind nodeKind = iota
	paramKind
	wildcardKind
)

// node is one segment of the router's trie. At most one paramChild and one
// wildcardChild may exist per node, per spec's RouteTrieNode invariant.
type node struct {
	kind      nodeKind
	segment   string // static label, or param/wildcard name
	paramType paramType

	children      map[string]*node
	paramChild    *node
	wildcardChild *node

	handlers map[string]*Route // method -> route
	pattern  string            // original registered pattern (for error messages)
}

func newNode(kind nodeKind) *node {
	return &node{
		kind:     kind,
		children: map[string]*node{},
		handlers: map[string]*Route{},
	}
}

// Route is a registered (method, pattern) binding.
type Route struct {
	Method     string
	Pattern    string
	Handler    Handler
	Middleware []Middleware
}

// Router is the trie-based HTTP router of spec section 4.1. Registration
// (Handle) happens offline before Serve; Lookup is the hot path and touches
// no locks once registration is finished.
type Router struct {
	root   *node
	routes []*Route
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{root: newNode(staticKind)}
}

// Handle registers a route. It panics on malformed patterns or duplicate
// (method, pattern) registration, per spec: "Registration errors are
// synchronous and fatal at startup."
func (rt *Router) Handle(method, pattern string, h Handler, mws ...Middleware) *Route {
	if pattern == "" || pattern[0] != '/' {
		panic(fmt.Sprintf("torque: route pattern %q must start with /", pattern))
	}

	route := &Route{Method: method, Pattern: pattern, Handler: h, Middleware: mws}

	segs := splitSegments(pattern)
	cur := rt.root
	for i, seg := range segs {
		switch {
		case strings.HasPrefix(seg, "*"):
			name := strings.TrimPrefix(seg, "*")
			if i != len(segs)-1 {
				panic(fmt.Sprintf("torque: wildcard must be the last segment in %q", pattern))
			}
			if cur.wildcardChild == nil {
				cur.wildcardChild = newNode(wildcardKind)
				cur.wildcardChild.segment = name
			}
			cur = cur.wildcardChild

		case strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}"):
			inner := seg[1 : len(seg)-1]
			name, typ := inner, ""
			if idx := strings.IndexByte(inner, ':'); idx >= 0 {
				name, typ = inner[:idx], inner[idx+1:]
			}
			pt, ok := parseParamType(typ)
			if !ok {
				panic(fmt.Sprintf("torque: unknown param type %q in %q", typ, pattern))
			}
			if pt == paramPath {
				if i != len(segs)-1 {
					panic(fmt.Sprintf("torque: {name:path} must be the last segment in %q", pattern))
				}
				if cur.wildcardChild == nil {
					cur.wildcardChild = newNode(wildcardKind)
					cur.wildcardChild.segment = name
				}
				cur = cur.wildcardChild
				continue
			}
			if cur.paramChild == nil {
				cur.paramChild = newNode(paramKind)
				cur.paramChild.segment = name
				cur.paramChild.paramType = pt
			} else if cur.paramChild.segment != name {
				panic(fmt.Sprintf("torque: conflicting param name at same depth in %q", pattern))
			}
			cur = cur.paramChild

		default:
			child, ok := cur.children[seg]
			if !ok {
				child = newNode(staticKind)
				child.segment = seg
				cur.children[seg] = child
			}
			cur = child
		}
	}

	if _, exists := cur.handlers[method]; exists {
		panic(fmt.Sprintf("torque: route [%s %s] already registered", method, pattern))
	}
	cur.handlers[method] = route
	cur.pattern = pattern
	rt.routes = append(rt.routes, route)
	return route
}

func splitSegments(pattern string) []string {
	trimmed := strings.Trim(pattern, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Param is one extracted path parameter.
type Param struct {
	Name  string
	Value string
}

// Params is the ordered list of path parameters extracted by a Lookup.
type Params []Param

// Get returns the value of the named parameter, or "" if absent.
func (p Params) Get(name string) string {
	for _, kv := range p {
		if kv.Name == name {
			return kv.Value
		}
	}
	return ""
}

// MatchResult is the outcome of a Router.Lookup.
type MatchResult struct {
	Route  *Route
	Params Params
	// Allow lists methods registered at the matched path, populated when
	// the path matched but the method did not (method-not-allowed), for
	// the Allow header, per spec section 6.
	Allow []string
	// AutoOptions is set when method was OPTIONS, the path matched, and
	// no explicit OPTIONS handler is registered there: the server
	// synthesizes a 200 response carrying Allow instead of treating this
	// as method-not-allowed, per spec section 6's auto-OPTIONS rule.
	AutoOptions bool
}

// Lookup resolves (method, path) to a route and its path params. It is safe
// for concurrent use once registration has finished.
func (rt *Router) Lookup(method, path string) MatchResult {
	segs := splitSegments(path)

	n, params, ok := rt.matchNode(rt.root, segs, nil)
	if !ok || n == nil {
		return MatchResult{}
	}

	if route, ok := n.handlers[method]; ok {
		return MatchResult{Route: route, Params: params}
	}

	// Auto-HEAD: fall back to GET's handler, body dropped by the server.
	if method == "HEAD" {
		if route, ok := n.handlers["GET"]; ok {
			return MatchResult{Route: route, Params: params}
		}
	}

	if len(n.handlers) == 0 {
		return MatchResult{}
	}

	allow := allowedMethods(n)
	if method == "OPTIONS" {
		return MatchResult{Allow: allow, AutoOptions: true, Params: params}
	}
	return MatchResult{Allow: allow}
}

// AllMethods returns the union of methods registered across every route,
// including the implicit HEAD whenever GET is registered anywhere, for
// the server-wide "OPTIONS *" request.
func (rt *Router) AllMethods() []string {
	set := make(map[string]bool)
	hasGet := false
	for _, route := range rt.routes {
		set[route.Method] = true
		if route.Method == "GET" {
			hasGet = true
		}
	}
	if hasGet {
		set["HEAD"] = true
	}

	methods := make([]string, 0, len(set))
	for m := range set {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

func allowedMethods(n *node) []string {
	methods := make([]string, 0, len(n.handlers)+1)
	hasGet, hasHead := false, false
	for m := range n.handlers {
		methods = append(methods, m)
		if m == "GET" {
			hasGet = true
		}
		if m == "HEAD" {
			hasHead = true
		}
	}
	if hasGet && !hasHead {
		methods = append(methods, "HEAD")
	}
	return methods
}

// matchNode walks the trie. Resolution order at each node: exact static
// child, then param child (type-checked), then wildcard child, per spec
// section 4.1.
func (rt *Router) matchNode(n *node, segs []string, params Params) (*node, Params, bool) {
	if len(segs) == 0 {
		return n, params, true
	}

	seg := segs[0]
	rest := segs[1:]

	if child, ok := n.children[seg]; ok {
		if result, p, ok := rt.matchNode(child, rest, params); ok {
			return result, p, true
		}
	}

	if n.paramChild != nil {
		if _, err := coerce(n.paramChild.paramType, seg); err == nil {
			p := append(append(Params{}, params...), Param{Name: n.paramChild.segment, Value: seg})
			if result, p2, ok := rt.matchNode(n.paramChild, rest, p); ok {
				return result, p2, true
			}
		}
	}

	if n.wildcardChild != nil {
		value := strings.Join(segs, "/")
		p := append(append(Params{}, params...), Param{Name: n.wildcardChild.segment, Value: value})
		return n.wildcardChild, p, true
	}

	return nil, nil, false
}

func coerce(pt paramType, s string) (any, error) {
	switch pt {
	case paramInt:
		return strconv.ParseInt(s, 10, 64)
	case paramFloat:
		return strconv.ParseFloat(s, 64)
	default:
		return s, nil
	}
}
