package torque

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterStaticAndParam(t *testing.T) {
	rt := NewRouter()
	rt.Handle("GET", "/users/{id:int}", func(req *Request, res *Response) error { return nil })

	m := rt.Lookup("GET", "/users/42")
	require.NotNil(t, m.Route)
	assert.Equal(t, "42", m.Params.Get("id"))

	m = rt.Lookup("GET", "/users/abc")
	assert.Nil(t, m.Route)
	assert.Nil(t, m.Allow)
}

func TestRouterMethodNotAllowed(t *testing.T) {
	rt := NewRouter()
	rt.Handle("GET", "/users/{id:int}", func(req *Request, res *Response) error { return nil })

	m := rt.Lookup("POST", "/users/42")
	assert.Nil(t, m.Route)
	assert.ElementsMatch(t, []string{"GET", "HEAD"}, m.Allow)
}

func TestRouterAutoHead(t *testing.T) {
	rt := NewRouter()
	rt.Handle("GET", "/ping", func(req *Request, res *Response) error { return nil })

	m := rt.Lookup("HEAD", "/ping")
	require.NotNil(t, m.Route)
	assert.Equal(t, "GET", m.Route.Method)
}

func TestRouterWildcard(t *testing.T) {
	rt := NewRouter()
	rt.Handle("GET", "/assets/*rest", func(req *Request, res *Response) error { return nil })

	m := rt.Lookup("GET", "/assets/css/site.css")
	require.NotNil(t, m.Route)
	assert.Equal(t, "css/site.css", m.Params.Get("rest"))
}

func TestRouterStaticWinsOverParam(t *testing.T) {
	rt := NewRouter()
	rt.Handle("GET", "/users/me", func(req *Request, res *Response) error { return nil })
	rt.Handle("GET", "/users/{id:string}", func(req *Request, res *Response) error { return nil })

	m := rt.Lookup("GET", "/users/me")
	require.NotNil(t, m.Route)
	assert.Equal(t, "/users/me", m.Route.Pattern)

	m = rt.Lookup("GET", "/users/123")
	require.NotNil(t, m.Route)
	assert.Equal(t, "/users/{id:string}", m.Route.Pattern)
}

func TestRouterDuplicateRegistrationPanics(t *testing.T) {
	rt := NewRouter()
	rt.Handle("GET", "/x", func(req *Request, res *Response) error { return nil })
	assert.Panics(t, func() {
		rt.Handle("GET", "/x", func(req *Request, res *Response) error { return nil })
	})
}

func TestRouterNotFound(t *testing.T) {
	rt := NewRouter()
	m := rt.Lookup("GET", "/nope")
	assert.Nil(t, m.Route)
	assert.Nil(t, m.Allow)
}

func TestRouterAutoOptions(t *testing.T) {
	rt := NewRouter()
	rt.Handle("GET", "/widgets", func(req *Request, res *Response) error { return nil })
	rt.Handle("POST", "/widgets", func(req *Request, res *Response) error { return nil })

	m := rt.Lookup("OPTIONS", "/widgets")
	assert.Nil(t, m.Route)
	assert.True(t, m.AutoOptions)
	assert.ElementsMatch(t, []string{"GET", "HEAD", "POST"}, m.Allow)
}

func TestRouterExplicitOptionsIsNotAuto(t *testing.T) {
	rt := NewRouter()
	rt.Handle("OPTIONS", "/widgets", func(req *Request, res *Response) error { return nil })

	m := rt.Lookup("OPTIONS", "/widgets")
	require.NotNil(t, m.Route)
	assert.False(t, m.AutoOptions)
}

func TestRouterAllMethods(t *testing.T) {
	rt := NewRouter()
	rt.Handle("GET", "/widgets", func(req *Request, res *Response) error { return nil })
	rt.Handle("POST", "/gadgets", func(req *Request, res *Response) error { return nil })

	assert.ElementsMatch(t, []string{"GET", "HEAD", "POST"}, rt.AllMethods())
}
