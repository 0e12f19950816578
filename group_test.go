package torque

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupRegistersPrefixedRoutes(t *testing.T) {
	a := New(nil)

	var seen []string
	mark := func(name string) Middleware {
		return func(req *Request, res *Response) (*Response, error) {
			seen = append(seen, name)
			return nil, nil
		}
	}

	api := a.Group("/api", mark("api"))
	api.GET("/widgets", func(req *Request, res *Response) error {
		_, err := res.NoContent(http.StatusNoContent)
		return err
	}, mark("route"))

	match := a.router.Lookup(http.MethodGet, "/api/widgets")
	require.NotNil(t, match.Route)
	assert.Len(t, match.Route.Middleware, 2)
}

func TestNestedGroupMergesMiddleware(t *testing.T) {
	a := New(nil)

	mw := func(req *Request, res *Response) (*Response, error) { return nil, nil }

	v1 := a.Group("/v1", mw)
	admin := v1.Group("/admin", mw)
	admin.DELETE("/users/{id}", func(req *Request, res *Response) error {
		_, err := res.NoContent(http.StatusNoContent)
		return err
	})

	match := a.router.Lookup(http.MethodDelete, "/v1/admin/users/7")
	require.NotNil(t, match.Route)
	assert.Len(t, match.Route.Middleware, 2)
	assert.Equal(t, "7", match.Params.Get("id"))
}
