/*
Package torque implements an embeddable HTTP application server core for Go.

Routing

A route is registered against a method and a path pattern. A pattern is a
sequence of "/"-separated segments, each either a static literal, a typed
param ("{id:int}"), or a wildcard ("*rest"):

	app := torque.New(nil)
	app.GET("/users/{id:int}/posts/*rest", func(req *torque.Request, res *torque.Response) error {
		id, _ := req.Param("id").Int()
		rest := req.Param("rest").String()
		_, err := res.JSON(200, map[string]any{"id": id, "rest": rest})
		return err
	})

Middleware

A middleware observes and optionally short-circuits a request before its
handler runs:

	app.Use(10, func(req *torque.Request, res *torque.Response) (*torque.Response, error) {
		if req.Header.Get("Authorization") == "" {
			return res.JSON(401, map[string]string{"error": "unauthorized"})
		}
		return nil, nil
	})

Middlewares run in ascending priority order; the first to return a non-nil
*Response short-circuits the remaining chain.
*/
package torque
