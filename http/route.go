package http

import "context"

type Route struct {
	Method  string
	Prefix  string
	Handler Handler
}

var NotFoundHandler Handler = func(ctx context.Context, req *Request) (*Response, error) {
	return NotFound(req), nil
}
