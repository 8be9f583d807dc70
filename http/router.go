package http

import (
	"context"
	"strings"
	"sync"
)

// Handler turns one request into one response. A returned error is answered
// with 500 Internal Server Error by the connection loop.
type Handler func(ctx context.Context, req *Request) (*Response, error)

// Router resolves a request to exactly one handler. Per method, routes are
// tried in registration order and the first prefix that the path starts with
// wins. It is safe for concurrent use.
type Router struct {
	mu         sync.RWMutex
	methods    []string
	routes     map[string][]Route
	middleware []Middleware
}

func NewRouter() *Router {
	return &Router{
		routes: make(map[string][]Route),
	}
}

// Use adds middleware wrapped around every route registered after the call.
func (router *Router) Use(middleware ...Middleware) {
	router.mu.Lock()
	defer router.mu.Unlock()

	router.middleware = append(router.middleware, middleware...)
}

func (router *Router) GET(prefix string, handler Handler, middleware ...Middleware) {
	router.Handle(MethodGet, prefix, handler, middleware...)
}

func (router *Router) HEAD(prefix string, handler Handler, middleware ...Middleware) {
	router.Handle(MethodHead, prefix, handler, middleware...)
}

func (router *Router) POST(prefix string, handler Handler, middleware ...Middleware) {
	router.Handle(MethodPost, prefix, handler, middleware...)
}

func (router *Router) PUT(prefix string, handler Handler, middleware ...Middleware) {
	router.Handle(MethodPut, prefix, handler, middleware...)
}

func (router *Router) DELETE(prefix string, handler Handler, middleware ...Middleware) {
	router.Handle(MethodDelete, prefix, handler, middleware...)
}

// Handle registers handler for method and path prefix. Registering the same
// method and prefix again replaces the handler but keeps its priority.
func (router *Router) Handle(method, prefix string, handler Handler, middleware ...Middleware) {
	router.mu.Lock()
	defer router.mu.Unlock()

	for _, mw := range middleware {
		handler = mw(handler)
	}
	for _, mw := range router.middleware {
		handler = mw(handler)
	}

	routes, known := router.routes[method]
	if !known {
		router.methods = append(router.methods, method)
	}

	for i := range routes {
		if routes[i].Prefix == prefix {
			routes[i].Handler = handler
			return
		}
	}

	router.routes[method] = append(routes, Route{
		Method:  method,
		Prefix:  prefix,
		Handler: handler,
	})
}

// Group registers the routes added by groupFunc under prefix, wrapped in the
// given middleware.
func (router *Router) Group(prefix string, groupFunc func(group *Router), middleware ...Middleware) {
	group := NewRouter()
	groupFunc(group)

	for _, route := range group.Routes() {
		router.Handle(route.Method, prefix+route.Prefix, route.Handler, middleware...)
	}
}

// Route picks the handler for a request. OPTIONS is answered from the set of
// registered methods instead of going through prefix matching.
func (router *Router) Route(method, path string) Handler {
	if method == MethodOptions {
		return router.optionsHandler()
	}

	router.mu.RLock()
	defer router.mu.RUnlock()

	for _, route := range router.routes[method] {
		if strings.HasPrefix(path, route.Prefix) {
			return route.Handler
		}
	}

	return NotFoundHandler
}

// Methods lists every method with at least one route, in the order they were
// first registered.
func (router *Router) Methods() []string {
	router.mu.RLock()
	defer router.mu.RUnlock()

	methods := make([]string, len(router.methods))
	copy(methods, router.methods)
	return methods
}

// Routes returns a snapshot of the table in matching order.
func (router *Router) Routes() []Route {
	router.mu.RLock()
	defer router.mu.RUnlock()

	var routes []Route
	for _, method := range router.methods {
		routes = append(routes, router.routes[method]...)
	}
	return routes
}

func (router *Router) optionsHandler() Handler {
	methods := router.Methods()

	hasOptions := false
	for _, method := range methods {
		if method == MethodOptions {
			hasOptions = true
			break
		}
	}
	if !hasOptions {
		methods = append(methods, MethodOptions)
	}
	allow := strings.Join(methods, ", ")

	return func(ctx context.Context, req *Request) (*Response, error) {
		return NewResponse(req.Version, StatusNoContent).WithHeader(HeaderAllow, allow), nil
	}
}
