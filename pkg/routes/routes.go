// Package routes describes HTTP endpoints as nested prefix groups so the
// same table drives ServeMux registration and the OpenAPI document.
package routes

import "net/http"

// Route binds a method and a pattern relative to its group.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

// Group is a set of routes sharing a path prefix. Children extend the
// prefix.
type Group struct {
	Prefix   string
	Routes   []Route
	Children []Group
}

// Endpoint is a route resolved to its full path. Group is the prefix of
// the top-level group it belongs to.
type Endpoint struct {
	Method  string
	Path    string
	Group   string
	Handler http.HandlerFunc
}

// Pattern is the ServeMux pattern for the endpoint.
func (e Endpoint) Pattern() string {
	return e.Method + " " + e.Path
}

// Register adds every route of groups to mux.
func Register(mux *http.ServeMux, groups ...Group) {
	for _, ep := range Flatten(groups...) {
		mux.HandleFunc(ep.Pattern(), ep.Handler)
	}
}

// Flatten resolves every route of groups in declaration order.
func Flatten(groups ...Group) []Endpoint {
	var out []Endpoint
	for _, g := range groups {
		out = walk(out, g.Prefix, "", g)
	}
	return out
}

func walk(out []Endpoint, top, parent string, g Group) []Endpoint {
	prefix := parent + g.Prefix
	for _, r := range g.Routes {
		out = append(out, Endpoint{
			Method:  r.Method,
			Path:    prefix + r.Pattern,
			Group:   top,
			Handler: r.Handler,
		})
	}
	for _, child := range g.Children {
		out = walk(out, top, prefix, child)
	}
	return out
}
