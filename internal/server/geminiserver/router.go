package geminiserver

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrRouterSealed is returned when a route is registered after the server
// started accepting connections.
var ErrRouterSealed = errors.New("geminiserver: router is sealed")

// Handler serves one Gemini request.
type Handler interface {
	ServeGemini(c *Context) error
}

// HandlerFunc adapts an ordinary function to a Handler.
type HandlerFunc func(c *Context) error

// ServeGemini calls f(c).
func (f HandlerFunc) ServeGemini(c *Context) error {
	return f(c)
}

// Params holds the values captured by a route pattern.
type Params map[string]string

// Get returns the named parameter or "".
func (p Params) Get(name string) string {
	return p[name]
}

type segmentKind uint8

const (
	segmentLiteral segmentKind = iota
	segmentParam
	segmentSplat
)

type segment struct {
	kind  segmentKind
	value string
}

type route struct {
	pattern  string
	segments []segment
	handler  Handler
}

// Router is an ordered route table. The first registered pattern that
// matches a path wins.
//
// Pattern segments are literals, ":name" (exactly one non-empty segment)
// or a trailing "*name" / "*" capturing the rest of the path.
type Router struct {
	mu     sync.RWMutex
	routes []route
	sealed bool
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{}
}

// Handle registers h for pattern. It panics if the pattern is malformed.
func (r *Router) Handle(pattern string, h Handler) error {
	if h == nil {
		panic("geminiserver: nil handler for pattern " + pattern)
	}
	segments, err := compilePattern(pattern)
	if err != nil {
		panic(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("%w: cannot register %s", ErrRouterSealed, pattern)
	}
	r.routes = append(r.routes, route{pattern: pattern, segments: segments, handler: h})
	return nil
}

// HandleFunc registers fn for pattern.
func (r *Router) HandleFunc(pattern string, fn func(c *Context) error) error {
	return r.Handle(pattern, HandlerFunc(fn))
}

// Match returns the handler of the first route matching path, along with the
// captured parameters.
func (r *Router) Match(path string) (Handler, Params, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parts := splitPath(path)
	for i := range r.routes {
		if params, ok := r.routes[i].match(parts); ok {
			return r.routes[i].handler, params, true
		}
	}
	return nil, nil, false
}

// Len returns the number of registered routes.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

// Patterns returns the registered patterns in match order.
func (r *Router) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.routes))
	for i, rt := range r.routes {
		out[i] = rt.pattern
	}
	return out
}

func (r *Router) seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

func (rt *route) match(parts []string) (Params, bool) {
	var params Params
	for i, seg := range rt.segments {
		if seg.kind == segmentSplat {
			if params == nil {
				params = make(Params, 1)
			}
			if i < len(parts) {
				params[seg.value] = strings.Join(parts[i:], "/")
			} else {
				params[seg.value] = ""
			}
			return params, true
		}
		if i >= len(parts) {
			return nil, false
		}
		switch seg.kind {
		case segmentLiteral:
			if parts[i] != seg.value {
				return nil, false
			}
		case segmentParam:
			if parts[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(Params, len(rt.segments))
			}
			params[seg.value] = parts[i]
		}
	}
	if len(parts) != len(rt.segments) {
		return nil, false
	}
	if params == nil {
		params = Params{}
	}
	return params, true
}

func compilePattern(pattern string) ([]segment, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("geminiserver: pattern %q must start with /", pattern)
	}

	parts := splitPath(pattern)
	segments := make([]segment, 0, len(parts))
	seen := make(map[string]bool)
	for i, part := range parts {
		switch {
		case strings.HasPrefix(part, ":"):
			name := part[1:]
			if name == "" {
				return nil, fmt.Errorf("geminiserver: pattern %q has an unnamed parameter", pattern)
			}
			if seen[name] {
				return nil, fmt.Errorf("geminiserver: pattern %q repeats parameter %q", pattern, name)
			}
			seen[name] = true
			segments = append(segments, segment{kind: segmentParam, value: name})
		case strings.HasPrefix(part, "*"):
			if i != len(parts)-1 {
				return nil, fmt.Errorf("geminiserver: pattern %q has a splat before the last segment", pattern)
			}
			name := part[1:]
			if name == "" {
				name = "*"
			}
			if seen[name] {
				return nil, fmt.Errorf("geminiserver: pattern %q repeats parameter %q", pattern, name)
			}
			seen[name] = true
			segments = append(segments, segment{kind: segmentSplat, value: name})
		default:
			segments = append(segments, segment{kind: segmentLiteral, value: part})
		}
	}
	return segments, nil
}

// splitPath turns "/a/b" into ["a", "b"]; "/" becomes [""].
func splitPath(path string) []string {
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}
