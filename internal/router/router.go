// Package router compiles declared path templates into a route table and
// reports every route matching a concrete request path.
//
// The router does not rank routes. Several templates may legitimately match
// the same path (a literal path, the same prefix with a wildcard, a
// placeholder template); choosing between the resources behind them is the
// job of the matching package.
//
// Template syntax:
//
//   - /pets            literal, matched by equality
//   - /pets*           trailing wildcard, matches any path starting with /pets
//   - /pets/*          trailing wildcard, also matches /pets itself
//   - /pets/{id}       placeholder, matches exactly one non-empty segment
//   - /files/{path}*   trailing placeholder, captures the rest of the path
//   - ""               catch-all used for resources that declare no path
//
// A Router is built by calling AddRoute and then only read. It is not safe to
// add routes while other goroutines call Match; rebuild and publish a new
// Router instead.
package router

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidTemplate is returned for path templates that cannot be compiled.
var ErrInvalidTemplate = errors.New("invalid path template")

var safeParamName = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

type routeKind int

const (
	kindLiteral routeKind = iota
	kindPrefix
	kindPattern
	kindCatchAll
)

// Route is one compiled path template.
type Route struct {
	Method   string
	Template string
	// ParamNames are the user-facing placeholder names in template order.
	ParamNames []string

	kind       routeKind
	prefix     string
	bareprefix string // prefix without its trailing slash, for "/x/*" templates
	re         *regexp.Regexp
	groups     map[string]string // regex group name -> original name
}

// Literal reports whether the template is a plain path without placeholders
// or wildcards.
func (r *Route) Literal() bool { return r.kind == kindLiteral }

// Wildcard reports whether the template ends with a wildcard.
func (r *Route) Wildcard() bool {
	return r.kind == kindPrefix || (r.kind == kindPattern && strings.HasSuffix(r.Template, "*"))
}

// CatchAll reports whether the route was registered without a template.
func (r *Route) CatchAll() bool { return r.kind == kindCatchAll }

// Key identifies the route by method and template.
func (r *Route) Key() string { return Key(r.Method, r.Template) }

// Key builds the identity used for route replacement.
func Key(method, template string) string {
	return strings.ToUpper(method) + " " + template
}

// Match is a route that matched a request path together with the captured
// path parameters, keyed by their original names.
type Match struct {
	Route      *Route
	PathParams map[string]string
}

// Router holds the route table.
type Router struct {
	routes []*Route
	index  map[string]int

	toSynthetic   map[string]string
	fromSynthetic map[string]string
	nextSynthetic int
}

// New creates an empty router.
func New() *Router {
	return &Router{
		index:         make(map[string]int),
		toSynthetic:   make(map[string]string),
		fromSynthetic: make(map[string]string),
	}
}

// AddRoute compiles template and registers it for method. An empty method
// matches any request method. Registering the same method and template again
// replaces the earlier route in place.
func (rt *Router) AddRoute(method, template string) (*Route, error) {
	route, err := rt.compile(strings.ToUpper(method), template)
	if err != nil {
		return nil, err
	}

	if i, ok := rt.index[route.Key()]; ok {
		rt.routes[i] = route
		return route, nil
	}
	rt.index[route.Key()] = len(rt.routes)
	rt.routes = append(rt.routes, route)
	return route, nil
}

// Routes returns the registered routes in registration order.
func (rt *Router) Routes() []*Route {
	out := make([]*Route, len(rt.routes))
	copy(out, rt.routes)
	return out
}

// Len returns the number of registered routes.
func (rt *Router) Len() int { return len(rt.routes) }

// Match returns every route whose method and template match, in registration
// order.
func (rt *Router) Match(method, path string) []Match {
	method = strings.ToUpper(method)
	var matches []Match
	for _, route := range rt.routes {
		if route.Method != "" && route.Method != method {
			continue
		}
		if params, ok := route.match(path); ok {
			matches = append(matches, Match{Route: route, PathParams: params})
		}
	}
	return matches
}

// SyntheticName returns the regex-safe name used for an unsafe placeholder
// name, if one was assigned.
func (rt *Router) SyntheticName(original string) (string, bool) {
	s, ok := rt.toSynthetic[original]
	return s, ok
}

// OriginalName maps a synthetic name back to the placeholder name declared in
// the template.
func (rt *Router) OriginalName(synthetic string) (string, bool) {
	o, ok := rt.fromSynthetic[synthetic]
	return o, ok
}

func (r *Route) match(path string) (map[string]string, bool) {
	switch r.kind {
	case kindCatchAll:
		return map[string]string{}, true
	case kindLiteral:
		return map[string]string{}, path == r.Template
	case kindPrefix:
		if strings.HasPrefix(path, r.prefix) || (r.bareprefix != "" && path == r.bareprefix) {
			return map[string]string{}, true
		}
		return nil, false
	}

	sub := r.re.FindStringSubmatch(path)
	if sub == nil {
		return nil, false
	}
	params := make(map[string]string, len(r.groups))
	for i, name := range r.re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		params[r.groups[name]] = sub[i]
	}
	return params, true
}

func (rt *Router) compile(method, template string) (*Route, error) {
	route := &Route{Method: method, Template: template}

	if template == "" {
		route.kind = kindCatchAll
		return route, nil
	}
	if !strings.HasPrefix(template, "/") {
		return nil, fmt.Errorf("%w %q: must start with /", ErrInvalidTemplate, template)
	}
	if i := strings.Index(template, "*"); i >= 0 && i != len(template)-1 {
		return nil, fmt.Errorf("%w %q: wildcard is only allowed at the end", ErrInvalidTemplate, template)
	}

	if !strings.ContainsAny(template, "{}") {
		if strings.HasSuffix(template, "*") {
			route.kind = kindPrefix
			route.prefix = strings.TrimSuffix(template, "*")
			if strings.HasSuffix(route.prefix, "/") && len(route.prefix) > 1 {
				route.bareprefix = strings.TrimSuffix(route.prefix, "/")
			}
			return route, nil
		}
		route.kind = kindLiteral
		return route, nil
	}

	if err := rt.compilePattern(route); err != nil {
		return nil, err
	}
	return route, nil
}

func (rt *Router) compilePattern(route *Route) error {
	template := route.Template
	route.kind = kindPattern
	route.groups = make(map[string]string)

	var sb strings.Builder
	sb.WriteString("^")

	seen := make(map[string]bool)
	rest := template
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.Contains(rest, "}") {
				return fmt.Errorf("%w %q: unbalanced braces", ErrInvalidTemplate, template)
			}
			writeLiteral(&sb, rest)
			break
		}
		if strings.Contains(rest[:open], "}") {
			return fmt.Errorf("%w %q: unbalanced braces", ErrInvalidTemplate, template)
		}
		writeLiteral(&sb, rest[:open])

		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return fmt.Errorf("%w %q: unbalanced braces", ErrInvalidTemplate, template)
		}
		end += open
		name := rest[open+1 : end]
		if name == "" || strings.ContainsAny(name, "{/") {
			return fmt.Errorf("%w %q: bad placeholder %q", ErrInvalidTemplate, template, name)
		}
		if seen[name] {
			return fmt.Errorf("%w %q: duplicate placeholder %q", ErrInvalidTemplate, template, name)
		}
		seen[name] = true

		group := rt.groupName(name, route.groups)
		route.groups[group] = name
		route.ParamNames = append(route.ParamNames, name)

		rest = rest[end+1:]
		if rest == "*" {
			// Trailing placeholder plus wildcard swallows the remainder.
			sb.WriteString("(?P<" + group + ">.*)")
			rest = ""
			break
		}
		sb.WriteString("(?P<" + group + ">[^/]+)")
	}
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidTemplate, template, err)
	}
	route.re = re
	return nil
}

// writeLiteral appends a literal chunk, turning a trailing "*" into a
// wildcard. A trailing "/*" also accepts the path without the slash.
func writeLiteral(sb *strings.Builder, chunk string) {
	switch {
	case strings.HasSuffix(chunk, "/*"):
		sb.WriteString(regexp.QuoteMeta(strings.TrimSuffix(chunk, "/*")))
		sb.WriteString("(?:/.*)?")
	case strings.HasSuffix(chunk, "*"):
		sb.WriteString(regexp.QuoteMeta(strings.TrimSuffix(chunk, "*")))
		sb.WriteString(".*")
	default:
		sb.WriteString(regexp.QuoteMeta(chunk))
	}
}

// groupName returns the regex group name for a placeholder. Safe names are
// used as-is unless they collide with a synthetic name; unsafe names get a
// synthetic paramN name that is stable for the lifetime of the router.
func (rt *Router) groupName(name string, taken map[string]string) string {
	if safeParamName.MatchString(name) {
		if _, clash := rt.fromSynthetic[name]; !clash {
			return name
		}
	}
	if s, ok := rt.toSynthetic[name]; ok {
		if _, used := taken[s]; !used {
			return s
		}
	}
	for {
		rt.nextSynthetic++
		candidate := "param" + strconv.Itoa(rt.nextSynthetic)
		if _, used := taken[candidate]; used {
			continue
		}
		if _, used := rt.fromSynthetic[candidate]; used {
			continue
		}
		if _, ok := rt.toSynthetic[name]; !ok {
			rt.toSynthetic[name] = candidate
		}
		rt.fromSynthetic[candidate] = name
		return candidate
	}
}
