// Package request holds the parsed exchange data the matching core works on.
//
// The HTTP listener converts a *http.Request into a Request once per exchange;
// everything downstream (router, matcher, expression evaluators, captures)
// reads from this value and never touches the raw request again.
package request

import (
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// MaxBodySize bounds how much of a request body is read for matching (10MB).
const MaxBodySize = 10 << 20

// Request is an already-parsed inbound request.
type Request struct {
	Method      string
	Path        string
	URI         string
	Headers     http.Header
	QueryParams url.Values
	// PathParams is filled by the router for the route being evaluated.
	PathParams map[string]string
	FormParams url.Values
	Body       string
}

// Response is the response that was sent for an exchange. It is only
// available to evaluators running after the response has been written.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       string
}

// FromHTTP parses r into a Request. Form parameters are decoded from the body
// when the content type is application/x-www-form-urlencoded.
func FromHTTP(r *http.Request) (*Request, error) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(r.Body, MaxBodySize))
		if err != nil {
			return nil, err
		}
	}
	return FromHTTPWithBody(r, body), nil
}

// FromHTTPWithBody builds a Request from r using an already-read body.
func FromHTTPWithBody(r *http.Request, body []byte) *Request {
	req := &Request{
		Method:      r.Method,
		Path:        r.URL.Path,
		URI:         requestURI(r),
		Headers:     r.Header.Clone(),
		QueryParams: r.URL.Query(),
		PathParams:  map[string]string{},
		FormParams:  url.Values{},
		Body:        string(body),
	}
	if req.Headers == nil {
		req.Headers = http.Header{}
	}

	if isFormContent(r.Header.Get("Content-Type")) {
		if form, err := url.ParseQuery(req.Body); err == nil {
			req.FormParams = form
		}
	}
	return req
}

// WithPathParams returns a shallow copy of the request carrying params.
// The original is left untouched so one parsed request can be evaluated
// against several routes.
func (r *Request) WithPathParams(params map[string]string) *Request {
	cp := *r
	cp.PathParams = params
	if cp.PathParams == nil {
		cp.PathParams = map[string]string{}
	}
	return &cp
}

// Header returns the first value of a header, matched case-insensitively.
func (r *Request) Header(name string) (string, bool) {
	values := r.Headers.Values(name)
	if len(values) == 0 {
		// Headers set directly on the map may not be canonicalized.
		for k, v := range r.Headers {
			if strings.EqualFold(k, name) && len(v) > 0 {
				return v[0], true
			}
		}
		return "", false
	}
	return values[0], true
}

// Query returns the first value of a query parameter.
func (r *Request) Query(name string) (string, bool) {
	return first(r.QueryParams, name)
}

// Form returns the first value of a form parameter.
func (r *Request) Form(name string) (string, bool) {
	return first(r.FormParams, name)
}

// PathParam returns a path parameter captured by the router.
func (r *Request) PathParam(name string) (string, bool) {
	v, ok := r.PathParams[name]
	return v, ok
}

// Header returns the first value of a response header.
func (r *Response) Header(name string) (string, bool) {
	if r == nil || r.Headers == nil {
		return "", false
	}
	values := r.Headers.Values(name)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func first(values url.Values, name string) (string, bool) {
	v, ok := values[name]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

func requestURI(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	if host == "" {
		return r.URL.RequestURI()
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

func isFormContent(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded"
}
