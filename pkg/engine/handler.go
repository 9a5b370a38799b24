package engine

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getmockd/stubd/pkg/httputil"
	"github.com/getmockd/stubd/pkg/logging"
	"github.com/getmockd/stubd/pkg/request"
	"github.com/getmockd/stubd/pkg/store"
)

// SystemPrefix is the path prefix reserved for the engine's own endpoints.
const SystemPrefix = "/system/"

// Handler serves mock traffic for an Engine.
type Handler struct {
	engine  *Engine
	system  *http.ServeMux
	metrics http.Handler
	log     *slog.Logger
	started time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithMetricsHandler serves h at /system/metrics.
func WithMetricsHandler(h http.Handler) HandlerOption {
	return func(hd *Handler) { hd.metrics = h }
}

// NewHandler creates the HTTP handler for e.
func NewHandler(e *Engine, opts ...HandlerOption) *Handler {
	h := &Handler{
		engine:  e,
		log:     e.log,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.system = http.NewServeMux()
	h.registerSystemRoutes(h.system)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := newStatusWriter(w)
	defer func() {
		h.engine.metrics.ObserveRequest(r.Method, sw.status, time.Since(start))
	}()

	if strings.HasPrefix(r.URL.Path, SystemPrefix) {
		h.system.ServeHTTP(sw, r)
		return
	}
	h.serveMock(sw, r)
}

func (h *Handler) serveMock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := request.FromHTTP(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	x := h.engine.Begin(ctx, req)
	if !x.Matched() {
		x.Abort()
		h.log.Debug("no resource found", "method", req.Method, "path", req.Path)
		httputil.WriteJSON(w, http.StatusNotFound, map[string]string{
			"error":   "no_resource_found",
			"message": "no resource matched the request",
			"method":  req.Method,
			"path":    req.Path,
		})
		return
	}

	log := logging.ForExchange(h.log, x.ID)
	log.Debug("resource matched",
		"resource", x.Resource().Name(),
		"score", x.Outcome.Score,
		"exact", x.Outcome.Exact,
	)

	// A request-phase capture that fails answers 500 and keeps nothing
	// deferred.
	if err := x.Capture(ctx, store.PhaseRequestReceived); err != nil {
		x.Abort()
		log.Error("request capture failed", "resource", x.Resource().Name(), "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "capture_failed", err.Error())
		return
	}

	resp, err := h.engine.Render(ctx, x)
	if err != nil {
		x.Abort()
		log.Error("failed to render response", "resource", x.Resource().Name(), "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "render_failed", err.Error())
		return
	}
	x.SetResponse(resp)
	// Response-phase captures that could not be queued are dropped; the
	// others still run after the response.
	if err := x.Capture(ctx, store.PhaseResponseSent); err != nil {
		log.Error("response capture failed", "resource", x.Resource().Name(), "error", err)
	}

	if writeErr := writeResponse(w, resp); writeErr != nil || ctx.Err() != nil {
		n := x.Abort()
		log.Debug("client went away, discarded deferred writes", "discarded", n)
		return
	}
	if err := x.Complete(context.WithoutCancel(ctx)); err != nil {
		log.Warn("deferred writes failed", "error", err)
	}
}

// writeResponse sends resp and flushes it. Content-Length is set unless the
// resource declared one, so the response is complete on the wire before any
// deferred write runs.
func writeResponse(w http.ResponseWriter, resp *request.Response) error {
	h := w.Header()
	for name, values := range resp.Headers {
		for _, v := range values {
			h.Add(name, v)
		}
	}

	body := []byte(resp.Body)
	if !bodyAllowed(resp.StatusCode) {
		body = nil
	} else if h.Get("Content-Length") == "" {
		h.Set("Content-Length", strconv.Itoa(len(body)))
	}
	w.WriteHeader(resp.StatusCode)

	var err error
	if len(body) > 0 {
		_, err = w.Write(body)
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return err
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
