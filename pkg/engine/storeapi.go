package engine

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/getmockd/stubd/pkg/httputil"
	"github.com/getmockd/stubd/pkg/store"
)

// MaxStoreBodySize limits request bodies accepted by the store API.
const MaxStoreBodySize = 1 << 20

// StatusResponse is returned by GET /system/status.
type StatusResponse struct {
	Status    string   `json:"status"`
	Resources int      `json:"resources"`
	Backend   string   `json:"backend"`
	Stores    []string `json:"stores"`
	Uptime    int64    `json:"uptimeSeconds"`
}

func (h *Handler) registerSystemRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /system/status", h.handleStatus)
	mux.HandleFunc("GET /system/metrics", h.handleMetrics)

	mux.HandleFunc("GET /system/store/{name}", h.handleLoadAll)
	mux.HandleFunc("POST /system/store/{name}", h.handleSaveAll)
	mux.HandleFunc("DELETE /system/store/{name}", h.handleClear)
	mux.HandleFunc("GET /system/store/{name}/{key}", h.handleLoad)
	mux.HandleFunc("PUT /system/store/{name}/{key}", h.handleSave)
	mux.HandleFunc("DELETE /system/store/{name}/{key}", h.handleDelete)
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	stores := h.engine.stores.Stores()
	if stores == nil {
		stores = []string{}
	}
	httputil.WriteOK(w, StatusResponse{
		Status:    "ok",
		Resources: len(h.engine.Resources()),
		Backend:   h.engine.stores.Backend().Name(),
		Stores:    stores,
		Uptime:    int64(time.Since(h.started).Seconds()),
	})
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		httputil.WriteNotFound(w, "metrics_disabled", "metrics are not enabled")
		return
	}
	h.metrics.ServeHTTP(w, r)
}

// openStore opens the durable store named in the request path. Ephemeral
// stores only exist inside an exchange and are rejected.
func (h *Handler) openStore(w http.ResponseWriter, r *http.Request) (*store.Store, bool) {
	name := r.PathValue("name")
	if h.engine.stores.IsEphemeral(name) {
		httputil.WriteBadRequest(w, "ephemeral_store", "store "+name+" only exists during an exchange")
		return nil, false
	}
	st, err := h.engine.stores.Open(r.Context(), name)
	if err != nil {
		h.writeStoreError(w, err)
		return nil, false
	}
	return st, true
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidName):
		httputil.WriteBadRequest(w, "invalid_store", err.Error())
	case errors.Is(err, store.ErrClosed):
		httputil.WriteServiceUnavailable(w, "store_closed", err.Error())
	default:
		h.log.Error("store operation failed", "error", err)
		httputil.WriteInternalError(w, "store_error", err.Error())
	}
}

func (h *Handler) handleLoadAll(w http.ResponseWriter, r *http.Request) {
	st, ok := h.openStore(w, r)
	if !ok {
		return
	}
	items, err := st.LoadAll(r.Context())
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if prefix := r.URL.Query().Get("keyPrefix"); prefix != "" {
		for k := range items {
			if !strings.HasPrefix(k, prefix) {
				delete(items, k)
			}
		}
	}
	httputil.WriteOK(w, items)
}

func (h *Handler) handleSaveAll(w http.ResponseWriter, r *http.Request) {
	st, ok := h.openStore(w, r)
	if !ok {
		return
	}
	var items map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, MaxStoreBodySize)).Decode(&items); err != nil {
		httputil.WriteBadRequest(w, "invalid_body", "expected a JSON object of key/value pairs")
		return
	}
	for k, v := range items {
		if err := st.Save(r.Context(), k, v, store.PhaseRequestReceived); err != nil {
			h.writeStoreError(w, err)
			return
		}
	}
	httputil.WriteOK(w, map[string]int{"saved": len(items)})
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	st, ok := h.openStore(w, r)
	if !ok {
		return
	}
	if err := st.Clear(r.Context()); err != nil {
		h.writeStoreError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handler) handleLoad(w http.ResponseWriter, r *http.Request) {
	st, ok := h.openStore(w, r)
	if !ok {
		return
	}
	key := r.PathValue("key")
	v, found, err := st.Load(r.Context(), key)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if !found {
		httputil.WriteNotFound(w, "key_not_found", "no item "+key+" in store "+st.Name())
		return
	}
	httputil.WriteValue(w, http.StatusOK, v)
}

// handleSave stores the raw request body as a string.
func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	st, ok := h.openStore(w, r)
	if !ok {
		return
	}
	key := r.PathValue("key")
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxStoreBodySize))
	if err != nil {
		httputil.WriteBadRequest(w, "invalid_body", err.Error())
		return
	}
	existed, err := st.Has(r.Context(), key)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if err := st.Save(r.Context(), key, string(body), store.PhaseRequestReceived); err != nil {
		h.writeStoreError(w, err)
		return
	}
	if existed {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	st, ok := h.openStore(w, r)
	if !ok {
		return
	}
	if err := st.Delete(r.Context(), r.PathValue("key")); err != nil {
		h.writeStoreError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
