// Package store implements named key/value stores for captured exchange
// data.
//
// A store is either durable or ephemeral. Durable stores are created lazily
// through a Backend, cached by name for the life of the Engine and
// optionally key-prefixed. Ephemeral stores are always in memory and belong
// to one exchange (a Scope).
//
// Writes carry a Phase. PhaseRequestReceived writes immediately.
// PhaseResponseSent queues the write on the exchange's Scope; the response
// pipeline calls Scope.Flush once the response has been written, or
// Scope.Discard if the client went away. Deferring a write to an ephemeral
// store fails at save time, since the store no longer exists when the
// queue is flushed.
//
// A durable store reports no data until it has been written to by this
// process, even if its backend already holds data from an earlier run.
//
// Backends live in subpackages: redis, sqlite and file. The in-memory
// backend is NewMemoryBackend.
package store
