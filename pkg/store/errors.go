package store

import "errors"

// Configuration errors. They indicate a bad resource configuration or a
// misbehaving caller and are not retried.
var (
	ErrUnsupportedPhase  = errors.New("unsupported exchange phase")
	ErrDeferredEphemeral = errors.New("cannot defer a write to an ephemeral store")
	ErrNoExchange        = errors.New("store is not bound to an exchange")
	ErrExchangeDone      = errors.New("exchange already completed")
	ErrInvalidName       = errors.New("invalid store name")
	ErrClosed            = errors.New("store engine is closed")
)
