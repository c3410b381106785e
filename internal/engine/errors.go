package engine

import "errors"

// Lifecycle errors returned by Initialize. No other engine operation returns
// an error; failures inside setters are logged and leave state unchanged.
var (
	ErrAlreadyInitialized = errors.New("engine already initialized")
	ErrNilHost            = errors.New("engine host is nil")
)
