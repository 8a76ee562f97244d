package registry

import "fmt"

// RoutingError indicates a connection ref that has no live runtime
// handle (never connected, or already disconnected). It is distinct
// from an execution failure: nothing was sent to any backend.
type RoutingError struct {
	Ref string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("no live connection for %q (connect it first)", e.Ref)
}

// ConnectError reports a failed connect attempt, keyed by descriptor id
// so callers can surface it next to the right connection entry.
type ConnectError struct {
	ID  string
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connection %q failed: %v", e.ID, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }
