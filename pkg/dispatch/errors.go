package dispatch

import (
	"errors"
	"fmt"
)

// ErrToolNotFound is returned when a tool name is absent from the tool map
var ErrToolNotFound = errors.New("tool not found on any server")

// InvocationError wraps a transport failure or a tool-reported failure
type InvocationError struct {
	Tool     string
	ServerID string
	Err      error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("tool %q on server %q: %v", e.Tool, e.ServerID, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
