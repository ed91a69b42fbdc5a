package node

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrQueueNotFound indicates the requested queue name is absent from
// the node. It is the sentinel wrapped by ManagerError so callers can
// still match it with errors.Is.
var ErrQueueNotFound = errors.New("node: queue not found")

// ManagerError is the error Manager.Queue returns for an unknown queue
// name. The HTTP layer is an external collaborator, so ManagerError
// exposes StatusCode and lets that layer perform the response mapping
// itself without reaching into broker internals.
type ManagerError struct {
	Queue string
}

func (e *ManagerError) Error() string {
	return fmt.Sprintf("%v: %q", ErrQueueNotFound, e.Queue)
}

func (e *ManagerError) Unwrap() error {
	return ErrQueueNotFound
}

// StatusCode returns the HTTP status an external transport should map
// this error to.
func (e *ManagerError) StatusCode() int {
	return http.StatusNotFound
}
