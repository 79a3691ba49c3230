package errors

import "fmt"

var (
	// Caller-visible kinds. The transport layer maps these to its own
	// status codes; the core only promises they are distinguishable.
	ErrUnauthorized   = fmt.Errorf("identity is not allowed to join this group")
	ErrForbidden      = fmt.Errorf("identity does not own this message and holds no elevated capability")
	ErrNotFound       = fmt.Errorf("message does not exist or is already deleted")
	ErrPersistence    = fmt.Errorf("message store failed, no side effect applied")
	ErrAlreadyJoined  = fmt.Errorf("connection is already registered to a group")
	ErrInvalidCommand = fmt.Errorf("command validation failed")

	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrSinkClosed  = fmt.Errorf("sink is closed")
)
