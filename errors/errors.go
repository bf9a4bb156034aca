package errors

import "fmt"

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrSelfMessage        = fmt.Errorf("sender and receiver are the same identity")
	ErrEmptyBody          = fmt.Errorf("message body is empty")
	ErrMissingCounterpart = fmt.Errorf("counterpart is missing")
	ErrNotAuthenticated   = fmt.Errorf("no authenticated identity")
	ErrMalformedEvent     = fmt.Errorf("malformed wire event")
	ErrConnectionClosed   = fmt.Errorf("connection closed")
)
