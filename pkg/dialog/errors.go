package dialog

import "errors"

var (
	// ErrUnknownDialog no dialog with the given handle.
	ErrUnknownDialog = errors.New("unknown dialog")
	// ErrFinished the dialog has terminated; all further events are rejected.
	ErrFinished = errors.New("dialog finished")
	// ErrRequestPending a second INVITE while one is in flight,
	// RFC 3261 section 14.1 (491 semantics).
	ErrRequestPending = errors.New("request pending")
	// ErrInvalidDialog the operation is illegal in the dialog's current
	// status, e.g. ACK before a 2xx.
	ErrInvalidDialog = errors.New("invalid dialog")
	// ErrInvalidURI a target could not be parsed.
	ErrInvalidURI = errors.New("invalid uri")
)
