// Package errors defines the sentinel error taxonomy shared by the store,
// the mailbox engine, and the session tracker. All of these are recoverable,
// caller-correctable conditions; only ErrStorage signals a storage-layer
// fault the caller may want to retry.
package errors

import "errors"

var (
	// ErrInvalidRole - sender or recipient is not in the configured role set.
	ErrInvalidRole = errors.New("invalid role")

	// ErrNotFound - referenced message or session does not exist (or the
	// acting role holds no copy of it).
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied - actor is not authorized for the mutation,
	// e.g. recalling another sender's message.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAlreadyRead - recall attempted after the message left unread.
	ErrAlreadyRead = errors.New("already read")

	// ErrDuplicateID - id collision on create.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrSessionActive - session start attempted while one is ACTIVE.
	ErrSessionActive = errors.New("session already active")

	// ErrNoSession - session operation attempted with none active.
	ErrNoSession = errors.New("no active session")

	// ErrStorage - unclassified storage-layer failure. Not retried
	// internally; retry policy belongs to the caller.
	ErrStorage = errors.New("storage error")
)

// Is reports whether err matches target, re-exported so callers need only
// this package.
func Is(err, target error) bool { return errors.Is(err, target) }
