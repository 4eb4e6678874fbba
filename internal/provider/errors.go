package provider

import (
	"errors"
	"fmt"

	"github.com/nvhoang/maildeck/internal/model"
)

// Fail-fast sentinels for operations issued in the wrong session
// state.
var (
	// ErrNotConnected is returned when an operation requires an
	// established session.
	ErrNotConnected = errors.New("provider: not connected")

	// ErrNoFolderSelected is returned by the mailbox-protocol variant
	// when fetch or search is issued before a folder is selected.
	ErrNoFolderSelected = errors.New("provider: no folder selected")

	// ErrNotFound is returned by mutating operations aimed at a
	// message id that is not in the store.
	ErrNotFound = errors.New("provider: message not found")
)

// ConnectError indicates authentication or network failure while
// establishing a session. The variant remains disconnected.
type ConnectError struct {
	Provider model.ProviderType
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect error (%s): %v", e.Provider, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// IsConnectError reports whether err (or any error in its chain) is a
// ConnectError.
func IsConnectError(err error) bool {
	var ce *ConnectError
	return errors.As(err, &ce)
}

// TransientError indicates a mid-session read/write/search failure.
// Session state is otherwise preserved, so the same operation may be
// retried.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or any error in its chain) is a
// TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// PersistenceError indicates a local-store disk write failure. It is
// never converted to a softer result: silent mailbox data loss is
// unacceptable.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting mailbox %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistence reports whether err (or any error in its chain) is a
// PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// ValidationError rejects malformed input, such as a local address
// with a missing local part or a duplicate address, before any
// mutation takes place.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err (or any error in its chain) is a
// ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
