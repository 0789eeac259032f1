package sqlite

import (
	"errors"
	"fmt"
)

// Code categorizes errors returned by this package.
type Code string

const (
	// CodeLockFailure indicates the handle was poisoned by a panic during an
	// earlier operation. Every later operation fails fast with this code.
	CodeLockFailure Code = "LOCK_FAILURE"

	// CodeEngine indicates SQLite rejected a statement. The engine message is
	// passed through verbatim.
	CodeEngine Code = "ENGINE_ERROR"

	// CodeInvalidUsage indicates a caller contract violation, such as
	// registering a function twice or beginning a second transaction.
	CodeInvalidUsage Code = "INVALID_USAGE"

	// CodeClosed indicates an operation on a closed handle.
	CodeClosed Code = "CLOSED"

	// CodeTxDone indicates use of a transaction or savepoint that was already
	// committed or rolled back.
	CodeTxDone Code = "TX_DONE"
)

// Error is the error type returned by DB, Tx and Stmt operations.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Op names the operation that failed ("run", "commit", ...).
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying driver error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying driver error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Code, so the sentinels below work with
// errors.Is regardless of Op and Message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrLockFailure  = &Error{Code: CodeLockFailure, Message: "DB Lock failed"}
	ErrEngine       = &Error{Code: CodeEngine, Message: "SQLite Error"}
	ErrInvalidUsage = &Error{Code: CodeInvalidUsage, Message: "invalid usage"}
	ErrClosed       = &Error{Code: CodeClosed, Message: "database is closed"}
	ErrTxDone       = &Error{Code: CodeTxDone, Message: "transaction has already been committed or rolled back"}
)

// ErrMigrationFailed matches every *MigrationError.
var ErrMigrationFailed = errors.New("migration failed")

// MigrationError reports the migration whose SQL failed. The whole migration
// run was rolled back before it was returned.
type MigrationError struct {
	Version uint32
	Err     error
}

// Error implements the error interface.
func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %d failed: %v", e.Version, e.Err)
}

// Unwrap returns the cause.
func (e *MigrationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrMigrationFailed.
func (e *MigrationError) Is(target error) bool {
	return target == ErrMigrationFailed
}

// CodeOf returns the Code carried by err, or "" if err is not from this
// package.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func engineError(op string, err error) *Error {
	return &Error{Code: CodeEngine, Op: op, Message: "SQLite Error: " + err.Error(), Err: err}
}

func invalidUsage(op, format string, args ...any) *Error {
	return &Error{Code: CodeInvalidUsage, Op: op, Message: fmt.Sprintf(format, args...)}
}

func lockFailure(op string) *Error {
	return &Error{Code: CodeLockFailure, Op: op, Message: "DB Lock failed"}
}

func closedError(op string) *Error {
	return &Error{Code: CodeClosed, Op: op, Message: "database is closed"}
}

func txDoneError(op string) *Error {
	return &Error{Code: CodeTxDone, Op: op, Message: "transaction has already been committed or rolled back"}
}
