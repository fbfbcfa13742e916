// Package guideerr defines the error taxonomy shared by the guidekit engine.
//
// Every failure surfaced by the catalog, ledger, installer and updater is either
// one of the sentinel errors below or an *Error whose Kind is one of them, so
// callers can branch with errors.Is regardless of how deeply it was wrapped.
package guideerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates an unknown framework descriptor id
	ErrNotFound = errors.New("framework not found")

	// ErrNotInstalled indicates the framework has no ledger entry
	ErrNotInstalled = errors.New("framework not installed")

	// ErrManifestCorrupt indicates the catalog manifest could not be parsed or failed validation
	ErrManifestCorrupt = errors.New("manifest corrupt")

	// ErrLedgerCorrupt indicates the installed-state ledger could not be parsed or failed validation
	ErrLedgerCorrupt = errors.New("ledger corrupt")

	// ErrConflict indicates existing content blocks an install or update until a resolution is supplied
	ErrConflict = errors.New("content conflict")

	// ErrIOFailure indicates a file system operation failed
	ErrIOFailure = errors.New("io failure")

	// ErrCancelled indicates the caller chose to cancel before any mutation happened
	ErrCancelled = errors.New("operation cancelled")

	// ErrUpToDate indicates the catalog version is not newer than the installed version
	ErrUpToDate = errors.New("framework already up to date")

	// ErrInvalidQuery indicates a search query was rejected
	ErrInvalidQuery = errors.New("invalid query")
)

// Error carries the context needed to act on a failure: which framework, which
// path, and the underlying cause.
type Error struct {
	Kind        error
	FrameworkID string
	Path        string
	Message     string
	Err         error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("error")
	}
	if e.FrameworkID != "" {
		fmt.Fprintf(&b, " [framework %s]", e.FrameworkID)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " [%s]", e.Path)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind sentinel of this error.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// New builds an *Error of the given kind.
func New(kind error, frameworkID, path, message string, err error) *Error {
	return &Error{Kind: kind, FrameworkID: frameworkID, Path: path, Message: message, Err: err}
}

// NotFound reports an unknown descriptor id.
func NotFound(id string) error {
	return &Error{Kind: ErrNotFound, FrameworkID: id}
}

// NotInstalled reports a framework without a ledger entry.
func NotInstalled(id string) error {
	return &Error{Kind: ErrNotInstalled, FrameworkID: id}
}

// ManifestCorrupt wraps a manifest parse or validation failure.
func ManifestCorrupt(path, message string, err error) error {
	return &Error{Kind: ErrManifestCorrupt, Path: path, Message: message, Err: err}
}

// LedgerCorrupt wraps a ledger parse or validation failure.
func LedgerCorrupt(path, message string, err error) error {
	return &Error{Kind: ErrLedgerCorrupt, Path: path, Message: message, Err: err}
}

// WithFramework attaches a framework id to err. *Error values are copied, other
// errors are wrapped as IO failures only when they already match ErrIOFailure.
func WithFramework(err error, id string) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) && ge.FrameworkID == "" {
		cp := *ge
		cp.FrameworkID = id
		return &cp
	}
	return fmt.Errorf("framework %s: %w", id, err)
}

// KindOf returns the sentinel kind matched by err, or nil.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrNotFound, ErrNotInstalled, ErrManifestCorrupt, ErrLedgerCorrupt,
		ErrConflict, ErrCancelled, ErrUpToDate, ErrInvalidQuery, ErrIOFailure,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
