// Package exitcode provides standardized exit codes for guidekit
package exitcode

import (
	"errors"
	"io/fs"

	"github.com/fulmenhq/guidekit/pkg/guideerr"
)

// Exit codes for guidekit CLI
const (
	Success         = 0
	GeneralError    = 1
	ConfigError     = 2
	ValidationError = 3
	FileSystemError = 4
	PermissionError = 6
	NotFound        = 10
	Conflict        = 11
	CorruptStore    = 12
	Cancelled       = 13
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case ConfigError:
		return "Configuration error"
	case ValidationError:
		return "Validation error"
	case FileSystemError:
		return "File system error"
	case PermissionError:
		return "Permission error"
	case NotFound:
		return "Framework not found"
	case Conflict:
		return "Unresolved content conflict"
	case CorruptStore:
		return "Corrupt manifest or ledger"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown error"
	}
}

// FromError maps an engine error to the exit code the CLI should return.
func FromError(err error) int {
	if err == nil {
		return Success
	}
	switch {
	case errors.Is(err, fs.ErrPermission):
		return PermissionError
	case errors.Is(err, guideerr.ErrNotFound), errors.Is(err, guideerr.ErrNotInstalled):
		return NotFound
	case errors.Is(err, guideerr.ErrConflict):
		return Conflict
	case errors.Is(err, guideerr.ErrManifestCorrupt), errors.Is(err, guideerr.ErrLedgerCorrupt):
		return CorruptStore
	case errors.Is(err, guideerr.ErrCancelled):
		return Cancelled
	case errors.Is(err, guideerr.ErrIOFailure):
		return FileSystemError
	default:
		return GeneralError
	}
}
