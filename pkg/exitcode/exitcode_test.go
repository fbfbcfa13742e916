package exitcode

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/fulmenhq/guidekit/pkg/guideerr"
)

func TestExitCodeConstants(t *testing.T) {
	if Success != 0 {
		t.Errorf("Success = %v, expected 0", Success)
	}
	if GeneralError != 1 {
		t.Errorf("GeneralError = %v, expected 1", GeneralError)
	}
	if ValidationError != 3 {
		t.Errorf("ValidationError = %v, expected 3", ValidationError)
	}
	if FileSystemError != 4 {
		t.Errorf("FileSystemError = %v, expected 4", FileSystemError)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{Success, "Success"},
		{GeneralError, "General error"},
		{ConfigError, "Configuration error"},
		{NotFound, "Framework not found"},
		{Conflict, "Unresolved content conflict"},
		{CorruptStore, "Corrupt manifest or ledger"},
		{999, "Unknown error"},
	}

	for _, test := range tests {
		if result := String(test.code); result != test.expected {
			t.Errorf("String(%d) = %v, expected %v", test.code, result, test.expected)
		}
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, Success},
		{"not found", guideerr.NotFound("x"), NotFound},
		{"conflict", fmt.Errorf("wrap: %w", guideerr.ErrConflict), Conflict},
		{"ledger", guideerr.LedgerCorrupt("l", "", nil), CorruptStore},
		{"permission", guideerr.New(guideerr.ErrIOFailure, "", "p", "", fs.ErrPermission), PermissionError},
		{"io", guideerr.New(guideerr.ErrIOFailure, "", "p", "", errors.New("disk full")), FileSystemError},
		{"other", errors.New("boom"), GeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromError(tt.err); got != tt.want {
				t.Errorf("FromError() = %d, want %d", got, tt.want)
			}
		})
	}
}
