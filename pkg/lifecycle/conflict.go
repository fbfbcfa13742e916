package lifecycle

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/guidekit/pkg/guideerr"
)

// Resolution is the caller's answer to an install conflict.
type Resolution string

const (
	ResolutionNone         Resolution = ""
	ResolutionOverwrite    Resolution = "overwrite"
	ResolutionMerge        Resolution = "merge"
	ResolutionKeepExisting Resolution = "keep-existing"
	ResolutionCancel       Resolution = "cancel"
)

// Resolutions lists the values accepted for an install conflict.
var Resolutions = []Resolution{ResolutionOverwrite, ResolutionMerge, ResolutionKeepExisting, ResolutionCancel}

// ParseResolution accepts the names above; the empty string is ResolutionNone.
func ParseResolution(s string) (Resolution, error) {
	r := Resolution(strings.ToLower(strings.TrimSpace(s)))
	if r == ResolutionNone {
		return r, nil
	}
	for _, k := range Resolutions {
		if r == k {
			return r, nil
		}
	}
	return ResolutionNone, fmt.Errorf("unknown resolution %q (want one of %s)", s, joinOptions(Resolutions))
}

// Decision is the caller's answer when an update would replace customized content.
type Decision string

const (
	DecisionNone             Decision = ""
	DecisionBackupAndUpdate  Decision = "backup-and-update"
	DecisionDiscardAndUpdate Decision = "discard-and-update"
	DecisionCancel           Decision = "cancel"
)

// Decisions lists the values accepted for an update conflict.
var Decisions = []Decision{DecisionBackupAndUpdate, DecisionDiscardAndUpdate, DecisionCancel}

// ParseDecision accepts the names above; the empty string is DecisionNone.
func ParseDecision(s string) (Decision, error) {
	d := Decision(strings.ToLower(strings.TrimSpace(s)))
	if d == DecisionNone {
		return d, nil
	}
	for _, k := range Decisions {
		if d == k {
			return d, nil
		}
	}
	return DecisionNone, fmt.Errorf("unknown decision %q (want one of %s)", s, joinOptions(Decisions))
}

// Phase says which operation ran into a conflict.
type Phase string

const (
	PhaseInstall Phase = "install"
	PhaseUpdate  Phase = "update"
)

// ConflictError stops an install or update until the caller picks a
// resolution. Nothing has been written when it is returned.
type ConflictError struct {
	Phase        Phase
	FrameworkID  string
	Path         string
	ExpectedHash string // empty when the ledger has no record
	ActualHash   string
	// Customized is set when the ledger already marks the document customized.
	Customized bool
	Options    []string
}

func (e *ConflictError) Error() string {
	reason := "file content differs from the recorded hash"
	switch {
	case e.ExpectedHash == "":
		reason = "file exists but is not tracked"
	case e.Customized && e.ExpectedHash == e.ActualHash:
		reason = "document is marked customized"
	}
	return fmt.Sprintf("%s conflict [framework %s] [%s]: %s; choose one of: %s",
		e.Phase, e.FrameworkID, e.Path, reason, strings.Join(e.Options, ", "))
}

// Is matches guideerr.ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == guideerr.ErrConflict
}

func joinOptions[T ~string](opts []T) string {
	return strings.Join(optionStrings(opts), ", ")
}

func optionStrings[T ~string](opts []T) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = string(o)
	}
	return out
}

func cancelled(phase Phase, id, path string) error {
	return guideerr.New(guideerr.ErrCancelled, id, path, string(phase)+" cancelled by caller", nil)
}
