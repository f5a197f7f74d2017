package services

import (
	"errors"
	"fmt"
	"strings"

	"featprep/internal/runstore"
)

var (
	// ErrConfiguration marks invalid tool configuration or override documents.
	ErrConfiguration = errors.New("configuration error")
	// ErrCollaborator marks failures reported by the extraction collaborator.
	ErrCollaborator = errors.New("collaborator error")
	// ErrExternalTool marks failures starting or talking to a subprocess.
	ErrExternalTool = errors.New("external tool error")
	// ErrLocked marks a run refused because another run holds the cache lock.
	ErrLocked = errors.New("run already in progress")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrCollaborator
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStatus maps a run error to the status recorded in the run ledger.
func FailureStatus(err error) runstore.Status {
	switch {
	case err == nil:
		return runstore.StatusCompleted
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrLocked):
		return runstore.StatusInvalid
	default:
		return runstore.StatusFailed
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
