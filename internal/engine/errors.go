package engine

import (
	"errors"
	"fmt"

	"deskseed/internal/domain"
)

// FatalPrecondition means a structural requirement of the run is unmet. It
// ends the run.
type FatalPrecondition struct {
	Reason string
	Err    error
}

func (e FatalPrecondition) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal: %s: %v", e.Reason, e.Err)
	}
	return "fatal: " + e.Reason
}

func (e FatalPrecondition) Unwrap() error { return e.Err }

// IsFatal reports whether err is or wraps a FatalPrecondition.
func IsFatal(err error) bool {
	var fp FatalPrecondition
	return errors.As(err, &fp)
}

func fatalf(cause error, format string, args ...any) error {
	return FatalPrecondition{Reason: fmt.Sprintf(format, args...), Err: cause}
}

// UnresolvedCreatorError means the creator of a work item is not a usable
// actor of the registry, so nobody can accept its resolution.
type UnresolvedCreatorError struct {
	ItemID    domain.ID
	CreatorID domain.ID
}

func (e UnresolvedCreatorError) Error() string {
	return fmt.Sprintf("item %s: creator %q is not a usable actor", e.ItemID, e.CreatorID)
}

// ItemError is a failed action on one work item.
type ItemError struct {
	ItemID  domain.ID
	Outcome domain.Outcome
	Err     error
}

func (e ItemError) Error() string {
	if e.Outcome != "" {
		return fmt.Sprintf("item %s (%s): %v", e.ItemID, e.Outcome, e.Err)
	}
	return fmt.Sprintf("item %s: %v", e.ItemID, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }
