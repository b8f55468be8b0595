package action

import (
	"errors"
	"fmt"

	"github.com/dhmon/snmpcollector/models"
)

var (
	// ErrUnknownActionType is returned when a message or queue name carries a
	// type tag outside the closed action set.
	ErrUnknownActionType = errors.New("unknown action type")

	// ErrMalformedAction is returned when a message is missing a required
	// field or cannot be parsed at all.
	ErrMalformedAction = errors.New("malformed action")

	// ErrInvalidInstanceIdentifier is returned when an instance (or a
	// namespace / component) would produce an ambiguous queue name.
	ErrInvalidInstanceIdentifier = errors.New("invalid instance identifier")

	// ErrUnsupportedAction is matched by every *UnsupportedActionError.
	ErrUnsupportedAction = errors.New("unsupported action")
)

// UnsupportedActionError reports a stage that lacks the handler for an
// action kind.
type UnsupportedActionError struct {
	Kind       models.Kind
	Capability string
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("action: unsupported action %s: stage does not implement %s", e.Kind, e.Capability)
}

// Is lets errors.Is(err, ErrUnsupportedAction) match.
func (e *UnsupportedActionError) Is(target error) bool {
	return target == ErrUnsupportedAction
}
