package controls

import "errors"

var (
	// ErrDisabled is returned for a click on a control that is still busy.
	ErrDisabled = errors.New("control is disabled")
	// ErrMissingTarget is returned when a control carries no id to act on.
	ErrMissingTarget = errors.New("control has no target id")
)
