package parameter

import "errors"

// Domain errors for the parameter package.
var (
	// ErrParameterNotFound is returned when a parameter ID does not exist.
	ErrParameterNotFound = errors.New("parameter: not found")

	// ErrInvalidColor is returned when a colour string cannot be parsed as hex.
	ErrInvalidColor = errors.New("parameter: invalid color")

	// ErrMissingID is returned when an update carries no parameter ID.
	ErrMissingID = errors.New("parameter: missing id")
)
