package protocol

import "errors"

var (
	// ErrMalformedMessage is returned when a payload is not a JSON object
	// with a non-empty "type" field, or its body does not match the type.
	ErrMalformedMessage = errors.New("protocol: malformed message")
)
