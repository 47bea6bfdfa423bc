package bridge

import "errors"

var (
	// ErrAlreadyRunning is returned by Run when the bridge is already running.
	ErrAlreadyRunning = errors.New("bridge: already running")

	// ErrNoDevice is returned when a device-bound message arrives while the
	// serial transport is disabled.
	ErrNoDevice = errors.New("bridge: serial device disabled")

	// ErrInvalidCommand is returned for MQTT command payloads that carry
	// neither a value nor a colour.
	ErrInvalidCommand = errors.New("bridge: invalid command payload")
)
