package esp32

import "errors"

// Domain errors for the ESP32 transport.
var (
	// ErrNotConnected is returned by Send when the serial port is not open.
	// The message has been dropped.
	ErrNotConnected = errors.New("esp32: not connected")

	// ErrWriteFailed is returned when writing to an open port fails.
	ErrWriteFailed = errors.New("esp32: write failed")

	// ErrOpenFailed is returned when the serial port cannot be opened.
	ErrOpenFailed = errors.New("esp32: open failed")

	// ErrLineTooLong is reported when a device line exceeds maxLineLength
	// before a newline arrives. The partial line is discarded.
	ErrLineTooLong = errors.New("esp32: line too long")
)
