package esp32

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// readTimeout bounds each blocking Read so the read loop can observe
// cancellation. A timed-out Read returns 0, nil.
const readTimeout = time.Second

// Port is the subset of a serial port used by the transport.
type Port interface {
	io.ReadWriteCloser
}

// drainer is implemented by ports that can block until written data has been
// transmitted.
type drainer interface {
	Drain() error
}

// Opener opens the named port at the given baud rate.
type Opener func(name string, baudRate int) (Port, error)

// OpenSerial opens a real serial port in 8N1 mode.
func OpenSerial(name string, baudRate int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenFailed, name, err)
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("%w: %s: setting read timeout: %w", ErrOpenFailed, name, err)
	}

	return port, nil
}
