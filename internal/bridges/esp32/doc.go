// Package esp32 implements the serial transport to the ESP32 control
// surface.
//
// The device speaks newline-delimited JSON over a USB serial link. This
// package opens the port (auto-detecting it when no name is configured),
// reads lines on a dedicated goroutine, and writes one envelope per line.
//
// # Architecture
//
//	┌─────────────────┐  callback  ┌─────────────────┐  serial   ┌─────────┐
//	│     Bridge      │◄───────────│    Transport    │◄─────────►│  ESP32  │
//	│                 │───Send────►│   (this pkg)    │ 115200 8N1│         │
//	└─────────────────┘            └─────────────────┘           └─────────┘
//
// # Connection Lifecycle
//
// Run drives a Disconnected → Connecting → Connected state machine. A failed
// open or a read error returns to Disconnected and retries after a fixed
// backoff. Output written while disconnected is dropped and counted; the
// device has no backlog semantics.
//
// # Encoder Mapping
//
// Parameters are addressed on the device by encoder number. EncoderFor and
// ParameterForEncoder translate between the two. Unknown parameter IDs fall
// back to encoder 0.
//
// # Thread Safety
//
// All exported methods of Transport are safe for concurrent use.
package esp32
