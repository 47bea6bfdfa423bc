// Package protocol defines the paramsync wire messages and their JSON codec.
//
// The same JSON envelope, {"type": ..., "timestamp": ..., ...}, is used on
// WebSocket connections between network peers and, one object per line, on
// the serial link to the device. Every message kind is a concrete Go type
// implementing Message; Decode returns one of them, or Unknown for a type it
// does not recognise.
//
// Messages are values. Once built they are not modified, and relays forward
// the bytes they received rather than re-encoding.
package protocol
