// Package bridge runs the serial-to-WebSocket bridge process.
//
// A Bridge owns the parameter registry, the router, the peer hub and the
// serial transport to the ESP32. Device messages are handed from the serial
// goroutine to a forwarder through an unbounded queue, so a slow network
// never stalls the serial reader:
//
//	ESP32 → esp32.Transport → queue → forwarder → Hub.Publish + Router
//	peer  → Hub (relay) → handler → Router / device passthrough
//
// An optional Mirror copies parameter state to an MQTT broker and accepts
// value and colour commands from it.
package bridge
