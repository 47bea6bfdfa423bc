// Package router applies inbound messages to the parameter registry and
// decides what, if anything, goes back out.
//
// Three write paths exist, and only one of them publishes to peers:
//
//   - HandlePeer applies syncs from the network. These changes are never
//     published again, which is what stops two nodes echoing an update back
//     and forth forever. Each applied change is still drawn on the device.
//   - HandleDevice applies encoder turns from the device and publishes them
//     to peers.
//   - SetValue and SetColor are local edits. They publish to peers and draw
//     on the device.
//
// Consumers that render parameters (a GUI, the MQTT mirror) call Subscribe
// and read Events on their own goroutine.
package router
