// Package peer implements the WebSocket endpoint shared by every paramsync
// process.
//
// # Roles
//
// A Hub is the server role. It accepts any number of connections and relays
// each sync message, byte for byte, to every other connected peer before
// handing it to the owning process. The hub is the only owner of its peer
// set; Register, Unregister and the broadcast methods are its sole
// mutators.
//
// A Client is the client role. It walks an ordered candidate list, keeps
// the first connection that succeeds, asks for the current parameter state
// and flushes anything queued while it was offline. Run returns when the
// connection ends; the caller decides whether to rediscover.
//
// Candidates builds the discovery list: an explicit override, then
// loopback, then addresses synthesised from the local /24, then a few
// historically known addresses.
package peer
