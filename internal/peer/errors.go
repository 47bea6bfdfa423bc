package peer

import "errors"

var (
	// ErrNoReachableServer is returned by Client.Run when every candidate
	// failed to connect.
	ErrNoReachableServer = errors.New("peer: no reachable server")

	// ErrNoCandidates is returned by Client.Run when the candidate list is
	// empty.
	ErrNoCandidates = errors.New("peer: no candidates")

	// ErrConnectionClosed is returned by Client.Run when an established
	// connection ends.
	ErrConnectionClosed = errors.New("peer: connection closed")

	// ErrHubClosed is returned when a connection arrives after the hub has
	// shut down.
	ErrHubClosed = errors.New("peer: hub closed")
)
