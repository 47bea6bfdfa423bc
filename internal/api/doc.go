// Package api serves the bridge over HTTP.
//
// One chi router carries:
//   - the WebSocket endpoint for peers (default path "/")
//   - GET /healthz
//   - GET /api/v1/status, the same bridge_status a peer gets for get_status
//   - GET/PUT /api/v1/parameters/{id} and GET /api/v1/parameters/{id}/leds
//   - the Prometheus endpoint (default /metrics)
//
// The listener is bound synchronously in Start so a port conflict fails
// startup instead of surfacing later in a goroutine.
package api
