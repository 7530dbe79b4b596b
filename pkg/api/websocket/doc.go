// Package websocket streams analysis events to clients.
//
// Clients connect to /api/v1/analyses/:id/ws and receive the lifecycle
// and step events of that analysis as JSON text messages. The connection
// is closed once the analysis reaches a terminal state.
package websocket
