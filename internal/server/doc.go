// Package server implements the WebSocket transport of the relay.
//
// The implementation is organized into specialized files for configuration,
// hub management, per-connection pumps, routing, and HTTP handlers. Message
// routing and the login handshake live in package chat; this package only
// frames envelopes on the wire and delivers them to connections.
package server
