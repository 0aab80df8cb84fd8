// Package server wires HTTP handlers into a ServeMux for the relay
// via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application routes.
// It sets up handlers for health check, the WebSocket endpoint and the
// read-only online and rooms views.
func (s *Server) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.HandleFunc("/api/online", s.OnlineHandler)
	mux.HandleFunc("/api/rooms", s.RoomsHandler)
	return mux
}
