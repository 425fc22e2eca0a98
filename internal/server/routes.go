// Package server wires HTTP handlers into a ServeMux for the SketchHub
// application via routing helpers.
package server

import "net/http"

// SetupRoutes returns a ServeMux with every application route.
func (s *Server) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.WelcomeHandler)
	mux.HandleFunc("/health", s.HealthHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.HandleFunc("/test", s.TestPageHandler)
	mux.HandleFunc("/api/broadcast", s.BroadcastHandler)
	mux.HandleFunc("/api/broadcast/", s.BroadcastHandler)
	return mux
}
