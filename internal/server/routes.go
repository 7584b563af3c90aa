// Package server wires HTTP handlers into a ServeMux for the chat
// application via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application routes:
// health check, stats, Prometheus metrics, the WebSocket endpoint and the chat page.
func SetupRoutes(router *Router) *http.ServeMux {
	h := newHandlers(router)
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/stats", h.stats)
	mux.Handle("/metrics", router.metrics.handler())
	mux.HandleFunc("/ws", h.webSocket)
	mux.HandleFunc("/chat", h.chatPage)
	return mux
}
