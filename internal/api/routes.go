package api

import (
	"net/http"

	"fleetnav/internal/metrics"
)

// Routes registers every endpoint on a new mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Grid
	mux.HandleFunc("/v1/grid", s.GridHandler)
	mux.HandleFunc("/v1/grid/obstacles", s.ObstaclesHandler)

	// Fleet
	mux.HandleFunc("/v1/robots", s.RobotsHandler)
	mux.HandleFunc("/v1/robots/", s.RobotByIDHandler) // /{id}/recharge
	mux.HandleFunc("/v1/orders", s.OrdersHandler)

	// Dispatch
	mux.HandleFunc("/v1/assign", s.AssignHandler)
	mux.HandleFunc("/v1/runs", s.RunsHandler)
	mux.HandleFunc("/v1/runs/", s.RunByIDHandler)
	mux.HandleFunc("/v1/paths", s.PathsHandler)

	// Event streams
	mux.HandleFunc("/v1/events/stream", s.EventsStreamHandler)
	mux.HandleFunc("/v1/events/ws", s.EventsWSHandler)

	// Health, metrics, debug
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/debug/info", s.DebugJSON)
	return mux
}
