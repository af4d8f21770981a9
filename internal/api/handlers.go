package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fleetnav/internal/grid"
	"fleetnav/internal/metrics"
	"fleetnav/internal/model"
	"fleetnav/internal/pathfind"
)

// GridHandler serves GET /v1/grid.
func (s *Server) GridHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	g := s.Sim.Grid()
	writeJSON(w, http.StatusOK, model.GridOut{Width: g.Width(), Height: g.Height(), Obstacles: g.Obstacles(), FreeCells: g.FreeCells()})
}

// ObstaclesHandler serves POST /v1/grid/obstacles.
func (s *Server) ObstaclesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in model.ObstacleIn
	if err := decodeJSON(w, r, &in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateObstacleIn(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Validation failed", err.Error(), r.URL.Path)
		return
	}
	p := grid.Position{X: *in.X, Y: *in.Y}
	if err := s.Sim.SetObstacle(p); err != nil {
		writeError(w, r, "Set obstacle failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"obstacle": p})
}

// RobotsHandler serves GET and POST /v1/robots.
func (s *Server) RobotsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		robots := s.Sim.Robots()
		writeJSON(w, http.StatusOK, map[string]any{"items": robots})
	case http.MethodPost:
		var in model.RobotIn
		if err := decodeJSON(w, r, &in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateRobotIn(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Validation failed", err.Error(), r.URL.Path)
			return
		}
		robot, err := s.Sim.AddRobot(in.ID, *in.Position)
		if err != nil {
			writeError(w, r, "Add robot failed", err)
			return
		}
		s.refreshGauges()
		writeJSON(w, http.StatusCreated, robot)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// RobotByIDHandler serves POST /v1/robots/{id}/recharge.
func (s *Server) RobotByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/robots/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "recharge" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid robot id", err.Error(), r.URL.Path)
		return
	}
	robot, err := s.Sim.Recharge(id)
	if err != nil {
		writeError(w, r, "Recharge failed", err)
		return
	}
	writeJSON(w, http.StatusOK, robot)
}

// OrdersHandler serves GET and POST /v1/orders.
func (s *Server) OrdersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		pending := s.Sim.Pending()
		writeJSON(w, http.StatusOK, map[string]any{"items": pending})
	case http.MethodPost:
		var in model.OrderIn
		if err := decodeJSON(w, r, &in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateOrderIn(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Validation failed", err.Error(), r.URL.Path)
			return
		}
		order, err := s.Sim.AddOrder(*in.Destination)
		if err != nil {
			writeError(w, r, "Add order failed", err)
			return
		}
		s.refreshGauges()
		writeJSON(w, http.StatusCreated, order)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// AssignHandler serves POST /v1/assign: one assignment round, persisted and
// published on the fleet topic.
func (s *Server) AssignHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	res, err := s.Sim.AssignOrders(r.Context())
	if err != nil {
		writeError(w, r, "Assignment failed", err)
		return
	}
	elapsed := time.Since(start)

	run := model.NewDispatchRun(res)
	run.DurationMs = elapsed.Milliseconds()
	run, err = s.Store.SaveRun(r.Context(), run)
	if err != nil {
		writeError(w, r, "Save run failed", err)
		return
	}

	metrics.AssignRounds.WithLabelValues(run.Policy).Inc()
	metrics.AssignDuration.WithLabelValues(run.Policy).Observe(elapsed.Seconds())
	metrics.Assignments.Add(float64(len(run.Assignments)))
	metrics.SearchExpansions.Observe(float64(run.Expanded))
	s.refreshGauges()

	s.publishRun(run)
	writeJSON(w, http.StatusOK, run)
}

// publishRun emits the events of one round. A path starts at the robot's
// position when the round ran, so "from" needs no separate snapshot.
func (s *Server) publishRun(run model.DispatchRun) {
	for _, a := range run.Assignments {
		s.publish(SSEEvent{Type: EventOrderAssigned, Data: map[string]any{
			"runId": run.ID, "robotId": a.RobotID, "orderId": a.OrderID, "cost": a.Cost, "path": a.Path,
		}})
		s.publish(SSEEvent{Type: EventRobotMoved, Data: map[string]any{
			"robotId": a.RobotID, "from": a.From, "to": a.To,
		}})
	}
	for _, o := range run.Pending {
		s.publish(SSEEvent{Type: EventOrderPending, Data: map[string]any{
			"runId": run.ID, "orderId": o.ID, "destination": o.Destination,
		}})
	}
	s.publish(SSEEvent{Type: EventRunCompleted, Data: map[string]any{
		"runId": run.ID, "policy": run.Policy, "assigned": len(run.Assignments), "pending": len(run.Pending), "totalCost": run.TotalCost,
	}})
}

// RunsHandler serves GET /v1/runs.
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", v, r.URL.Path)
			return
		}
		limit = n
	}
	items, next, err := s.Store.ListRuns(r.Context(), q.Get("cursor"), limit)
	if err != nil {
		writeError(w, r, "List runs failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// RunByIDHandler serves GET /v1/runs/{id}.
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	run, err := s.Store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, r, "Get run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// PathsHandler serves POST /v1/paths, a one-off search on the current grid.
// An unreachable goal is a normal answer (found=false), not an error.
func (s *Server) PathsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.PathRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validatePathRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Validation failed", err.Error(), r.URL.Path)
		return
	}
	path, st, err := pathfind.Search(s.Sim.Grid(), *req.Start, *req.Goal, pathfind.Options{MaxExpansions: req.MaxExpansions})
	metrics.SearchExpansions.Observe(float64(st.Expanded))
	switch {
	case err == nil:
		metrics.PathSearches.WithLabelValues("found").Inc()
		writeJSON(w, http.StatusOK, model.NewPathResponse(path, st))
	case errors.Is(err, pathfind.ErrNotFound):
		metrics.PathSearches.WithLabelValues("not_found").Inc()
		writeJSON(w, http.StatusOK, model.PathResponse{Found: false, Expanded: st.Expanded, Reason: err.Error()})
	default:
		metrics.PathSearches.WithLabelValues("invalid").Inc()
		writeError(w, r, "Invalid path request", err)
	}
}

// refreshGauges reads fleet size and queue length after any mutation.
func (s *Server) refreshGauges() {
	metrics.Robots.Set(float64(len(s.Sim.Robots())))
	metrics.PendingOrders.Set(float64(len(s.Sim.Pending())))
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using Postgres store
	type pinger interface{ Ping(ctx context.Context) error }
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
