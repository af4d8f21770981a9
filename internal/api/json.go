package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"fleetnav/internal/assign"
	"fleetnav/internal/grid"
	"fleetnav/internal/pathfind"
	"fleetnav/internal/sim"
	"fleetnav/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, title string, err error) {
	writeProblem(w, statusFor(err), title, err.Error(), r.URL.Path)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, grid.ErrOutOfBounds), errors.Is(err, grid.ErrBadLayout), errors.Is(err, store.ErrBadCursor):
		return http.StatusBadRequest
	case errors.Is(err, pathfind.ErrInvalidEndpoint):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sim.ErrUnknownRobot), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sim.ErrDuplicateRobot), errors.Is(err, assign.ErrDuplicateRobot), errors.Is(err, assign.ErrDuplicateOrder):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
