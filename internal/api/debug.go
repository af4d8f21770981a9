package api

import (
	"net/http"
	"time"

	"fleetnav/internal/buildinfo"
)

// DebugJSON serves GET /debug/info.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	g := s.Sim.Grid()
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"addr":             s.Config.Addr,
			"scenario":         s.Config.Scenario,
			"policy":           s.Policy,
			"rateRps":          s.Config.RateRPS,
			"rateBurst":        s.Config.RateBurst,
			"hasDatabaseUrl":   s.Config.DatabaseURL != "",
			"hasRedisUrl":      s.Config.RedisURL != "",
			"migrateOnStartup": s.Config.Migrate,
		},
		"fleet": map[string]any{
			"grid":    map[string]int{"width": g.Width(), "height": g.Height(), "obstacles": len(g.Obstacles())},
			"robots":  len(s.Sim.Robots()),
			"pending": len(s.Sim.Pending()),
		},
	}
	writeJSON(w, http.StatusOK, info)
}
