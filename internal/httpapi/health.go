package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"meal-planner/internal/metrics"

	"github.com/julienschmidt/httprouter"
)

type healthReport struct {
	Status   string            `json:"status"`
	Service  string            `json:"service"`
	Database string            `json:"database"`
	Redis    string            `json:"redis"`
	Runtime  metrics.SysHealth `json:"runtime"`
}

func ping(ctx context.Context, name string, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		log.Printf("health: %s ping failed: %v", name, err)
		return "unavailable"
	}
	return "ok"
}

// health reports 503 when the database is down and "degraded" when only
// Redis is.
func (s *Server) health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	rep := healthReport{
		Status:   "healthy",
		Service:  "meal-planning-api",
		Database: ping(ctx, "database", s.db),
		Redis:    ping(ctx, "redis", s.cache),
		Runtime:  metrics.GetSysHealth(s.started),
	}
	status := http.StatusOK
	switch {
	case rep.Database == "unavailable":
		rep.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	case rep.Redis == "unavailable":
		rep.Status = "degraded"
	}
	writeJSON(w, status, rep)
}
