package transport

import (
	"context"
	"net/http"

	"kiosk-pos/internal/middleware"
)

// HealthChecker reports the state of a backing service
type HealthChecker interface {
	Health(ctx context.Context) map[string]string
}

// HealthHandler serves GET /health
func HealthHandler(db HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbHealth := db.Health(r.Context())

		status := http.StatusOK
		overall := "ok"
		if dbHealth["status"] != "up" {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}

		middleware.RespondWithJSON(w, status, map[string]interface{}{
			"status":   overall,
			"database": dbHealth,
		})
	}
}
