package api

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/streamdesk/streamdesk/internal/cmn/config"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    int64  `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

// GetHealthStatus reports liveness. It never touches the license authority.
func (a *API) GetHealthStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:    "healthy",
		Version:   config.Version,
		Uptime:    a.uptime.Seconds(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
