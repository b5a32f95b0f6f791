// Package httpserver provides HTTP server infrastructure components.
package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lllypuk/sentinel/internal/health"
)

// Health surface paths, relative to the API prefix.
const (
	HealthPath = "/health"
	SystemPath = "/system"
)

// HealthReporter produces the two health views. *health.Reporter implements it.
type HealthReporter interface {
	Liveness(ctx context.Context) health.LivenessReport
	System(ctx context.Context) health.SystemStatus
}

var _ HealthReporter = (*health.Reporter)(nil)

// HealthEndpoints manages health endpoint registration.
type HealthEndpoints struct {
	reporter HealthReporter
}

// NewHealthEndpoints creates a new HealthEndpoints instance.
func NewHealthEndpoints(reporter HealthReporter) *HealthEndpoints {
	return &HealthEndpoints{reporter: reporter}
}

// Register registers the health endpoints on g.
//   - GET /health - liveness verdict; 200 on pass, 503 on fail
//   - GET /system - operator status snapshot; always 200
func (h *HealthEndpoints) Register(g *echo.Group) {
	g.GET(HealthPath, h.handleHealth)
	g.GET(SystemPath, h.handleSystem)
}

// handleHealth reports failure through the payload and status code only,
// never through the error envelope.
func (h *HealthEndpoints) handleHealth(c echo.Context) error {
	report := h.reporter.Liveness(c.Request().Context())
	return c.JSON(LivenessStatusCode(report), report)
}

func (h *HealthEndpoints) handleSystem(c echo.Context) error {
	return c.JSON(http.StatusOK, h.reporter.System(c.Request().Context()))
}

// LivenessStatusCode maps a liveness verdict to its HTTP status.
func LivenessStatusCode(report health.LivenessReport) int {
	if report.Pass {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}
