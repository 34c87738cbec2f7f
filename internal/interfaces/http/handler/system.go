package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ledgerlink/backend/internal/interfaces/http/dto"
)

// ReadyCheck probes one dependency for the readiness endpoint
type ReadyCheck func(ctx context.Context) error

// SystemHandler answers health and readiness probes
type SystemHandler struct {
	BaseHandler
	startTime time.Time
	checks    map[string]ReadyCheck
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(checks map[string]ReadyCheck) *SystemHandler {
	return &SystemHandler{
		startTime: time.Now(),
		checks:    checks,
	}
}

// RegisterRootRoutes registers the probe endpoints on the engine root,
// outside the versioned API group
func (h *SystemHandler) RegisterRootRoutes(engine *gin.Engine) {
	engine.GET("/health", h.Health)
	engine.GET("/ready", h.Ready)
}

// HealthResponse reports liveness
type HealthResponse struct {
	Status    string `json:"status"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Health godoc
//
//	@Summary		Liveness probe
//	@Description	Reports process liveness; it never checks dependencies
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	dto.Response
//	@Router			/health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(HealthResponse{
		Status:    "ok",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}))
}

// Ready godoc
//
//	@Summary		Readiness probe
//	@Description	Probes the registered dependencies; any failure answers 503 with the per-dependency outcome
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	dto.Response
//	@Failure		503	{object}	dto.Response
//	@Router			/ready [get]
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponseWithDetails(
			dto.ErrCodeInternal, "one or more dependencies are unavailable", getRequestID(c), results))
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(results))
}
