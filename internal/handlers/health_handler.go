package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/answer-sheet-service/internal/utils"
)

const serviceName = "answer-sheet-service"

// HealthCheck is one named dependency probe
type HealthCheck struct {
	Name string
	// Optional dependencies report "disabled" when Check is nil
	Check func(ctx context.Context) error
	// Required dependencies turn the whole report unhealthy when they fail
	Required bool
}

type HealthHandler struct {
	BaseHandler
	checks  []HealthCheck
	timeout time.Duration
}

func NewHealthHandler(logger utils.Logger, checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{
		BaseHandler: NewBaseHandler(logger),
		checks:      checks,
		timeout:     3 * time.Second,
	}
}

// Health reports each dependency and answers 503 when a required one is down
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	components := make(map[string]string, len(h.checks))

	for _, check := range h.checks {
		if check.Check == nil {
			components[check.Name] = "disabled"
			continue
		}
		if err := check.Check(ctx); err != nil {
			h.LogError(c, err, "Health check failed", "component", check.Name)
			components[check.Name] = "unhealthy"
			if check.Required {
				status = "unhealthy"
				code = http.StatusServiceUnavailable
			} else if status == "healthy" {
				status = "degraded"
			}
			continue
		}
		components[check.Name] = "healthy"
	}

	c.JSON(code, gin.H{
		"status":     status,
		"service":    serviceName,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"components": components,
	})
}
