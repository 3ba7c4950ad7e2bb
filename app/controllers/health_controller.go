package controllers

import (
	"net/http"
	"time"

	"github.com/zhitang/backend-go/internal/database"
)

// HealthController 健康检查
type HealthController struct {
	BaseController
	Checker *database.HealthChecker
}

// Health GET /health
func (c *HealthController) Health() {
	if c.Checker == nil {
		c.JSONSuccess(map[string]interface{}{"status": "ok", "timestamp": time.Now().Unix()})
		return
	}

	report := c.Checker.Report()
	status := http.StatusOK
	state := "ok"
	if !report.Healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(status, map[string]interface{}{
		"success": report.Healthy,
		"data": map[string]interface{}{
			"status":     state,
			"components": report.Components,
			"timestamp":  time.Now().Unix(),
		},
	})
}
