package controllers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/qrgate/gate"
	"github.com/cppla/qrgate/utils"
)

// ConfigController describes the configured gate window.
type ConfigController struct {
	gate  gate.Config
	clock gate.Clock
}

func NewConfigController(cfg gate.Config, clock gate.Clock) *ConfigController {
	if clock == nil {
		clock = gate.SystemClock
	}
	return &ConfigController{gate: cfg, clock: clock}
}

// Health reports liveness together with the current gate state.
func (c *ConfigController) Health(ctx *gin.Context) {
	now := c.clock()
	utils.Success(ctx, gin.H{
		"status":     "ok",
		"active":     gate.IsActive(now, c.gate),
		"starts_at":  c.gate.Start.Format(time.RFC3339),
		"expires_at": c.gate.Expiry().Format(time.RFC3339),
	})
}

// GetGate returns the window definition.
func (c *ConfigController) GetGate(ctx *gin.Context) {
	utils.Success(ctx, gin.H{
		"start":      c.gate.Start.Format(time.RFC3339),
		"valid_days": c.gate.ValidDays,
		"expires_at": c.gate.Expiry().Format(time.RFC3339),
	})
}
