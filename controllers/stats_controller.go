package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/qrgate/models"
	"github.com/cppla/qrgate/services"
	"github.com/cppla/qrgate/utils"
)

// StatsController exposes row counts of the visit log.
type StatsController struct {
	visits services.VisitLog
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(visits services.VisitLog) *StatsController {
	return &StatsController{visits: visits}
}

// GetStats returns the number of logged visits per status.
func (s *StatsController) GetStats(ctx *gin.Context) {
	counts, err := s.visits.CountByStatus(ctx.Request.Context())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, err.Error())
		return
	}

	active := counts[models.StatusActive]
	inactive := counts[models.StatusInactive]
	utils.Success(ctx, gin.H{
		"active_count":   active,
		"inactive_count": inactive,
		"total_count":    active + inactive,
	})
}
