package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/khaind/macad-api/internal/service"
	"github.com/khaind/macad-api/pkg/response"
)

// DashboardHandler exposes the administrative summary endpoint.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler constructs a dashboard handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Summary godoc
// @Summary Administrative dashboard summary
// @Description Aggregated counts across users, courses and recent activity
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
