package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/khaind/macad-api/internal/models"
	"github.com/khaind/macad-api/internal/service"
	appErrors "github.com/khaind/macad-api/pkg/errors"
	"github.com/khaind/macad-api/pkg/response"
)

// AllowanceHandler exposes monthly allowance endpoints.
type AllowanceHandler struct {
	service *service.AllowanceService
}

// NewAllowanceHandler constructs an allowance handler.
func NewAllowanceHandler(svc *service.AllowanceService) *AllowanceHandler {
	return &AllowanceHandler{service: svc}
}

// List godoc
// @Summary List allowances
// @Tags Allowances
// @Produce json
// @Param userId query string false "Filter by student"
// @Param month query int false "Filter by month"
// @Param year query int false "Filter by year"
// @Param received query bool false "Filter by receipt status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /allowances [get]
func (h *AllowanceHandler) List(c *gin.Context) {
	var filter models.AllowanceFilter
	filter.UserID = c.Query("userId")
	if month, err := strconv.Atoi(c.Query("month")); err == nil {
		filter.Month = month
	}
	if year, err := strconv.Atoi(c.Query("year")); err == nil {
		filter.Year = year
	}
	if received := c.Query("received"); received != "" {
		if val, err := strconv.ParseBool(received); err == nil {
			filter.Received = &val
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	allowances, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, allowances, pagination)
}

// BulkCreate godoc
// @Summary Grant a month's allowance to a group of students
// @Description Students already holding an allowance for the period are skipped and reported
// @Tags Allowances
// @Accept json
// @Produce json
// @Param payload body service.BulkAllowanceRequest true "Bulk grant payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /allowances/bulk [post]
func (h *AllowanceHandler) BulkCreate(c *gin.Context) {
	var req service.BulkAllowanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.BulkCreate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result, nil)
}

// Update godoc
// @Summary Update an allowance
// @Description Toggle receipt status or amend amount and notes
// @Tags Allowances
// @Accept json
// @Produce json
// @Param id path string true "Allowance ID"
// @Param payload body service.UpdateAllowanceRequest true "Allowance payload"
// @Success 200 {object} response.Envelope
// @Router /allowances/{id} [put]
func (h *AllowanceHandler) Update(c *gin.Context) {
	var req service.UpdateAllowanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	allowance, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, allowance, nil)
}
