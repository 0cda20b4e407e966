package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/khaind/macad-api/internal/models"
	"github.com/khaind/macad-api/internal/service"
	appErrors "github.com/khaind/macad-api/pkg/errors"
	"github.com/khaind/macad-api/pkg/response"
)

// ViolationHandler exposes discipline violation endpoints.
type ViolationHandler struct {
	service *service.ViolationService
	metrics *service.MetricsService
}

// NewViolationHandler constructs a violation handler.
func NewViolationHandler(svc *service.ViolationService, metrics *service.MetricsService) *ViolationHandler {
	return &ViolationHandler{service: svc, metrics: metrics}
}

// List godoc
// @Summary List violations
// @Tags Violations
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param managerId query string false "Filter by recording manager"
// @Param from query string false "Filter from date (RFC3339)"
// @Param to query string false "Filter to date (RFC3339)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /violations [get]
func (h *ViolationHandler) List(c *gin.Context) {
	var filter models.ViolationFilter
	filter.StudentID = c.Query("studentId")
	filter.ManagerID = c.Query("managerId")
	if from := c.Query("from"); from != "" {
		if ts, err := time.Parse(time.RFC3339, from); err == nil {
			filter.DateFrom = &ts
		}
	}
	if to := c.Query("to"); to != "" {
		if ts, err := time.Parse(time.RFC3339, to); err == nil {
			filter.DateTo = &ts
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	violations, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, violations, pagination)
}

// Get godoc
// @Summary Get violation
// @Tags Violations
// @Produce json
// @Param id path string true "Violation ID"
// @Success 200 {object} response.Envelope
// @Router /violations/{id} [get]
func (h *ViolationHandler) Get(c *gin.Context) {
	violation, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, violation, nil)
}

// Create godoc
// @Summary Record a violation
// @Description Record a discipline violation attributed to the calling manager
// @Tags Violations
// @Accept json
// @Produce json
// @Param payload body service.CreateViolationRequest true "Violation payload"
// @Success 201 {object} response.Envelope
// @Router /violations [post]
func (h *ViolationHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateViolationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	violation, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncViolations()
	}
	response.Created(c, violation)
}

// Update godoc
// @Summary Update a violation
// @Description Amend a violation within its edit window; only the recording manager may do so
// @Tags Violations
// @Accept json
// @Produce json
// @Param id path string true "Violation ID"
// @Param payload body service.UpdateViolationRequest true "Violation payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /violations/{id} [put]
func (h *ViolationHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateViolationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	violation, err := h.service.Update(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, violation, nil)
}

// Delete godoc
// @Summary Delete a violation
// @Description Remove a violation within its edit window; only the recording manager may do so
// @Tags Violations
// @Produce json
// @Param id path string true "Violation ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /violations/{id} [delete]
func (h *ViolationHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
