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

// FitnessHandler exposes fitness test, session and record endpoints.
type FitnessHandler struct {
	service *service.FitnessService
	metrics *service.MetricsService
}

// NewFitnessHandler constructs a fitness handler.
func NewFitnessHandler(svc *service.FitnessService, metrics *service.MetricsService) *FitnessHandler {
	return &FitnessHandler{service: svc, metrics: metrics}
}

// ListTests godoc
// @Summary List fitness tests
// @Tags Fitness
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /fitness/tests [get]
func (h *FitnessHandler) ListTests(c *gin.Context) {
	tests, err := h.service.ListTests(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tests, nil)
}

// GetTest godoc
// @Summary Get fitness test
// @Tags Fitness
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} response.Envelope
// @Router /fitness/tests/{id} [get]
func (h *FitnessHandler) GetTest(c *gin.Context) {
	test, err := h.service.GetTest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, test, nil)
}

// CreateTest godoc
// @Summary Create fitness test
// @Description Create a fitness test with its rating thresholds
// @Tags Fitness
// @Accept json
// @Produce json
// @Param payload body service.CreateFitnessTestRequest true "Test payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /fitness/tests [post]
func (h *FitnessHandler) CreateTest(c *gin.Context) {
	var req service.CreateFitnessTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	test, err := h.service.CreateTest(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, test)
}

// UpdateTest godoc
// @Summary Update fitness test
// @Tags Fitness
// @Accept json
// @Produce json
// @Param id path string true "Test ID"
// @Param payload body service.UpdateFitnessTestRequest true "Test payload"
// @Success 200 {object} response.Envelope
// @Router /fitness/tests/{id} [put]
func (h *FitnessHandler) UpdateTest(c *gin.Context) {
	var req service.UpdateFitnessTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	test, err := h.service.UpdateTest(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, test, nil)
}

// DeleteTest godoc
// @Summary Delete fitness test
// @Tags Fitness
// @Produce json
// @Param id path string true "Test ID"
// @Success 204
// @Router /fitness/tests/{id} [delete]
func (h *FitnessHandler) DeleteTest(c *gin.Context) {
	if err := h.service.DeleteTest(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListSessions godoc
// @Summary List assessment sessions
// @Tags Fitness
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /fitness/sessions [get]
func (h *FitnessHandler) ListSessions(c *gin.Context) {
	sessions, err := h.service.ListSessions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// CurrentWeekSession godoc
// @Summary Get or create the current week's session
// @Description Returns the session covering the current ISO week, creating it on first use
// @Tags Fitness
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /fitness/sessions/current [get]
func (h *FitnessHandler) CurrentWeekSession(c *gin.Context) {
	session, err := h.service.CurrentWeekSession(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// ListRecords godoc
// @Summary List fitness records
// @Tags Fitness
// @Produce json
// @Param userId query string false "Filter by student"
// @Param testId query string false "Filter by test"
// @Param sessionId query string false "Filter by session"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /fitness/records [get]
func (h *FitnessHandler) ListRecords(c *gin.Context) {
	var filter models.FitnessRecordFilter
	filter.UserID = c.Query("userId")
	filter.TestID = c.Query("testId")
	filter.SessionID = c.Query("sessionId")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	records, pagination, err := h.service.ListRecords(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// RecordAssessment godoc
// @Summary Record a fitness assessment
// @Description Record one student's performance; the rating is derived from the test thresholds
// @Tags Fitness
// @Accept json
// @Produce json
// @Param payload body service.RecordAssessmentRequest true "Assessment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /fitness/records [post]
func (h *FitnessHandler) RecordAssessment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.RecordAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.service.RecordAssessment(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.AddFitnessRecords(1)
	}
	response.Created(c, record)
}

// BatchRecordAssessments godoc
// @Summary Record a batch of fitness assessments
// @Description Record performances for several students at once; the batch succeeds or fails as a whole
// @Tags Fitness
// @Accept json
// @Produce json
// @Param payload body service.BatchAssessmentRequest true "Batch payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /fitness/records/batch [post]
func (h *FitnessHandler) BatchRecordAssessments(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.BatchAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	results, err := h.service.BatchRecordAssessments(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.AddFitnessRecords(len(results))
	}
	response.JSON(c, http.StatusCreated, results, nil)
}

// DeleteRecord godoc
// @Summary Delete a fitness record
// @Tags Fitness
// @Produce json
// @Param id path string true "Record ID"
// @Success 204
// @Router /fitness/records/{id} [delete]
func (h *FitnessHandler) DeleteRecord(c *gin.Context) {
	if err := h.service.DeleteRecord(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
