package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/khaind/macad-api/internal/service"
	appErrors "github.com/khaind/macad-api/pkg/errors"
	"github.com/khaind/macad-api/pkg/response"
)

// EquipmentHandler exposes equipment type, distribution and receipt endpoints.
type EquipmentHandler struct {
	service *service.EquipmentService
}

// NewEquipmentHandler constructs an equipment handler.
func NewEquipmentHandler(svc *service.EquipmentService) *EquipmentHandler {
	return &EquipmentHandler{service: svc}
}

// ListTypes godoc
// @Summary List equipment types
// @Tags Equipment
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /equipment/types [get]
func (h *EquipmentHandler) ListTypes(c *gin.Context) {
	types, err := h.service.ListTypes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

// CreateType godoc
// @Summary Create equipment type
// @Tags Equipment
// @Accept json
// @Produce json
// @Param payload body service.CreateEquipmentTypeRequest true "Type payload"
// @Success 201 {object} response.Envelope
// @Router /equipment/types [post]
func (h *EquipmentHandler) CreateType(c *gin.Context) {
	var req service.CreateEquipmentTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	equipmentType, err := h.service.CreateType(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, equipmentType)
}

// ListDistributions godoc
// @Summary List distributions
// @Tags Equipment
// @Produce json
// @Param year query int false "Filter by year"
// @Success 200 {object} response.Envelope
// @Router /equipment/distributions [get]
func (h *EquipmentHandler) ListDistributions(c *gin.Context) {
	year := 0
	if raw := c.Query("year"); raw != "" {
		if val, err := strconv.Atoi(raw); err == nil {
			year = val
		}
	}
	distributions, err := h.service.ListDistributions(c.Request.Context(), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, distributions, nil)
}

// CreateDistribution godoc
// @Summary Create distribution
// @Description Allocate a yearly quantity of one equipment type
// @Tags Equipment
// @Accept json
// @Produce json
// @Param payload body service.CreateDistributionRequest true "Distribution payload"
// @Success 201 {object} response.Envelope
// @Router /equipment/distributions [post]
func (h *EquipmentHandler) CreateDistribution(c *gin.Context) {
	var req service.CreateDistributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	distribution, err := h.service.CreateDistribution(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, distribution)
}

// ListReceipts godoc
// @Summary List receipts of a distribution
// @Tags Equipment
// @Produce json
// @Param id path string true "Distribution ID"
// @Success 200 {object} response.Envelope
// @Router /equipment/distributions/{id}/receipts [get]
func (h *EquipmentHandler) ListReceipts(c *gin.Context) {
	receipts, err := h.service.ListReceipts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipts, nil)
}

// CreateReceipts godoc
// @Summary Issue receipts under a distribution
// @Description Issue receipts for a group of students, bounded by the distribution quantity
// @Tags Equipment
// @Accept json
// @Produce json
// @Param id path string true "Distribution ID"
// @Param payload body service.CreateReceiptsRequest true "Receipts payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /equipment/distributions/{id}/receipts [post]
func (h *EquipmentHandler) CreateReceipts(c *gin.Context) {
	var req service.CreateReceiptsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	receipts, err := h.service.CreateReceipts(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, receipts)
}

// UpdateReceipt godoc
// @Summary Update a receipt
// @Description Toggle the received flag or amend notes
// @Tags Equipment
// @Accept json
// @Produce json
// @Param id path string true "Receipt ID"
// @Param payload body service.UpdateReceiptRequest true "Receipt payload"
// @Success 200 {object} response.Envelope
// @Router /equipment/receipts/{id} [put]
func (h *EquipmentHandler) UpdateReceipt(c *gin.Context) {
	var req service.UpdateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	receipt, err := h.service.UpdateReceipt(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt, nil)
}
