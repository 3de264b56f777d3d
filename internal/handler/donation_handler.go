package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lifeshare/bloodlink-api/internal/service"
	appErrors "github.com/lifeshare/bloodlink-api/pkg/errors"
	"github.com/lifeshare/bloodlink-api/pkg/response"
)

// DonationHandler wires donation offer lifecycle operations to HTTP routes.
type DonationHandler struct {
	donations *service.DonationService
}

// NewDonationHandler constructs a new DonationHandler.
func NewDonationHandler(donations *service.DonationService) *DonationHandler {
	return &DonationHandler{donations: donations}
}

type offerRequest struct {
	RequestID string `json:"request_id" binding:"required"`
}

// Offer godoc
// @Summary Offer to donate for a pending request
// @Tags Donations
// @Accept json
// @Produce json
// @Param payload body offerRequest true "Offer payload"
// @Success 201 {object} response.Envelope
// @Router /donations [post]
func (h *DonationHandler) Offer(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req offerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return
	}
	donation, err := h.donations.Offer(c.Request.Context(), claims.UserID, req.RequestID, sessionID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, donation)
}

// ListMine godoc
// @Summary List the caller's donation offers with request summaries
// @Tags Donations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /donations [get]
func (h *DonationHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	donations, err := h.donations.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, donations, nil)
}

// Complete godoc
// @Summary Mark a pending offer completed and fulfill its request
// @Tags Donations
// @Produce json
// @Param id path string true "Donation ID"
// @Success 200 {object} response.Envelope
// @Router /donations/{id}/complete [post]
func (h *DonationHandler) Complete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.donations.Complete(c.Request.Context(), c.Param("id"), claims.UserID, sessionID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reject godoc
// @Summary Reject a pending offer (requester only)
// @Tags Donations
// @Produce json
// @Param id path string true "Donation ID"
// @Success 200 {object} response.Envelope
// @Router /donations/{id}/reject [post]
func (h *DonationHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	donation, err := h.donations.Reject(c.Request.Context(), c.Param("id"), claims.UserID, sessionID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, donation, nil)
}

// Withdraw godoc
// @Summary Withdraw a pending offer (donor only)
// @Tags Donations
// @Produce json
// @Param id path string true "Donation ID"
// @Success 200 {object} response.Envelope
// @Router /donations/{id}/withdraw [post]
func (h *DonationHandler) Withdraw(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	donation, err := h.donations.Withdraw(c.Request.Context(), c.Param("id"), claims.UserID, sessionID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, donation, nil)
}

// Export godoc
// @Summary Export the caller's donation history as CSV or PDF
// @Tags Donations
// @Produce application/octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Success 200
// @Router /donations/export [get]
func (h *DonationHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	format := c.DefaultQuery("format", "csv")
	data, contentType, err := h.donations.ExportMine(c.Request.Context(), claims.UserID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=donations.%s", format))
	c.Data(http.StatusOK, contentType, data)
}
