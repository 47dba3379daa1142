package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-schedule-api/internal/service"
	"github.com/noah-isme/academy-schedule-api/pkg/response"
)

type kioskService interface {
	CheckInByPhone(ctx context.Context, req service.KioskCheckInRequest, now time.Time) (*service.CheckInResult, error)
}

// KioskHandler serves the lobby tablet where students type their phone number.
type KioskHandler struct {
	attendance kioskService
	now        clock
}

// NewKioskHandler constructs KioskHandler.
func NewKioskHandler(attendance kioskService) *KioskHandler {
	return &KioskHandler{attendance: attendance, now: time.Now}
}

// CheckIn godoc
// @Summary Check in by phone number
// @Description Marks the student's next pending lesson today as present and reports punctuality.
// @Tags Kiosk
// @Accept json
// @Produce json
// @Param payload body service.KioskCheckInRequest true "Phone number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /kiosk/check-in [post]
func (h *KioskHandler) CheckIn(c *gin.Context) {
	var req service.KioskCheckInRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.attendance.CheckInByPhone(c.Request.Context(), req, h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusOK, result, result.Warnings)
}
