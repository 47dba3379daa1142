package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-schedule-api/internal/models"
	"github.com/noah-isme/academy-schedule-api/internal/service"
	"github.com/noah-isme/academy-schedule-api/pkg/response"
)

type fixedScheduleService interface {
	List(ctx context.Context, filter models.FixedScheduleFilter) ([]models.FixedSchedule, error)
	Create(ctx context.Context, req service.FixedScheduleRequest) (*models.FixedSchedule, error)
	Update(ctx context.Context, id string, req service.FixedScheduleRequest) (*models.FixedSchedule, error)
	Delete(ctx context.Context, id string) error
}

// FixedScheduleHandler manages the teachers' standing weekly commitments.
type FixedScheduleHandler struct {
	service fixedScheduleService
}

// NewFixedScheduleHandler constructs FixedScheduleHandler.
func NewFixedScheduleHandler(svc fixedScheduleService) *FixedScheduleHandler {
	return &FixedScheduleHandler{service: svc}
}

// List godoc
// @Summary List fixed schedules
// @Tags FixedSchedules
// @Produce json
// @Param teacher query string false "Teacher"
// @Param weekday query string false "Weekday"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fixed-schedules [get]
func (h *FixedScheduleHandler) List(c *gin.Context) {
	filter := models.FixedScheduleFilter{Teacher: c.Query("teacher"), Weekday: c.Query("weekday")}
	items, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Create godoc
// @Summary Create fixed schedule
// @Tags FixedSchedules
// @Accept json
// @Produce json
// @Param payload body service.FixedScheduleRequest true "Fixed schedule"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /fixed-schedules [post]
func (h *FixedScheduleHandler) Create(c *gin.Context) {
	var req service.FixedScheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update fixed schedule
// @Tags FixedSchedules
// @Accept json
// @Produce json
// @Param id path string true "Fixed schedule ID"
// @Param payload body service.FixedScheduleRequest true "Fixed schedule"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fixed-schedules/{id} [put]
func (h *FixedScheduleHandler) Update(c *gin.Context) {
	var req service.FixedScheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete fixed schedule
// @Tags FixedSchedules
// @Param id path string true "Fixed schedule ID"
// @Success 204
// @Security BearerAuth
// @Router /fixed-schedules/{id} [delete]
func (h *FixedScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
