package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-schedule-api/internal/schedule"
	appErrors "github.com/noah-isme/academy-schedule-api/pkg/errors"
	"github.com/noah-isme/academy-schedule-api/pkg/response"
)

// SlotCatalog lists the bookable slots for one weekday.
type SlotCatalog struct {
	Date    string   `json:"date,omitempty"`
	Weekday string   `json:"weekday"`
	Slots   []string `json:"slots"`
}

// CatalogHandler exposes the fixed slot grid.
type CatalogHandler struct {
	location *time.Location
	now      clock
}

// NewCatalogHandler constructs CatalogHandler. Dates default to today in loc.
func NewCatalogHandler(loc *time.Location) *CatalogHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &CatalogHandler{location: loc, now: time.Now}
}

// Slots godoc
// @Summary List slots for a date or weekday
// @Tags Catalog
// @Produce json
// @Param date query string false "YYYY-MM-DD"
// @Param weekday query string false "Mon..Sat or 월..토"
// @Success 200 {object} response.Envelope
// @Router /catalog/slots [get]
func (h *CatalogHandler) Slots(c *gin.Context) {
	out := SlotCatalog{}
	var day time.Weekday
	switch {
	case strings.TrimSpace(c.Query("weekday")) != "":
		parsed, ok := schedule.ParseWeekday(c.Query("weekday"))
		if !ok {
			response.Error(c, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "unknown weekday"), "field", "weekday", "value", c.Query("weekday")))
			return
		}
		day = parsed
	case c.Query("date") != "":
		date, err := schedule.ParseDate(c.Query("date"))
		if err != nil {
			response.Error(c, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD"), "field", "date", "value", c.Query("date")))
			return
		}
		out.Date = date.Format(schedule.DateLayout)
		day = date.Weekday()
	default:
		today := schedule.DateOf(h.now().In(h.location))
		out.Date = today.Format(schedule.DateLayout)
		day = today.Weekday()
	}
	out.Weekday = schedule.WeekdayToken(day)
	out.Slots = schedule.SlotsFor(day)
	if out.Slots == nil {
		out.Slots = []string{}
	}
	response.JSON(c, http.StatusOK, out, nil)
}
