package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-schedule-api/internal/models"
	"github.com/noah-isme/academy-schedule-api/internal/schedule"
	"github.com/noah-isme/academy-schedule-api/internal/service"
	appErrors "github.com/noah-isme/academy-schedule-api/pkg/errors"
	"github.com/noah-isme/academy-schedule-api/pkg/response"
)

const defaultLessonWindow = 30

type studentService interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Student, error)
	Lessons(ctx context.Context, id string, from, to time.Time) ([]models.LessonRecord, error)
	Register(ctx context.Context, req service.StudentRequest) (*service.StudentResult, error)
	Update(ctx context.Context, id string, req service.StudentRequest) (*service.StudentResult, error)
	Withdraw(ctx context.Context, id string, req service.WithdrawRequest) (*service.StudentResult, error)
	Purge(ctx context.Context, id string) error
}

type studentCheckIn interface {
	CheckInStudentToday(ctx context.Context, studentID string, now time.Time) (*service.CheckInResult, error)
}

// StudentHandler exposes the roster and the student-level console actions.
type StudentHandler struct {
	students   studentService
	attendance studentCheckIn
	location   *time.Location
	logger     *zap.Logger
	now        clock
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService, attendance studentCheckIn, loc *time.Location, logger *zap.Logger) *StudentHandler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentHandler{students: students, attendance: attendance, location: loc, logger: logger, now: time.Now}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Name, school or phone"
// @Param teacher query string false "Teacher"
// @Param active query bool false "Only active (true) or withdrawn (false)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "name, teacher, enrolled_on, created_at"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	filter := models.StudentFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		Teacher:   strings.TrimSpace(c.Query("teacher")),
		Active:    queryBool(c, "active"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "limit", 50),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	students, pagination, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Create godoc
// @Summary Register a student
// @Description Creates the student and materializes lessons from the enrollment date.
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.StudentRequest true "Student"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 500 {object} response.Envelope "Partial materialization, retry queued"
// @Security BearerAuth
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req service.StudentRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.students.Register(c.Request.Context(), req)
	if err != nil {
		h.partialOrError(c, result, err)
		return
	}
	h.logger.Info("student created", staffField(c), zap.String("student_id", result.Student.ID), zap.Int("lessons", result.LessonsWritten))
	response.Created(c, result)
}

// Update godoc
// @Summary Update a student
// @Description Pattern changes regenerate generated lessons from effective_from onward.
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.StudentRequest true "Student"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req service.StudentRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.students.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.partialOrError(c, result, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Withdraw godoc
// @Summary Withdraw a student
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.WithdrawRequest true "Withdrawal date"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/withdraw [post]
func (h *StudentHandler) Withdraw(c *gin.Context) {
	var req service.WithdrawRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.students.Withdraw(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("student withdrawn", staffField(c), zap.String("student_id", c.Param("id")), zap.Int("lessons_deleted", result.LessonsDeleted))
	response.JSON(c, http.StatusOK, result, nil)
}

// Purge godoc
// @Summary Permanently delete a withdrawn student and their lessons
// @Tags Students
// @Param id path string true "Student ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id} [delete]
func (h *StudentHandler) Purge(c *gin.Context) {
	if err := h.students.Purge(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("student purged", staffField(c), zap.String("student_id", c.Param("id")))
	response.NoContent(c)
}

// Lessons godoc
// @Summary List a student's lessons
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Param from query string false "YYYY-MM-DD, defaults to today"
// @Param to query string false "YYYY-MM-DD, defaults to 30 days after from"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/lessons [get]
func (h *StudentHandler) Lessons(c *gin.Context) {
	from := schedule.DateOf(h.now().In(h.location))
	if raw := c.Query("from"); raw != "" {
		parsed, err := schedule.ParseDate(raw)
		if err != nil {
			response.Error(c, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD"), "field", "from", "value", raw))
			return
		}
		from = parsed
	}
	to := from.AddDate(0, 0, defaultLessonWindow)
	if raw := c.Query("to"); raw != "" {
		parsed, err := schedule.ParseDate(raw)
		if err != nil {
			response.Error(c, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD"), "field", "to", "value", raw))
			return
		}
		to = parsed
	}
	if to.Before(from) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must not be before from"))
		return
	}
	lessons, err := h.students.Lessons(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	if lessons == nil {
		lessons = []models.LessonRecord{}
	}
	response.JSON(c, http.StatusOK, lessons, nil, map[string]interface{}{
		"from": from.Format(schedule.DateLayout),
		"to":   to.Format(schedule.DateLayout),
	})
}

// CheckIn godoc
// @Summary Check in every pending one-to-one and reading lesson of the student today
// @Tags Attendance
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/check-in [post]
func (h *StudentHandler) CheckIn(c *gin.Context) {
	result, err := h.attendance.CheckInStudentToday(c.Request.Context(), c.Param("id"), h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusOK, result, result.Warnings)
}

// partialOrError keeps the saved student in the body when materialization stopped part way.
func (h *StudentHandler) partialOrError(c *gin.Context, result *service.StudentResult, err error) {
	if result == nil || !appErrors.Is(err, appErrors.ErrPartialFailure) {
		response.Error(c, err)
		return
	}
	appErr := appErrors.FromError(err)
	h.logger.Warn("lesson materialization incomplete", staffField(c), zap.String("student_id", result.Student.ID), zap.Any("details", appErr.Details))
	_ = c.Error(err)
	c.Header("Cache-Control", "no-store")
	c.JSON(appErr.Status, response.Envelope{Data: result, Error: appErr})
}
