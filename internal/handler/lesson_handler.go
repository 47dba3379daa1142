package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-schedule-api/internal/models"
	"github.com/noah-isme/academy-schedule-api/internal/service"
	"github.com/noah-isme/academy-schedule-api/pkg/response"
)

type boardService interface {
	Board(ctx context.Context, query service.BoardQuery) (*service.Board, error)
	CreateArtifact(ctx context.Context, req service.ArtifactRequest) (*models.Lesson, error)
	UpdateMemo(ctx context.Context, lessonID string, req service.MemoRequest) (*models.Lesson, error)
	Delete(ctx context.Context, lessonID string) error
}

type daySheetExporter interface {
	DaySheet(ctx context.Context, query service.BoardQuery, format string) (*service.ExportResult, error)
}

type lessonCheckIn interface {
	CheckInLesson(ctx context.Context, lessonID string, now time.Time) (*service.CheckInResult, error)
}

type makeupCoordinator interface {
	MarkAbsent(ctx context.Context, lessonID string, req service.MarkAbsentRequest) (*service.AbsenceResult, error)
	Reset(ctx context.Context, lessonID string) (*service.ResetResult, error)
	Link(ctx context.Context, lessonID string) (*models.LessonLink, error)
}

// LessonHandler serves the teacher console board and per-lesson attendance actions.
type LessonHandler struct {
	boards     boardService
	exports    daySheetExporter
	attendance lessonCheckIn
	makeups    makeupCoordinator
	logger     *zap.Logger
	now        clock
}

// NewLessonHandler constructs LessonHandler.
func NewLessonHandler(boards boardService, exports daySheetExporter, attendance lessonCheckIn, makeups makeupCoordinator, logger *zap.Logger) *LessonHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonHandler{boards: boards, exports: exports, attendance: attendance, makeups: makeups, logger: logger, now: time.Now}
}

func boardQuery(c *gin.Context) service.BoardQuery {
	query := service.BoardQuery{
		Teacher: strings.TrimSpace(c.Query("teacher")),
		Date:    strings.TrimSpace(c.Query("date")),
		From:    strings.TrimSpace(c.Query("from")),
		To:      strings.TrimSpace(c.Query("to")),
	}
	for _, raw := range c.QueryArray("type") {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				query.Types = append(query.Types, part)
			}
		}
	}
	return query
}

// Board godoc
// @Summary Teacher board
// @Description Lists a teacher's lessons for a day (date) or a range of up to 31 days (from/to).
// @Tags Lessons
// @Produce json
// @Param teacher query string false "Teacher name"
// @Param date query string false "YYYY-MM-DD"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Param type query string false "Comma separated lesson types"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons [get]
func (h *LessonHandler) Board(c *gin.Context) {
	board, err := h.boards.Board(c.Request.Context(), boardQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, board, nil)
}

// Export godoc
// @Summary Export the board as a day sheet
// @Tags Lessons
// @Produce octet-stream
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /lessons/export [get]
func (h *LessonHandler) Export(c *gin.Context) {
	result, err := h.exports.DaySheet(c.Request.Context(), boardQuery(c), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("day sheet exported", staffField(c), zap.String("file", result.Filename), zap.Int("rows", result.Rows))
	response.Attachment(c, result.ContentType, result.Filename, result.Body)
}

// CreateArtifact godoc
// @Summary Add a memo or task to a slot
// @Tags Lessons
// @Accept json
// @Produce json
// @Param payload body service.ArtifactRequest true "Artifact"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/artifacts [post]
func (h *LessonHandler) CreateArtifact(c *gin.Context) {
	var req service.ArtifactRequest
	if !bindJSON(c, &req) {
		return
	}
	lesson, err := h.boards.CreateArtifact(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// UpdateMemo godoc
// @Summary Replace the memo of a lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body service.MemoRequest true "Memo"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id}/memo [put]
func (h *LessonHandler) UpdateMemo(c *gin.Context) {
	var req service.MemoRequest
	if !bindJSON(c, &req) {
		return
	}
	lesson, err := h.boards.UpdateMemo(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Delete godoc
// @Summary Delete an ad-hoc lesson or artifact
// @Tags Lessons
// @Param id path string true "Lesson ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id} [delete]
func (h *LessonHandler) Delete(c *gin.Context) {
	if err := h.boards.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("lesson deleted", staffField(c), zap.String("lesson_id", c.Param("id")))
	response.NoContent(c)
}

// CheckIn godoc
// @Summary Check in a single lesson from the console
// @Tags Attendance
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id}/check-in [post]
func (h *LessonHandler) CheckIn(c *gin.Context) {
	result, err := h.attendance.CheckInLesson(c.Request.Context(), c.Param("id"), h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusOK, result, result.Warnings)
}

// MarkAbsent godoc
// @Summary Record an absence, optionally booking a makeup
// @Description The absence is always kept. A makeup that cannot be placed is reported under warnings.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body service.MarkAbsentRequest true "Absence"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id}/absence [post]
func (h *LessonHandler) MarkAbsent(c *gin.Context) {
	var req service.MarkAbsentRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.makeups.MarkAbsent(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusOK, result, result.Warnings)
}

// Reset godoc
// @Summary Reset attendance
// @Tags Attendance
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id}/reset [post]
func (h *LessonHandler) Reset(c *gin.Context) {
	result, err := h.makeups.Reset(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("lesson attendance reset", staffField(c), zap.String("lesson_id", c.Param("id")), zap.Bool("makeup_deleted", result.MakeupDeleted))
	response.JSON(c, http.StatusOK, result, nil)
}

// Link godoc
// @Summary Resolve the absence/makeup pair from either end
// @Tags Attendance
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id}/link [get]
func (h *LessonHandler) Link(c *gin.Context) {
	link, err := h.makeups.Link(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}
