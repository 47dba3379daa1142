package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-schedule-api/internal/models"
	"github.com/noah-isme/academy-schedule-api/internal/schedule"
	appErrors "github.com/noah-isme/academy-schedule-api/pkg/errors"
)

const maxBoardSpan = 31 * 24 * time.Hour

// BoardQuery selects a teacher's lessons for a day or a short range.
type BoardQuery struct {
	Teacher string
	Date    string
	From    string
	To      string
	Types   []string
}

// ArtifactRequest creates a memo or task entry in a teacher's slot.
type ArtifactRequest struct {
	Teacher string `json:"teacher" validate:"required"`
	Date    string `json:"date" validate:"required,ymd"`
	Time    string `json:"time" validate:"required,slot"`
	Type    string `json:"type" validate:"required,oneof=memo task"`
	Memo    string `json:"memo" validate:"required,max=2000"`
}

// MemoRequest replaces the memo text of a lesson. An empty memo clears it.
type MemoRequest struct {
	Memo string `json:"memo" validate:"max=2000"`
}

// Board is a teacher's lessons grouped for display.
type Board struct {
	Teacher string                `json:"teacher,omitempty"`
	From    string                `json:"from"`
	To      string                `json:"to"`
	Lessons []models.LessonRecord `json:"lessons"`
}

// BoardService serves the teacher console's day and week boards and its slot artifacts.
type BoardService struct {
	lessons   *LessonStore
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
}

// NewBoardService constructs the board service.
func NewBoardService(lessons *LessonStore, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *BoardService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &BoardService{lessons: lessons, validator: validate, logger: logger, location: loc}
}

// Board returns the lessons for a single date, or for from..to when a range is given.
// Without any date the board for today in the academy timezone is returned.
func (s *BoardService) Board(ctx context.Context, query BoardQuery) (*Board, error) {
	from, to, err := s.resolveRange(query)
	if err != nil {
		return nil, err
	}
	types, err := parseLessonTypes(query.Types)
	if err != nil {
		return nil, err
	}
	teacher := strings.TrimSpace(query.Teacher)
	lessons, err := s.lessons.ListForDateRange(ctx, teacher, from, to, types)
	if err != nil {
		return nil, err
	}
	return &Board{
		Teacher: teacher,
		From:    from.Format(schedule.DateLayout),
		To:      to.Format(schedule.DateLayout),
		Lessons: lessons,
	}, nil
}

// CreateArtifact adds a memo or task to the teacher's slot.
func (s *BoardService) CreateArtifact(ctx context.Context, req ArtifactRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid entry payload")
	}
	date, _ := schedule.ParseDate(req.Date)
	slot := strings.TrimSpace(req.Time)
	if !schedule.ValidSlot(date.Weekday(), slot) {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "slot is not offered on that day"), "field", "time", "value", slot, "date", req.Date)
	}
	teacher := strings.TrimSpace(req.Teacher)
	memo := strings.TrimSpace(req.Memo)
	artifact := &models.Lesson{
		Teacher: &teacher,
		Date:    date,
		Time:    slot,
		Type:    models.LessonType(req.Type),
		Memo:    &memo,
	}
	if err := s.lessons.CreateArtifact(ctx, artifact); err != nil {
		return nil, err
	}
	return artifact, nil
}

// UpdateMemo edits the memo of any lesson row.
func (s *BoardService) UpdateMemo(ctx context.Context, lessonID string, req MemoRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid memo payload")
	}
	var memo *string
	if text := strings.TrimSpace(req.Memo); text != "" {
		memo = &text
	}
	return s.lessons.UpdateMemo(ctx, lessonID, memo)
}

// Delete removes an artifact or an unlinked makeup.
func (s *BoardService) Delete(ctx context.Context, lessonID string) error {
	return s.lessons.Delete(ctx, lessonID)
}

func (s *BoardService) resolveRange(query BoardQuery) (time.Time, time.Time, error) {
	if query.From == "" && query.To == "" {
		if query.Date == "" {
			today := schedule.DateOf(time.Now().In(s.location))
			return today, today, nil
		}
		date, err := parseDateField("date", query.Date)
		return date, date, err
	}
	from, err := parseDateField("from", query.From)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to := from
	if query.To != "" {
		if to, err = parseDateField("to", query.To); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if to.Sub(from) > maxBoardSpan {
		return time.Time{}, time.Time{}, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "board range is limited to 31 days"), "from", query.From, "to", query.To)
	}
	return from, to, nil
}

func parseDateField(field, value string) (time.Time, error) {
	date, err := schedule.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD"), "field", field, "value", value)
	}
	return date, nil
}

func parseLessonTypes(raw []string) ([]models.LessonType, error) {
	var types []models.LessonType
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t := models.LessonType(part)
			if !t.Valid() {
				return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "unknown lesson type"), "field", "type", "value", part)
			}
			types = append(types, t)
		}
	}
	return types, nil
}
