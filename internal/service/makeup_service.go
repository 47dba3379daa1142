package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-schedule-api/internal/models"
	"github.com/noah-isme/academy-schedule-api/internal/schedule"
	appErrors "github.com/noah-isme/academy-schedule-api/pkg/errors"
)

// MakeupRequest describes the replacement session offered when recording an absence.
type MakeupRequest struct {
	Date     string  `json:"date" validate:"required,ymd"`
	TestTime *string `json:"test_time" validate:"omitempty,hhmm"`
	Time     string  `json:"time" validate:"required,slot"`
}

// MarkAbsentRequest is the console payload for recording an absence.
type MarkAbsentRequest struct {
	Reason string         `json:"reason"`
	Makeup *MakeupRequest `json:"makeup" validate:"omitempty"`
}

// AbsenceResult reports the absence and, when requested, the makeup outcome.
type AbsenceResult struct {
	Lesson   *models.Lesson     `json:"lesson"`
	Makeup   *models.Lesson     `json:"makeup,omitempty"`
	Warnings []*appErrors.Error `json:"-"`
}

// ResetResult reports the lesson after reset and whether a makeup row was removed.
type ResetResult struct {
	Lesson        *models.Lesson `json:"lesson"`
	MakeupDeleted bool           `json:"makeup_deleted"`
}

// MakeupService coordinates absences, makeup links, and resets.
type MakeupService struct {
	lessons   *LessonStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMakeupService constructs the coordinator.
func NewMakeupService(lessons *LessonStore, validate *validator.Validate, logger *zap.Logger) *MakeupService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MakeupService{lessons: lessons, validator: validate, logger: logger}
}

// MarkAbsent records the absence unconditionally, then tries to link the requested makeup. A makeup
// that cannot be placed is returned as a warning; the absence stays recorded.
func (s *MakeupService) MarkAbsent(ctx context.Context, lessonID string, req MarkAbsentRequest) (*AbsenceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid absence payload")
	}
	lesson, err := s.lessons.Get(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.Type.Artifact() || lesson.StudentID == nil {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "memo and task entries have no attendance"), "lesson_id", lessonID)
	}
	if lesson.Status == models.LessonStatusPresent {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrAlreadyProcessed, "lesson is already checked in; reset it first"), "lesson_id", lessonID)
	}

	var draft *models.MakeupDraft
	if req.Makeup != nil {
		if lesson.Type == models.LessonTypeMakeup {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "a makeup lesson cannot receive another makeup"), "lesson_id", lessonID)
		}
		parsed, err := parseMakeup(*req.Makeup)
		if err != nil {
			return nil, err
		}
		draft = &parsed
	}

	updated, err := s.lessons.UpsertAbsence(ctx, lessonID, strings.TrimSpace(req.Reason))
	if err != nil {
		return nil, err
	}
	result := &AbsenceResult{Lesson: updated}
	if draft == nil {
		return result, nil
	}

	makeup, err := s.lessons.LinkMakeup(ctx, lessonID, *draft)
	if err != nil {
		appErr := appErrors.FromError(err)
		if !appErrors.Is(err, appErrors.ErrConflict) {
			return nil, err
		}
		s.logger.Info("makeup slot taken, absence kept", zap.String("lesson_id", lessonID), zap.Any("details", appErr.Details))
		result.Warnings = append(result.Warnings, appErr)
		return result, nil
	}
	result.Makeup = makeup
	if refreshed, err := s.lessons.Get(ctx, lessonID); err == nil {
		result.Lesson = refreshed
	}
	return result, nil
}

// Reset returns the lesson to unset, removing the linked makeup row if any.
func (s *MakeupService) Reset(ctx context.Context, lessonID string) (*ResetResult, error) {
	lesson, deleted, err := s.lessons.ResetAttendance(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	return &ResetResult{Lesson: lesson, MakeupDeleted: deleted}, nil
}

// Link resolves both ends of an absence/makeup relation starting from either lesson and reports
// whether the forward and backward references agree.
func (s *MakeupService) Link(ctx context.Context, lessonID string) (*models.LessonLink, error) {
	lesson, err := s.lessons.Get(ctx, lessonID)
	if err != nil {
		return nil, err
	}

	link := &models.LessonLink{}
	switch {
	case lesson.Type == models.LessonTypeMakeup:
		link.Makeup = lesson
		if lesson.OriginalLessonID != nil {
			if link.Original, err = s.optionalLesson(ctx, *lesson.OriginalLessonID); err != nil {
				return nil, err
			}
		}
	case lesson.MakeupLessonID != nil:
		link.Original = lesson
		if link.Makeup, err = s.optionalLesson(ctx, *lesson.MakeupLessonID); err != nil {
			return nil, err
		}
	default:
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "lesson has no makeup link"), "lesson_id", lessonID)
	}

	link.Consistent = link.Original != nil && link.Makeup != nil &&
		link.Original.MakeupLessonID != nil && *link.Original.MakeupLessonID == link.Makeup.ID &&
		link.Makeup.OriginalLessonID != nil && *link.Makeup.OriginalLessonID == link.Original.ID
	if !link.Consistent {
		s.logger.Warn("inconsistent makeup link", zap.String("lesson_id", lessonID))
	}
	return link, nil
}

func (s *MakeupService) optionalLesson(ctx context.Context, id string) (*models.Lesson, error) {
	lesson, err := s.lessons.Get(ctx, id)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrNotFound) || errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return lesson, nil
}

func parseMakeup(req MakeupRequest) (models.MakeupDraft, error) {
	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		return models.MakeupDraft{}, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid makeup date, expected YYYY-MM-DD"), "field", "makeup.date", "value", req.Date)
	}
	draft := models.MakeupDraft{Date: date, Time: strings.TrimSpace(req.Time)}
	if req.TestTime != nil && strings.TrimSpace(*req.TestTime) != "" {
		testTime := strings.TrimSpace(*req.TestTime)
		draft.TestTime = &testTime
	}
	return draft, validateMakeupDraft(draft)
}
