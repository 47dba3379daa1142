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

type fixedScheduleRepository interface {
	List(ctx context.Context, filter models.FixedScheduleFilter) ([]models.FixedSchedule, error)
	FindByID(ctx context.Context, id string) (*models.FixedSchedule, error)
	Create(ctx context.Context, schedule *models.FixedSchedule) error
	Update(ctx context.Context, schedule *models.FixedSchedule) error
	Delete(ctx context.Context, id string) error
}

// FixedScheduleRequest is the payload for creating or editing a fixed schedule.
type FixedScheduleRequest struct {
	Teacher string `json:"teacher" validate:"required"`
	Weekday string `json:"weekday" validate:"required,weekday"`
	Time    string `json:"time" validate:"required,slot"`
	Content string `json:"content" validate:"required"`
}

// FixedScheduleService manages teachers' recurring non-lesson commitments.
type FixedScheduleService struct {
	repo      fixedScheduleRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFixedScheduleService builds the service.
func NewFixedScheduleService(repo fixedScheduleRepository, validate *validator.Validate, logger *zap.Logger) *FixedScheduleService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FixedScheduleService{repo: repo, validator: validate, logger: logger}
}

// List returns fixed schedules, optionally for one teacher and weekday.
func (s *FixedScheduleService) List(ctx context.Context, filter models.FixedScheduleFilter) ([]models.FixedSchedule, error) {
	if filter.Weekday != "" {
		day, ok := schedule.ParseWeekday(filter.Weekday)
		if !ok {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "unknown weekday"), "field", "weekday", "value", filter.Weekday)
		}
		filter.Weekday = schedule.WeekdayToken(day)
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fixed schedules")
	}
	if items == nil {
		items = []models.FixedSchedule{}
	}
	return items, nil
}

// Create stores a fixed schedule.
func (s *FixedScheduleService) Create(ctx context.Context, req FixedScheduleRequest) (*models.FixedSchedule, error) {
	item, err := s.build(req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fixed schedule")
	}
	return item, nil
}

// Update edits a fixed schedule.
func (s *FixedScheduleService) Update(ctx context.Context, id string, req FixedScheduleRequest) (*models.FixedSchedule, error) {
	item, err := s.build(req)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(err, id)
	}
	item.ID = existing.ID
	item.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, s.lookupError(err, id)
	}
	return item, nil
}

// Delete removes a fixed schedule.
func (s *FixedScheduleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.lookupError(err, id)
	}
	return nil
}

func (s *FixedScheduleService) build(req FixedScheduleRequest) (*models.FixedSchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fixed schedule payload")
	}
	day, ok := schedule.ParseWeekday(req.Weekday)
	if !ok {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "unknown weekday"), "field", "weekday", "value", req.Weekday)
	}
	slot := strings.TrimSpace(req.Time)
	if !schedule.ValidSlot(day, slot) {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "time is not a slot on that weekday"), "field", "time", "value", slot)
	}
	return &models.FixedSchedule{
		Teacher: strings.TrimSpace(req.Teacher),
		Weekday: schedule.WeekdayToken(day),
		Time:    slot,
		Content: strings.TrimSpace(req.Content),
	}, nil
}

func (s *FixedScheduleService) lookupError(err error, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "fixed schedule not found"), "fixed_schedule_id", id)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fixed schedule")
}
