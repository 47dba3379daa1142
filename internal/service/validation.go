package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/academy-schedule-api/internal/models"
	"github.com/noah-isme/academy-schedule-api/internal/schedule"
)

// NewValidator returns a validator with the scheduling tags registered:
// hhmm (24-hour clock), slot (catalog slot), weekday (English or Korean token),
// ymd (calendar date) and lesson_type.
func NewValidator() *validator.Validate {
	v := validator.New()
	registerScheduleValidations(v)
	return v
}

func registerScheduleValidations(v *validator.Validate) {
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, _, err := schedule.ParseClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("slot", func(fl validator.FieldLevel) bool {
		return schedule.KnownSlot(fl.Field().String())
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, ok := schedule.ParseWeekday(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
		_, err := schedule.ParseDate(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("lesson_type", func(fl validator.FieldLevel) bool {
		return models.LessonType(fl.Field().String()).Valid()
	})
}
