package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-schedule-api/internal/models"
)

func TestParsePatternValid(t *testing.T) {
	pattern, err := ParsePattern(RawPattern{
		OneToOneDay:       "화",
		OneToOneTestTime:  "16:00",
		OneToOneClassTime: "16:40-17:20",
		ReadingDays:       map[string]string{"Thu": "18:00-18:40", "Fri": ""},
	})
	require.NoError(t, err)
	require.NotNil(t, pattern.OneToOne)
	assert.Equal(t, time.Tuesday, pattern.OneToOne.Weekday)
	assert.Equal(t, map[time.Weekday]string{time.Thursday: "18:00-18:40"}, pattern.Reading)
}

func TestParsePatternRejects(t *testing.T) {
	cases := map[string]RawPattern{
		"one_day":          {OneToOneDay: "Someday", OneToOneTestTime: "16:00", OneToOneClassTime: "16:40-17:20"},
		"one_test_time":    {OneToOneDay: "Tue", OneToOneTestTime: "4pm", OneToOneClassTime: "16:40-17:20"},
		"one_class_time":   {OneToOneDay: "Sat", OneToOneTestTime: "16:00", OneToOneClassTime: "21:20-22:00"},
		"reading_days":     {ReadingDays: map[string]string{"Noday": "16:00-16:40"}},
		"reading_days.Sun": {ReadingDays: map[string]string{"Sun": "16:00-16:40"}},
		"reading_days.Tue": {OneToOneDay: "Tue", OneToOneTestTime: "16:00", OneToOneClassTime: "16:40-17:20", ReadingDays: map[string]string{"Tue": "16:40-17:20"}},
	}
	for field, raw := range cases {
		_, err := ParsePattern(raw)
		var fieldErr *FieldError
		require.True(t, errors.As(err, &fieldErr), field)
		assert.Equal(t, field, fieldErr.Field)
	}
}

func TestApplyPatternRoundTrip(t *testing.T) {
	pattern := models.RecurringPattern{
		OneToOne: &models.OneToOneSlot{Weekday: time.Wednesday, TestTime: "17:00", ClassTime: "17:20-18:00"},
		Reading:  map[time.Weekday]string{time.Monday: "16:00-16:40"},
	}
	var student models.Student
	ApplyPattern(&student, pattern)

	assert.Equal(t, "Wed", student.OneToOneDay)
	assert.JSONEq(t, `{"Mon":"16:00-16:40"}`, string(student.ReadingDays))
	assert.Equal(t, pattern, PatternOf(student))
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, Weekdays(pattern))
}
