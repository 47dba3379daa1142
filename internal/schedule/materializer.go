package schedule

import (
	"fmt"
	"time"

	"github.com/noah-isme/academy-schedule-api/internal/models"
)

// Materialize expands a weekly pattern into one draft per matching date in the inclusive window [from, to].
// One date may yield both a one-to-one and a reading draft. Output is ordered by date, one-to-one first,
// and depends only on the arguments, so re-running over the same window yields the same drafts.
func Materialize(pattern models.RecurringPattern, from, to time.Time) ([]models.LessonDraft, error) {
	start, end := DateOf(from), DateOf(to)
	if start.After(end) {
		return nil, fmt.Errorf("materialize: window start %s is after end %s", start.Format(DateLayout), end.Format(DateLayout))
	}
	if pattern.Empty() {
		return []models.LessonDraft{}, nil
	}

	drafts := make([]models.LessonDraft, 0, estimate(pattern, start, end))
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		weekday := day.Weekday()
		if one := pattern.OneToOne; one != nil && one.Weekday == weekday {
			testTime := one.TestTime
			drafts = append(drafts, models.LessonDraft{
				Date:     day,
				Time:     one.ClassTime,
				TestTime: &testTime,
				Type:     models.LessonTypeOneToOne,
			})
		}
		if slot, ok := pattern.Reading[weekday]; ok && slot != "" {
			drafts = append(drafts, models.LessonDraft{
				Date: day,
				Time: slot,
				Type: models.LessonTypeReading,
			})
		}
	}
	return drafts, nil
}

func estimate(pattern models.RecurringPattern, start, end time.Time) int {
	weeks := int(end.Sub(start).Hours()/(24*7)) + 1
	return weeks * len(Weekdays(pattern))
}
