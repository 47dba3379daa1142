package schedule

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/academy-schedule-api/internal/models"
)

// RawPattern is the loosely typed pattern as entered on the roster screen.
type RawPattern struct {
	OneToOneDay       string            `json:"one_day"`
	OneToOneTestTime  string            `json:"one_test_time"`
	OneToOneClassTime string            `json:"one_class_time"`
	ReadingDays       map[string]string `json:"reading_days"`
}

// FieldError reports the pattern field that failed validation.
type FieldError struct {
	Field  string
	Value  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}

// ParsePattern validates a raw pattern strictly. Slots must come from the catalog for their weekday
// and a reading slot may not collide with the one-to-one class on the same weekday.
func ParsePattern(raw RawPattern) (models.RecurringPattern, error) {
	var pattern models.RecurringPattern

	if day := strings.TrimSpace(raw.OneToOneDay); day != "" {
		weekday, ok := ParseWeekday(day)
		if !ok {
			return pattern, &FieldError{Field: "one_day", Value: day, Reason: "unknown weekday"}
		}
		if _, _, err := ParseClock(raw.OneToOneTestTime); err != nil {
			return pattern, &FieldError{Field: "one_test_time", Value: raw.OneToOneTestTime, Reason: "expected HH:MM"}
		}
		class := strings.TrimSpace(raw.OneToOneClassTime)
		if !ValidSlot(weekday, class) {
			return pattern, &FieldError{Field: "one_class_time", Value: class, Reason: "not a slot on " + WeekdayToken(weekday)}
		}
		pattern.OneToOne = &models.OneToOneSlot{
			Weekday:   weekday,
			TestTime:  strings.TrimSpace(raw.OneToOneTestTime),
			ClassTime: class,
		}
	}

	for token, slot := range raw.ReadingDays {
		slot = strings.TrimSpace(slot)
		if slot == "" {
			continue
		}
		weekday, ok := ParseWeekday(token)
		if !ok {
			return pattern, &FieldError{Field: "reading_days", Value: token, Reason: "unknown weekday"}
		}
		if !ValidSlot(weekday, slot) {
			return pattern, &FieldError{Field: "reading_days." + WeekdayToken(weekday), Value: slot, Reason: "not a slot on " + WeekdayToken(weekday)}
		}
		if pattern.OneToOne != nil && pattern.OneToOne.Weekday == weekday && pattern.OneToOne.ClassTime == slot {
			return pattern, &FieldError{Field: "reading_days." + WeekdayToken(weekday), Value: slot, Reason: "collides with the one-to-one class"}
		}
		if pattern.Reading == nil {
			pattern.Reading = make(map[time.Weekday]string)
		}
		pattern.Reading[weekday] = slot
	}

	return pattern, nil
}

// PatternOf decodes the pattern stored on a student. Stored values are trusted loosely: unknown weekday
// names and unreadable reading maps are skipped rather than failing the caller.
func PatternOf(student models.Student) models.RecurringPattern {
	var pattern models.RecurringPattern
	if weekday, ok := ParseWeekday(student.OneToOneDay); ok && student.OneToOneClassTime != "" {
		pattern.OneToOne = &models.OneToOneSlot{
			Weekday:   weekday,
			TestTime:  student.OneToOneTestTime,
			ClassTime: student.OneToOneClassTime,
		}
	}
	for token, slot := range DecodeReadingDays(student.ReadingDays) {
		weekday, ok := ParseWeekday(token)
		if !ok || strings.TrimSpace(slot) == "" {
			continue
		}
		if pattern.Reading == nil {
			pattern.Reading = make(map[time.Weekday]string)
		}
		pattern.Reading[weekday] = strings.TrimSpace(slot)
	}
	return pattern
}

// ApplyPattern writes a validated pattern onto the student's storage columns using canonical tokens.
func ApplyPattern(student *models.Student, pattern models.RecurringPattern) {
	student.OneToOneDay, student.OneToOneTestTime, student.OneToOneClassTime = "", "", ""
	if pattern.OneToOne != nil {
		student.OneToOneDay = WeekdayToken(pattern.OneToOne.Weekday)
		student.OneToOneTestTime = pattern.OneToOne.TestTime
		student.OneToOneClassTime = pattern.OneToOne.ClassTime
	}
	student.ReadingDays = EncodeReadingDays(pattern.Reading)
}

// EncodeReadingDays serialises a reading map with canonical weekday tokens.
func EncodeReadingDays(reading map[time.Weekday]string) types.JSONText {
	out := make(map[string]string, len(reading))
	for day, slot := range reading {
		if slot == "" {
			continue
		}
		out[WeekdayToken(day)] = slot
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return types.JSONText(`{}`)
	}
	return types.JSONText(payload)
}

// DecodeReadingDays returns the stored reading map; unreadable payloads decode as empty.
func DecodeReadingDays(raw types.JSONText) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// Weekdays lists the weekdays a pattern touches, in calendar order.
func Weekdays(pattern models.RecurringPattern) []time.Weekday {
	seen := map[time.Weekday]struct{}{}
	if pattern.OneToOne != nil {
		seen[pattern.OneToOne.Weekday] = struct{}{}
	}
	for day, slot := range pattern.Reading {
		if slot != "" {
			seen[day] = struct{}{}
		}
	}
	days := make([]time.Weekday, 0, len(seen))
	for day := range seen {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}
