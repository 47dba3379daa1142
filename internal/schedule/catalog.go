// Package schedule holds the academy's slot catalog and expands recurring weekly patterns into dated lessons.
// Nothing in this package performs I/O.
package schedule

import (
	"fmt"
	"strings"
	"time"
)

var weekdaySlots = []string{
	"16:00-16:40", "16:40-17:20", "17:20-18:00", "18:00-18:40",
	"18:40-19:20", "19:20-20:00", "20:00-20:40", "20:40-21:20", "21:20-22:00",
}

// Saturday skips 13:40-14:00 for lunch.
var saturdaySlots = []string{
	"10:20-11:00", "11:00-11:40", "11:40-12:20", "12:20-13:00",
	"13:00-13:40", "14:00-14:40", "14:40-15:20", "15:20-16:00",
	"16:00-16:40", "16:40-17:20",
}

var weekdayTokens = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

var weekdayAliases = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday, "일": time.Sunday, "일요일": time.Sunday,
	"mon": time.Monday, "monday": time.Monday, "월": time.Monday, "월요일": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday, "화": time.Tuesday, "화요일": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday, "수": time.Wednesday, "수요일": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday, "목": time.Thursday, "목요일": time.Thursday,
	"fri": time.Friday, "friday": time.Friday, "금": time.Friday, "금요일": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday, "토": time.Saturday, "토요일": time.Saturday,
}

// SlotsFor returns the bookable slots for a weekday. Sunday has none.
func SlotsFor(day time.Weekday) []string {
	var src []string
	switch day {
	case time.Sunday:
		return nil
	case time.Saturday:
		src = saturdaySlots
	default:
		src = weekdaySlots
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// SlotsOn returns the slots for the weekday of date.
func SlotsOn(date time.Time) []string {
	return SlotsFor(date.Weekday())
}

// ValidSlot reports whether slot is a catalog entry for day.
func ValidSlot(day time.Weekday, slot string) bool {
	for _, s := range SlotsFor(day) {
		if s == slot {
			return true
		}
	}
	return false
}

// ParseWeekday resolves an English or Korean weekday token, case-insensitively.
func ParseWeekday(token string) (time.Weekday, bool) {
	day, ok := weekdayAliases[strings.ToLower(strings.TrimSpace(token))]
	return day, ok
}

// WeekdayToken returns the canonical three-letter token stored for a weekday.
func WeekdayToken(day time.Weekday) string {
	if day < time.Sunday || day > time.Saturday {
		return ""
	}
	return weekdayTokens[day]
}

// ParseClock parses a 24-hour "HH:MM" string.
func ParseClock(value string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock %q, expected HH:MM", value)
	}
	return t.Hour(), t.Minute(), nil
}

// SlotStart returns the "HH:MM" start of a "HH:MM-HH:MM" slot.
func SlotStart(slot string) (string, error) {
	parts := strings.SplitN(slot, "-", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid slot %q, expected HH:MM-HH:MM", slot)
	}
	if _, _, err := ParseClock(parts[0]); err != nil {
		return "", err
	}
	if _, _, err := ParseClock(parts[1]); err != nil {
		return "", err
	}
	return strings.TrimSpace(parts[0]), nil
}

// KnownSlot reports whether slot is offered on any day of the week.
func KnownSlot(slot string) bool {
	return ValidSlot(time.Monday, slot) || ValidSlot(time.Saturday, slot)
}
