package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Student represents an enrolled learner and their recurring weekly pattern.
// WithdrawnOn is nil while the student is active.
type Student struct {
	ID                string         `db:"id" json:"id"`
	Name              string         `db:"name" json:"name"`
	School            string         `db:"school" json:"school"`
	Grade             string         `db:"grade" json:"grade"`
	Teacher           string         `db:"teacher" json:"teacher"`
	Phone             string         `db:"phone" json:"phone"`
	EnrolledOn        time.Time      `db:"enrolled_on" json:"enrolled_on"`
	WithdrawnOn       *time.Time     `db:"withdrawn_on" json:"withdrawn_on,omitempty"`
	OneToOneDay       string         `db:"one_day" json:"one_day"`
	OneToOneTestTime  string         `db:"one_test_time" json:"one_test_time"`
	OneToOneClassTime string         `db:"one_class_time" json:"one_class_time"`
	ReadingDays       types.JSONText `db:"reading_days" json:"reading_days"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// Active reports whether the student has no withdrawal date.
func (s Student) Active() bool {
	return s.WithdrawnOn == nil
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Teacher   string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// OneToOneSlot is the single weekly one-to-one session of a student.
type OneToOneSlot struct {
	Weekday   time.Weekday `json:"weekday"`
	TestTime  string       `json:"test_time"`
	ClassTime string       `json:"class_time"`
}

// RecurringPattern is the typed weekly pattern consumed by the materializer.
type RecurringPattern struct {
	OneToOne *OneToOneSlot           `json:"one_to_one,omitempty"`
	Reading  map[time.Weekday]string `json:"reading,omitempty"`
}

// Empty reports whether the pattern produces no lessons.
func (p RecurringPattern) Empty() bool {
	if p.OneToOne != nil {
		return false
	}
	for _, slot := range p.Reading {
		if slot != "" {
			return false
		}
	}
	return true
}
