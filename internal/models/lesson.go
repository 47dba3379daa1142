package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// LessonType is the closed set of lesson row kinds.
type LessonType string

const (
	LessonTypeOneToOne LessonType = "one_to_one"
	LessonTypeReading  LessonType = "reading"
	LessonTypeMakeup   LessonType = "makeup"
	LessonTypeMemo     LessonType = "memo"
	LessonTypeTask     LessonType = "task"
)

// Valid returns true when the type is a supported value.
func (t LessonType) Valid() bool {
	switch t {
	case LessonTypeOneToOne, LessonTypeReading, LessonTypeMakeup, LessonTypeMemo, LessonTypeTask:
		return true
	default:
		return false
	}
}

// Generated reports whether rows of this type are produced by materialization and may be regenerated.
func (t LessonType) Generated() bool {
	return t == LessonTypeOneToOne || t == LessonTypeReading
}

// Artifact reports whether the type is a non-student slot entry.
func (t LessonType) Artifact() bool {
	return t == LessonTypeMemo || t == LessonTypeTask
}

// GeneratedLessonTypes lists the types owned by the pattern materializer.
var GeneratedLessonTypes = []LessonType{LessonTypeOneToOne, LessonTypeReading}

// LessonStatus is the attendance state of a lesson. The zero value means unset and is stored as NULL.
type LessonStatus string

const (
	LessonStatusUnset   LessonStatus = ""
	LessonStatusPresent LessonStatus = "present"
	LessonStatusAbsent  LessonStatus = "absent"
)

// Valid returns true when the status is a supported value.
func (s LessonStatus) Valid() bool {
	switch s {
	case LessonStatusUnset, LessonStatusPresent, LessonStatusAbsent:
		return true
	default:
		return false
	}
}

// Scan implements sql.Scanner.
func (s *LessonStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = LessonStatusUnset
	case string:
		*s = LessonStatus(v)
	case []byte:
		*s = LessonStatus(v)
	default:
		return fmt.Errorf("scan lesson status: unsupported type %T", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (s LessonStatus) Value() (driver.Value, error) {
	if s == LessonStatusUnset {
		return nil, nil
	}
	return string(s), nil
}

// Lesson is a concrete dated lesson row. StudentID is nil for memo and task artifacts.
type Lesson struct {
	ID               string       `db:"id" json:"id"`
	StudentID        *string      `db:"student_id" json:"student_id,omitempty"`
	Teacher          *string      `db:"teacher" json:"teacher,omitempty"`
	Date             time.Time    `db:"date" json:"date"`
	Time             string       `db:"time" json:"time"`
	TestTime         *string      `db:"test_time" json:"test_time,omitempty"`
	Type             LessonType   `db:"type" json:"type"`
	Status           LessonStatus `db:"status" json:"status"`
	CheckinTime      *string      `db:"checkin_time" json:"checkin_time,omitempty"`
	CheckedInAt      *time.Time   `db:"checked_in_at" json:"checked_in_at,omitempty"`
	LateMinutes      *int         `db:"late_minutes" json:"late_minutes,omitempty"`
	OnTime           *bool        `db:"on_time" json:"on_time,omitempty"`
	AbsentReason     *string      `db:"absent_reason" json:"absent_reason,omitempty"`
	MakeupLessonID   *string      `db:"makeup_lesson_id" json:"makeup_lesson_id,omitempty"`
	OriginalLessonID *string      `db:"original_lesson_id" json:"original_lesson_id,omitempty"`
	Memo             *string      `db:"memo" json:"memo,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`
}

// LessonRecord extends the lesson row with student metadata for board rendering.
type LessonRecord struct {
	Lesson
	StudentName     *string `db:"student_name" json:"student_name,omitempty"`
	StudentSchool   *string `db:"student_school" json:"student_school,omitempty"`
	StudentGrade    *string `db:"student_grade" json:"student_grade,omitempty"`
	ResolvedTeacher *string `db:"resolved_teacher" json:"resolved_teacher,omitempty"`
}

// LessonFilter scopes lesson queries. Teacher matches the lesson's own teacher or, when absent, the student's.
type LessonFilter struct {
	Teacher   string
	StudentID string
	DateFrom  *time.Time
	DateTo    *time.Time
	Types     []LessonType
}

// LessonDraft is a lesson instance computed by the materializer but not yet persisted.
type LessonDraft struct {
	Date     time.Time
	Time     string
	TestTime *string
	Type     LessonType
}

// Key identifies the (date, slot, type) triple of a draft.
func (d LessonDraft) Key() string {
	return fmt.Sprintf("%s|%s|%s", d.Date.Format("2006-01-02"), d.Time, d.Type)
}

// MakeupDraft describes the replacement session requested when recording an absence.
type MakeupDraft struct {
	Date     time.Time
	TestTime *string
	Time     string
}

// AttendanceUpdate carries the status fields written by a check-in.
type AttendanceUpdate struct {
	Status      LessonStatus
	CheckinTime *string
	CheckedInAt *time.Time
	LateMinutes *int
	OnTime      *bool
}

// LessonLink describes both ends of an absence/makeup relation as seen from either side.
type LessonLink struct {
	Original   *Lesson `json:"original,omitempty"`
	Makeup     *Lesson `json:"makeup,omitempty"`
	Consistent bool    `json:"consistent"`
}
