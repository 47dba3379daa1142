package models

import "time"

// FixedSchedule is a teacher's recurring non-lesson commitment.
type FixedSchedule struct {
	ID        string    `db:"id" json:"id"`
	Teacher   string    `db:"teacher" json:"teacher"`
	Weekday   string    `db:"weekday" json:"weekday"`
	Time      string    `db:"time" json:"time"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FixedScheduleFilter describes query params for listing fixed schedules.
type FixedScheduleFilter struct {
	Teacher string
	Weekday string
}
