package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academy-schedule-api/internal/models"
)

const lessonColumns = `l.id, l.student_id, l.teacher, l.date, l.time, l.test_time, l.type, l.status, l.checkin_time, l.checked_in_at,
        l.late_minutes, l.on_time, l.absent_reason, l.makeup_lesson_id, l.original_lesson_id, l.memo, l.created_at, l.updated_at`

// ErrDuplicateLesson reports that the student already holds a lesson in the slot, or that the original already has a makeup.
var ErrDuplicateLesson = errors.New("lesson slot already taken")

// LessonRepository persists dated lesson rows.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs a LessonRepository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// InsertBatch writes the lessons in a single transaction. Rows that collide with an existing
// (student_id, date, time) entry are skipped, so replaying a batch is harmless.
func (r *LessonRepository) InsertBatch(ctx context.Context, lessons []models.Lesson) (int, error) {
	if len(lessons) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin lesson batch: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO lessons (id, student_id, teacher, date, time, test_time, type, status, memo, original_lesson_id, created_at, updated_at)
        VALUES (:id, :student_id, :teacher, :date, :time, :test_time, :type, :status, :memo, :original_lesson_id, :created_at, :updated_at)
        ON CONFLICT DO NOTHING`
	now := time.Now().UTC()
	inserted := 0
	for i := range lessons {
		lesson := &lessons[i]
		if lesson.ID == "" {
			lesson.ID = uuid.NewString()
		}
		if lesson.CreatedAt.IsZero() {
			lesson.CreatedAt = now
		}
		lesson.UpdatedAt = now
		result, err := tx.NamedExecContext(ctx, query, lesson)
		if err != nil {
			return 0, fmt.Errorf("insert lesson batch: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("lesson batch rows affected: %w", err)
		}
		inserted += int(affected)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit lesson batch: %w", err)
	}
	commit = true
	return inserted, nil
}

// Create inserts a single lesson row.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now
	const query = `INSERT INTO lessons (id, student_id, teacher, date, time, test_time, type, status, memo, original_lesson_id, created_at, updated_at)
        VALUES (:id, :student_id, :teacher, :date, :time, :test_time, :type, :status, :memo, :original_lesson_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create lesson: %w", ErrDuplicateLesson)
		}
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// FindByID fetches a lesson row by ID.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons l WHERE l.id = $1", lessonColumns)
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// List returns lessons joined with their student, ordered by date and slot.
func (r *LessonRepository) List(ctx context.Context, filter models.LessonFilter) ([]models.LessonRecord, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Teacher != "" {
		conditions = append(conditions, fmt.Sprintf("COALESCE(l.teacher, s.teacher) = $%d", len(args)+1))
		args = append(args, filter.Teacher)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("l.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("l.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("l.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if len(filter.Types) > 0 {
		conditions = append(conditions, fmt.Sprintf("l.type = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(typeStrings(filter.Types)))
	}

	query := fmt.Sprintf(`SELECT %s,
        s.name AS student_name, s.school AS student_school, s.grade AS student_grade, COALESCE(l.teacher, s.teacher) AS resolved_teacher
        FROM lessons l LEFT JOIN students s ON s.id = l.student_id
        WHERE %s ORDER BY l.date ASC, l.time ASC, l.created_at ASC`, lessonColumns, strings.Join(conditions, " AND "))

	var lessons []models.LessonRecord
	if err := r.db.SelectContext(ctx, &lessons, query, args...); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}

// ExistsForStudentAt reports whether the student already holds any lesson in the given slot.
func (r *LessonRepository) ExistsForStudentAt(ctx context.Context, studentID string, date time.Time, slot string) (bool, error) {
	const query = `SELECT 1 FROM lessons WHERE student_id = $1 AND date = $2 AND time = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, date, slot); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check lesson slot: %w", err)
	}
	return true, nil
}

// DeleteFutureGenerated removes the student's lessons of the given types dated on or after from.
// Rows that still point at a makeup are kept so the makeup never loses its original.
func (r *LessonRepository) DeleteFutureGenerated(ctx context.Context, studentID string, types []models.LessonType, from time.Time) (int, error) {
	const query = `DELETE FROM lessons WHERE student_id = $1 AND type = ANY($2) AND date >= $3 AND makeup_lesson_id IS NULL`
	result, err := r.db.ExecContext(ctx, query, studentID, pq.Array(typeStrings(types)), from)
	if err != nil {
		return 0, fmt.Errorf("delete future lessons: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("future lessons rows affected: %w", err)
	}
	return int(affected), nil
}

// UpdateAttendance writes the check-in fields of a lesson.
func (r *LessonRepository) UpdateAttendance(ctx context.Context, id string, update models.AttendanceUpdate) error {
	const query = `UPDATE lessons SET status = $2, checkin_time = $3, checked_in_at = $4, late_minutes = $5, on_time = $6, updated_at = $7 WHERE id = $1`
	return r.execOne(ctx, "update lesson attendance", query, id, update.Status, update.CheckinTime, update.CheckedInAt, update.LateMinutes, update.OnTime, time.Now().UTC())
}

// MarkAbsent records an absence and its reason.
func (r *LessonRepository) MarkAbsent(ctx context.Context, id, reason string) error {
	const query = `UPDATE lessons SET status = $2, absent_reason = $3, checkin_time = NULL, checked_in_at = NULL, late_minutes = NULL, on_time = NULL, updated_at = $4 WHERE id = $1`
	return r.execOne(ctx, "mark lesson absent", query, id, models.LessonStatusAbsent, reason, time.Now().UTC())
}

// SetMakeupLink points the original lesson at its makeup. A nil makeupID clears the link.
func (r *LessonRepository) SetMakeupLink(ctx context.Context, originalID string, makeupID *string) error {
	const query = `UPDATE lessons SET makeup_lesson_id = $2, updated_at = $3 WHERE id = $1`
	return r.execOne(ctx, "set makeup link", query, originalID, makeupID, time.Now().UTC())
}

// ClearAttendance returns a lesson to the unset state, dropping absence, link and memo fields.
func (r *LessonRepository) ClearAttendance(ctx context.Context, id string) error {
	const query = `UPDATE lessons SET status = NULL, checkin_time = NULL, checked_in_at = NULL, late_minutes = NULL, on_time = NULL,
        absent_reason = NULL, makeup_lesson_id = NULL, memo = NULL, updated_at = $2 WHERE id = $1`
	return r.execOne(ctx, "clear lesson attendance", query, id, time.Now().UTC())
}

// UpdateMemo replaces the free-text memo of a lesson.
func (r *LessonRepository) UpdateMemo(ctx context.Context, id string, memo *string) error {
	const query = `UPDATE lessons SET memo = $2, updated_at = $3 WHERE id = $1`
	return r.execOne(ctx, "update lesson memo", query, id, memo, time.Now().UTC())
}

// Delete removes a lesson row.
func (r *LessonRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "delete lesson", `DELETE FROM lessons WHERE id = $1`, id)
}

// ListLinkedFrom returns the student's lessons of the given types dated on or after from that still point at a makeup.
func (r *LessonRepository) ListLinkedFrom(ctx context.Context, studentID string, types []models.LessonType, from time.Time) ([]models.Lesson, error) {
	query := fmt.Sprintf(`SELECT %s FROM lessons l WHERE l.student_id = $1 AND l.type = ANY($2) AND l.date >= $3
        AND l.makeup_lesson_id IS NOT NULL ORDER BY l.date ASC, l.time ASC`, lessonColumns)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, studentID, pq.Array(typeStrings(types)), from); err != nil {
		return nil, fmt.Errorf("list linked lessons: %w", err)
	}
	return lessons, nil
}

// ReassignTeacher moves the student's lessons dated on or after from to another teacher.
func (r *LessonRepository) ReassignTeacher(ctx context.Context, studentID, teacher string, from time.Time) (int, error) {
	const query = `UPDATE lessons SET teacher = $2, updated_at = $4 WHERE student_id = $1 AND date >= $3`
	result, err := r.db.ExecContext(ctx, query, studentID, teacher, from, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("reassign lesson teacher: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reassign lesson teacher rows affected: %w", err)
	}
	return int(affected), nil
}

// ListMakeupsFrom returns the student's makeup rows dated on or after from.
func (r *LessonRepository) ListMakeupsFrom(ctx context.Context, studentID string, from time.Time) ([]models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons l WHERE l.student_id = $1 AND l.type = $2 AND l.date >= $3 ORDER BY l.date ASC, l.time ASC", lessonColumns)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, studentID, models.LessonTypeMakeup, from); err != nil {
		return nil, fmt.Errorf("list makeup lessons: %w", err)
	}
	return lessons, nil
}

func (r *LessonRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func typeStrings(types []models.LessonType) []string {
	values := make([]string, len(types))
	for i, t := range types {
		values[i] = string(t)
	}
	return values
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
