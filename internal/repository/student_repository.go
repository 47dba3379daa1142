package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academy-schedule-api/internal/models"
)

const studentColumns = `id, name, school, grade, teacher, phone, enrolled_on, withdrawn_on, one_day, one_test_time, one_class_time,
        reading_days, created_at, updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Teacher != "" {
		conditions = append(conditions, fmt.Sprintf("teacher = $%d", len(args)+1))
		args = append(args, filter.Teacher)
	}
	if filter.Active != nil {
		if *filter.Active {
			conditions = append(conditions, "withdrawn_on IS NULL")
		} else {
			conditions = append(conditions, "withdrawn_on IS NOT NULL")
		}
	}
	if filter.Search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(school) LIKE $%d OR LOWER(grade) LIKE $%d OR phone LIKE $%d)", n, n, n, n))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	where := strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"name":        "name",
		"school":      "school",
		"grade":       "grade",
		"enrolled_on": "enrolled_on",
		"created_at":  "created_at",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "name"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM students WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, where, column, order, size, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM students WHERE %s", where), args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindActiveByPhone returns every active student registered with the phone number, oldest first.
func (r *StudentRepository) FindActiveByPhone(ctx context.Context, phone string) ([]models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE phone = $1 AND withdrawn_on IS NULL ORDER BY created_at ASC", studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, phone); err != nil {
		return nil, fmt.Errorf("find students by phone: %w", err)
	}
	return students, nil
}

// ExistsActiveByPhone checks whether an active student already uses the phone, optionally excluding an ID.
func (r *StudentRepository) ExistsActiveByPhone(ctx context.Context, phone, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE phone = $1 AND withdrawn_on IS NULL"
	args := []interface{}{phone}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check phone: %w", err)
	}
	return true, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, name, school, grade, teacher, phone, enrolled_on, withdrawn_on, one_day, one_test_time, one_class_time, reading_days, created_at, updated_at)
        VALUES (:id, :name, :school, :grade, :teacher, :phone, :enrolled_on, :withdrawn_on, :one_day, :one_test_time, :one_class_time, :reading_days, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies the profile and weekly pattern of an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET name = :name, school = :school, grade = :grade, teacher = :teacher, phone = :phone,
        one_day = :one_day, one_test_time = :one_test_time, one_class_time = :one_class_time, reading_days = :reading_days, updated_at = :updated_at
        WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("student rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Withdraw stamps the withdrawal date on a student.
func (r *StudentRepository) Withdraw(ctx context.Context, id string, date time.Time) error {
	const query = `UPDATE students SET withdrawn_on = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, date, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("withdraw student: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("student rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a student record. Remaining lessons cascade in the database.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("student rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
