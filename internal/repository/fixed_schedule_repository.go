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

// FixedScheduleRepository provides persistence for teacher fixed schedules.
type FixedScheduleRepository struct {
	db *sqlx.DB
}

// NewFixedScheduleRepository creates a new fixed schedule repository.
func NewFixedScheduleRepository(db *sqlx.DB) *FixedScheduleRepository {
	return &FixedScheduleRepository{db: db}
}

// List returns fixed schedules ordered by weekday and time.
func (r *FixedScheduleRepository) List(ctx context.Context, filter models.FixedScheduleFilter) ([]models.FixedSchedule, error) {
	base := "FROM fixed_schedules WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Teacher != "" {
		conditions = append(conditions, fmt.Sprintf("teacher = $%d", len(args)+1))
		args = append(args, filter.Teacher)
	}
	if filter.Weekday != "" {
		conditions = append(conditions, fmt.Sprintf("weekday = $%d", len(args)+1))
		args = append(args, filter.Weekday)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf("SELECT id, teacher, weekday, time, content, created_at, updated_at %s ORDER BY teacher ASC, weekday ASC, time ASC", base)
	var schedules []models.FixedSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, fmt.Errorf("list fixed schedules: %w", err)
	}
	return schedules, nil
}

// FindByID loads a fixed schedule by id.
func (r *FixedScheduleRepository) FindByID(ctx context.Context, id string) (*models.FixedSchedule, error) {
	const query = `SELECT id, teacher, weekday, time, content, created_at, updated_at FROM fixed_schedules WHERE id = $1`
	var schedule models.FixedSchedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// Create stores a new fixed schedule.
func (r *FixedScheduleRepository) Create(ctx context.Context, schedule *models.FixedSchedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now
	const query = `INSERT INTO fixed_schedules (id, teacher, weekday, time, content, created_at, updated_at)
        VALUES (:id, :teacher, :weekday, :time, :content, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create fixed schedule: %w", err)
	}
	return nil
}

// Update modifies an existing fixed schedule.
func (r *FixedScheduleRepository) Update(ctx context.Context, schedule *models.FixedSchedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE fixed_schedules SET teacher = :teacher, weekday = :weekday, time = :time, content = :content, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, schedule)
	if err != nil {
		return fmt.Errorf("update fixed schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("fixed schedule rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a fixed schedule.
func (r *FixedScheduleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM fixed_schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete fixed schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("fixed schedule rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
