package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-schedule-api/internal/models"
)

func sampleLessons(studentID string, n int) []models.Lesson {
	lessons := make([]models.Lesson, n)
	for i := range lessons {
		lessons[i] = models.Lesson{
			StudentID: &studentID,
			Date:      time.Date(2025, 3, 4+7*i, 0, 0, 0, 0, time.UTC),
			Time:      "16:00-16:40",
			Type:      models.LessonTypeOneToOne,
		}
	}
	return lessons
}

func TestLessonRepositoryInsertBatchCountsInsertedRows(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)INSERT INTO lessons .+ ON CONFLICT DO NOTHING`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)INSERT INTO lessons .+ ON CONFLICT DO NOTHING`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)INSERT INTO lessons .+ ON CONFLICT DO NOTHING`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	lessons := sampleLessons("s-1", 3)
	inserted, err := repo.InsertBatch(context.Background(), lessons)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	for _, lesson := range lessons {
		assert.NotEmpty(t, lesson.ID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryInsertBatchRollsBack(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO lessons`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO lessons`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	inserted, err := repo.InsertBatch(context.Background(), sampleLessons("s-1", 2))
	require.Error(t, err)
	assert.Zero(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryInsertBatchEmpty(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	inserted, err := NewLessonRepository(db).InsertBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectExec(`INSERT INTO lessons`).WillReturnError(&pq.Error{Code: "23505", Constraint: "lessons_student_slot_uq"})

	lesson := sampleLessons("s-1", 1)[0]
	lesson.Type = models.LessonTypeMakeup
	err := repo.Create(context.Background(), &lesson)
	assert.ErrorIs(t, err, ErrDuplicateLesson)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectQuery(`FROM lessons l WHERE l.id = \$1`).WithArgs("missing").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	from := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "student_id", "teacher", "date", "time", "type", "status", "late_minutes", "student_name", "resolved_teacher"}).
		AddRow("l-1", "s-1", nil, from.AddDate(0, 0, 1), "16:00-16:40", "one_to_one", "present", 7, "Kim", "Lee").
		AddRow("l-2", nil, "Lee", from.AddDate(0, 0, 1), "16:40-17:20", "memo", nil, nil, nil, "Lee")
	mock.ExpectQuery(`LEFT JOIN students s ON s.id = l.student_id\s+WHERE 1=1 AND COALESCE\(l.teacher, s.teacher\) = \$1 AND l.date >= \$2 AND l.date <= \$3 AND l.type = ANY\(\$4\) ORDER BY l.date ASC, l.time ASC`).
		WithArgs("Lee", from, to, sqlmock.AnyArg()).
		WillReturnRows(rows)

	lessons, err := repo.List(context.Background(), models.LessonFilter{
		Teacher:  "Lee",
		DateFrom: &from,
		DateTo:   &to,
		Types:    []models.LessonType{models.LessonTypeOneToOne, models.LessonTypeMemo},
	})
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, models.LessonStatusPresent, lessons[0].Status)
	require.NotNil(t, lessons[0].LateMinutes)
	assert.Equal(t, 7, *lessons[0].LateMinutes)
	assert.Nil(t, lessons[1].StudentID)
	assert.Equal(t, models.LessonStatusUnset, lessons[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryExistsForStudentAt(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewLessonRepository(db)
	date := time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT 1 FROM lessons WHERE student_id = \$1 AND date = \$2 AND time = \$3`).
		WithArgs("s-1", date, "11:00-11:40").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))

	exists, err := repo.ExistsForStudentAt(context.Background(), "s-1", date, "11:00-11:40")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryDeleteFutureGeneratedKeepsLinkedRows(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewLessonRepository(db)
	from := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`DELETE FROM lessons WHERE student_id = \$1 AND type = ANY\(\$2\) AND date >= \$3 AND makeup_lesson_id IS NULL`).
		WithArgs("s-1", sqlmock.AnyArg(), from).
		WillReturnResult(sqlmock.NewResult(0, 48))

	deleted, err := repo.DeleteFutureGenerated(context.Background(), "s-1", models.GeneratedLessonTypes, from)
	require.NoError(t, err)
	assert.Equal(t, 48, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryMarkAbsentClearsArrival(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectExec(`UPDATE lessons SET status = \$2, absent_reason = \$3, checkin_time = NULL, checked_in_at = NULL, late_minutes = NULL, on_time = NULL`).
		WithArgs("l-1", "absent", "sick", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkAbsent(context.Background(), "l-1", "sick"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositorySetMakeupLinkMissing(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewLessonRepository(db)
	makeupID := "m-1"

	mock.ExpectExec(`UPDATE lessons SET makeup_lesson_id = \$2`).
		WithArgs("gone", makeupID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetMakeupLink(context.Background(), "gone", &makeupID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryClearAttendance(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectExec(`(?s)UPDATE lessons SET status = NULL, .+ makeup_lesson_id = NULL, memo = NULL`).
		WithArgs("l-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ClearAttendance(context.Background(), "l-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryListLinkedFrom(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewLessonRepository(db)
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "student_id", "date", "time", "type", "status", "makeup_lesson_id"}).
		AddRow("l-9", "s-1", from.AddDate(0, 0, 3), "16:40-17:20", "one_to_one", "absent", "m-1")
	mock.ExpectQuery(`(?s)FROM lessons l WHERE l.student_id = \$1 AND l.type = ANY\(\$2\) AND l.date >= \$3\s+AND l.makeup_lesson_id IS NOT NULL`).
		WithArgs("s-1", sqlmock.AnyArg(), from).
		WillReturnRows(rows)

	lessons, err := repo.ListLinkedFrom(context.Background(), "s-1", models.GeneratedLessonTypes, from)
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	require.NotNil(t, lessons[0].MakeupLessonID)
	assert.Equal(t, "m-1", *lessons[0].MakeupLessonID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryReassignTeacher(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewLessonRepository(db)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE lessons SET teacher = \$2, updated_at = \$4 WHERE student_id = \$1 AND date >= \$3`).
		WithArgs("s-1", "Lee", from, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 40))

	moved, err := repo.ReassignTeacher(context.Background(), "s-1", "Lee", from)
	require.NoError(t, err)
	assert.Equal(t, 40, moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}
