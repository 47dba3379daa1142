package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/academy-schedule-api/internal/models"
	"github.com/noah-isme/academy-schedule-api/internal/repository"
	"github.com/noah-isme/academy-schedule-api/pkg/jobs"
)

var errInjected = errors.New("injected failure")

// memLessonRepo is an in-memory lessonRepository honouring the unique slot and link indexes.
type memLessonRepo struct {
	mu      sync.Mutex
	rows    map[string]*models.Lesson
	seq     int
	batches int

	failBatchAt    int // 1-based InsertBatch call that fails; 0 disables
	failSetLink    error
	failDelete     error
	failAttendance error
}

func newMemLessonRepo() *memLessonRepo {
	return &memLessonRepo{rows: map[string]*models.Lesson{}}
}

func (m *memLessonRepo) slotTaken(lesson models.Lesson) bool {
	if lesson.StudentID == nil {
		return false
	}
	for _, row := range m.rows {
		if row.StudentID != nil && *row.StudentID == *lesson.StudentID && row.Date.Equal(lesson.Date) && row.Time == lesson.Time {
			return true
		}
		if lesson.OriginalLessonID != nil && row.OriginalLessonID != nil && *row.OriginalLessonID == *lesson.OriginalLessonID {
			return true
		}
	}
	return false
}

func (m *memLessonRepo) insert(lesson *models.Lesson) {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	m.seq++
	lesson.CreatedAt = time.Unix(int64(m.seq), 0).UTC()
	lesson.UpdatedAt = lesson.CreatedAt
	copied := *lesson
	m.rows[lesson.ID] = &copied
}

func (m *memLessonRepo) InsertBatch(_ context.Context, lessons []models.Lesson) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	if m.failBatchAt > 0 && m.batches == m.failBatchAt {
		return 0, errInjected
	}
	inserted := 0
	for i := range lessons {
		if m.slotTaken(lessons[i]) {
			continue
		}
		m.insert(&lessons[i])
		inserted++
	}
	return inserted, nil
}

func (m *memLessonRepo) Create(_ context.Context, lesson *models.Lesson) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slotTaken(*lesson) {
		return repository.ErrDuplicateLesson
	}
	m.insert(lesson)
	return nil
}

func (m *memLessonRepo) FindByID(_ context.Context, id string) (*models.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *row
	return &copied, nil
}

func (m *memLessonRepo) List(_ context.Context, filter models.LessonFilter) ([]models.LessonRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LessonRecord
	for _, row := range m.rows {
		if filter.StudentID != "" && (row.StudentID == nil || *row.StudentID != filter.StudentID) {
			continue
		}
		if filter.Teacher != "" && (row.Teacher == nil || *row.Teacher != filter.Teacher) {
			continue
		}
		if filter.DateFrom != nil && row.Date.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && row.Date.After(*filter.DateTo) {
			continue
		}
		if !typeIn(row.Type, filter.Types) {
			continue
		}
		out = append(out, models.LessonRecord{Lesson: *row})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memLessonRepo) ExistsForStudentAt(_ context.Context, studentID string, date time.Time, slot string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slotTaken(models.Lesson{StudentID: &studentID, Date: date, Time: slot}), nil
}

func (m *memLessonRepo) DeleteFutureGenerated(_ context.Context, studentID string, types []models.LessonType, from time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for id, row := range m.rows {
		if row.StudentID == nil || *row.StudentID != studentID || row.Date.Before(from) || row.MakeupLessonID != nil {
			continue
		}
		if !typeIn(row.Type, types) {
			continue
		}
		delete(m.rows, id)
		deleted++
	}
	return deleted, nil
}

func (m *memLessonRepo) mutate(id string, fn func(*models.Lesson)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return sql.ErrNoRows
	}
	fn(row)
	return nil
}

func (m *memLessonRepo) UpdateAttendance(_ context.Context, id string, update models.AttendanceUpdate) error {
	if m.failAttendance != nil {
		return m.failAttendance
	}
	return m.mutate(id, func(l *models.Lesson) { applyUpdate(l, update) })
}

func (m *memLessonRepo) MarkAbsent(_ context.Context, id, reason string) error {
	return m.mutate(id, func(l *models.Lesson) {
		l.Status = models.LessonStatusAbsent
		l.AbsentReason = &reason
		l.CheckinTime, l.CheckedInAt, l.LateMinutes, l.OnTime = nil, nil, nil, nil
	})
}

func (m *memLessonRepo) SetMakeupLink(_ context.Context, originalID string, makeupID *string) error {
	if m.failSetLink != nil {
		return m.failSetLink
	}
	return m.mutate(originalID, func(l *models.Lesson) { l.MakeupLessonID = makeupID })
}

func (m *memLessonRepo) ClearAttendance(_ context.Context, id string) error {
	return m.mutate(id, func(l *models.Lesson) {
		l.Status = models.LessonStatusUnset
		l.CheckinTime, l.CheckedInAt, l.LateMinutes, l.OnTime = nil, nil, nil, nil
		l.AbsentReason, l.MakeupLessonID, l.Memo = nil, nil, nil
	})
}

func (m *memLessonRepo) UpdateMemo(_ context.Context, id string, memo *string) error {
	return m.mutate(id, func(l *models.Lesson) { l.Memo = memo })
}

func (m *memLessonRepo) Delete(_ context.Context, id string) error {
	if m.failDelete != nil {
		return m.failDelete
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.rows, id)
	return nil
}

func (m *memLessonRepo) ListMakeupsFrom(_ context.Context, studentID string, from time.Time) ([]models.Lesson, error) {
	records, err := m.List(context.Background(), models.LessonFilter{StudentID: studentID, DateFrom: &from, Types: []models.LessonType{models.LessonTypeMakeup}})
	if err != nil {
		return nil, err
	}
	out := make([]models.Lesson, len(records))
	for i, r := range records {
		out[i] = r.Lesson
	}
	return out, nil
}

func (m *memLessonRepo) ListLinkedFrom(_ context.Context, studentID string, types []models.LessonType, from time.Time) ([]models.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Lesson
	for _, row := range m.rows {
		if row.StudentID == nil || *row.StudentID != studentID || row.Date.Before(from) || row.MakeupLessonID == nil {
			continue
		}
		if typeIn(row.Type, types) {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memLessonRepo) ReassignTeacher(_ context.Context, studentID, teacher string, from time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	moved := 0
	for _, row := range m.rows {
		if row.StudentID == nil || *row.StudentID != studentID || row.Date.Before(from) {
			continue
		}
		assigned := teacher
		row.Teacher = &assigned
		moved++
	}
	return moved, nil
}

// seed stores a lesson directly and returns its id.
func (m *memLessonRepo) seed(lesson models.Lesson) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insert(&lesson)
	return lesson.ID
}

func (m *memLessonRepo) get(id string) *models.Lesson {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil
	}
	copied := *row
	return &copied
}

func (m *memLessonRepo) count(filter func(models.Lesson) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.rows {
		if filter == nil || filter(*row) {
			n++
		}
	}
	return n
}

// memStudentRepo is an in-memory studentRepository.
type memStudentRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Student
	seq  int
}

func newMemStudentRepo(students ...models.Student) *memStudentRepo {
	repo := &memStudentRepo{rows: map[string]*models.Student{}}
	for i := range students {
		_ = repo.Create(context.Background(), &students[i])
	}
	return repo
}

func (m *memStudentRepo) List(_ context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Student
	for _, row := range m.rows {
		if filter.Teacher != "" && row.Teacher != filter.Teacher {
			continue
		}
		if filter.Search != "" && !strings.Contains(row.Name, filter.Search) {
			continue
		}
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (m *memStudentRepo) FindByID(_ context.Context, id string) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *row
	return &copied, nil
}

func (m *memStudentRepo) FindActiveByPhone(_ context.Context, phone string) ([]models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Student
	for _, row := range m.rows {
		if row.Phone == phone && row.Active() {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStudentRepo) ExistsActiveByPhone(ctx context.Context, phone, excludeID string) (bool, error) {
	matches, _ := m.FindActiveByPhone(ctx, phone)
	for _, s := range matches {
		if s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStudentRepo) Create(_ context.Context, student *models.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	m.seq++
	student.CreatedAt = time.Unix(int64(m.seq), 0).UTC()
	copied := *student
	m.rows[student.ID] = &copied
	return nil
}

func (m *memStudentRepo) Update(_ context.Context, student *models.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[student.ID]; !ok {
		return sql.ErrNoRows
	}
	copied := *student
	m.rows[student.ID] = &copied
	return nil
}

func (m *memStudentRepo) Withdraw(_ context.Context, id string, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return sql.ErrNoRows
	}
	row.WithdrawnOn = &date
	return nil
}

func (m *memStudentRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.rows, id)
	return nil
}

type recordingQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func strPtr(v string) *string { return &v }

func mustDate(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}
