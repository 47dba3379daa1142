package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-schedule-api/internal/models"
	"github.com/noah-isme/academy-schedule-api/internal/service"
	appErrors "github.com/noah-isme/academy-schedule-api/pkg/errors"
)

type studentServiceMock struct {
	filter   models.StudentFilter
	from, to time.Time
	result   *service.StudentResult
	err      error
	purged   string
}

func (m *studentServiceMock) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	m.filter = filter
	return []models.Student{{ID: "s-1", Name: "Kim"}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, m.err
}

func (m *studentServiceMock) Get(ctx context.Context, id string) (*models.Student, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Student{ID: id}, nil
}

func (m *studentServiceMock) Lessons(ctx context.Context, id string, from, to time.Time) ([]models.LessonRecord, error) {
	m.from, m.to = from, to
	return nil, m.err
}

func (m *studentServiceMock) Register(ctx context.Context, req service.StudentRequest) (*service.StudentResult, error) {
	return m.result, m.err
}

func (m *studentServiceMock) Update(ctx context.Context, id string, req service.StudentRequest) (*service.StudentResult, error) {
	return m.result, m.err
}

func (m *studentServiceMock) Withdraw(ctx context.Context, id string, req service.WithdrawRequest) (*service.StudentResult, error) {
	return m.result, m.err
}

func (m *studentServiceMock) Purge(ctx context.Context, id string) error {
	m.purged = id
	return m.err
}

type studentCheckInMock struct {
	result *service.CheckInResult
	err    error
}

func (m *studentCheckInMock) CheckInStudentToday(ctx context.Context, studentID string, now time.Time) (*service.CheckInResult, error) {
	return m.result, m.err
}

func TestStudentListFilter(t *testing.T) {
	students := &studentServiceMock{}
	h := NewStudentHandler(students, &studentCheckInMock{}, time.UTC, nil)

	c, w := newContext(http.MethodGet, "/students?search=kim&teacher=Lee&active=true&page=2&limit=20&sort=name&order=desc", nil)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "kim", students.filter.Search)
	assert.Equal(t, "Lee", students.filter.Teacher)
	require.NotNil(t, students.filter.Active)
	assert.True(t, *students.filter.Active)
	assert.Equal(t, 2, students.filter.Page)
	assert.Equal(t, 20, students.filter.PageSize)
	env := decode(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
}

func TestStudentCreate(t *testing.T) {
	students := &studentServiceMock{result: &service.StudentResult{Student: &models.Student{ID: "s-1"}, LessonsWritten: 105}}
	h := NewStudentHandler(students, &studentCheckInMock{}, time.UTC, nil)

	c, w := newContext(http.MethodPost, "/students", service.StudentRequest{Name: "Kim", Teacher: "Lee", Phone: "01012345678"})
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	var result service.StudentResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &result))
	assert.Equal(t, 105, result.LessonsWritten)
}

func TestStudentCreatePartialFailureKeepsStudent(t *testing.T) {
	partial := appErrors.WithDetails(appErrors.Clone(appErrors.ErrPartialFailure, ""), "written", 500, "retry_queued", true)
	students := &studentServiceMock{
		result: &service.StudentResult{Student: &models.Student{ID: "s-1"}, LessonsWritten: 500},
		err:    partial,
	}
	h := NewStudentHandler(students, &studentCheckInMock{}, time.UTC, nil)

	c, w := newContext(http.MethodPost, "/students", service.StudentRequest{Name: "Kim", Teacher: "Lee", Phone: "01012345678"})
	h.Create(c)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrPartialFailure.Code, env.Error.Code)
	assert.Equal(t, true, env.Error.Details["retry_queued"])
	var result service.StudentResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "s-1", result.Student.ID)
}

func TestStudentCreatePhoneConflict(t *testing.T) {
	students := &studentServiceMock{err: appErrors.Clone(appErrors.ErrConflict, "phone already registered")}
	h := NewStudentHandler(students, &studentCheckInMock{}, time.UTC, nil)
	c, w := newContext(http.MethodPost, "/students", service.StudentRequest{Name: "Kim", Teacher: "Lee", Phone: "010"})
	h.Create(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStudentLessonsDefaultsWindow(t *testing.T) {
	students := &studentServiceMock{}
	h := NewStudentHandler(students, &studentCheckInMock{}, time.UTC, nil)
	h.now = func() time.Time { return time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC) }

	c, w := newContext(http.MethodGet, "/students/s-1/lessons", nil, idParam("s-1"))
	h.Lessons(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2025-03-04", students.from.Format("2006-01-02"))
	assert.Equal(t, "2025-04-03", students.to.Format("2006-01-02"))
	assert.Equal(t, "[]", string(decode(t, w).Data))
}

func TestStudentLessonsRejectsInvertedRange(t *testing.T) {
	h := NewStudentHandler(&studentServiceMock{}, &studentCheckInMock{}, time.UTC, nil)
	c, w := newContext(http.MethodGet, "/students/s-1/lessons?from=2025-03-10&to=2025-03-01", nil, idParam("s-1"))
	h.Lessons(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStudentPurgeRequiresWithdrawal(t *testing.T) {
	students := &studentServiceMock{err: appErrors.Clone(appErrors.ErrConflict, "withdraw the student before purging")}
	h := NewStudentHandler(students, &studentCheckInMock{}, time.UTC, nil)
	c, w := newContext(http.MethodDelete, "/students/s-1", nil, idParam("s-1"))
	h.Purge(c)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "s-1", students.purged)
}

func TestStudentCheckInBestEffort(t *testing.T) {
	attendance := &studentCheckInMock{result: &service.CheckInResult{
		Attempted: 2,
		Succeeded: 1,
		Warnings:  []*appErrors.Error{appErrors.Clone(appErrors.ErrInternal, "write failed")},
	}}
	h := NewStudentHandler(&studentServiceMock{}, attendance, time.UTC, nil)
	c, w := newContext(http.MethodPost, "/students/s-1/check-in", nil, idParam("s-1"))
	h.CheckIn(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Len(t, env.Warnings, 1)
	var result service.CheckInResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 1, result.Succeeded)
}
