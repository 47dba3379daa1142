package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-schedule-api/internal/models"
	"github.com/noah-isme/academy-schedule-api/pkg/config"
	appErrors "github.com/noah-isme/academy-schedule-api/pkg/errors"
)

var kst = time.FixedZone("KST", 9*60*60)

func kstAt(day string, hour, minute int) time.Time {
	d := mustDate(day)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, kst)
}

type attendanceFixture struct {
	lessons  *memLessonRepo
	students *memStudentRepo
	service  *AttendanceService
	student  models.Student
}

func newAttendanceFixture(t *testing.T, policy string) *attendanceFixture {
	t.Helper()
	students := newMemStudentRepo(models.Student{Name: "Minji", Teacher: "Kim", Phone: "01012345678", EnrolledOn: mustDate("2024-01-01")})
	list, _, err := students.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	lessons := newMemLessonRepo()
	store := NewLessonStore(lessons, nil, nil, 0, nil)
	svc := NewAttendanceService(students, store, nil, nil, nil, AttendanceOptions{Location: kst, KioskPolicy: policy})
	return &attendanceFixture{lessons: lessons, students: students, service: svc, student: list[0]}
}

func (f *attendanceFixture) seed(day, slot string, lessonType models.LessonType, testTime *string) string {
	return f.lessons.seed(models.Lesson{StudentID: strPtr(f.student.ID), Date: mustDate(day), Time: slot, TestTime: testTime, Type: lessonType})
}

func TestAssessArrivalSignConvention(t *testing.T) {
	lesson := models.Lesson{Date: mustDate("2024-01-09"), Time: "16:40-17:20", TestTime: strPtr("16:00"), Type: models.LessonTypeOneToOne}

	early := AssessArrival(lesson, kstAt("2024-01-09", 15, 55), kst, 90*time.Minute)
	require.NotNil(t, early.OnTime)
	assert.True(t, *early.OnTime)
	assert.Equal(t, 0, *early.LateMinutes)
	assert.Equal(t, "15:55", *early.CheckinTime)

	exact := AssessArrival(lesson, kstAt("2024-01-09", 16, 0), kst, 90*time.Minute)
	assert.True(t, *exact.OnTime)

	late := AssessArrival(lesson, kstAt("2024-01-09", 16, 7).Add(59*time.Second), kst, 90*time.Minute)
	assert.False(t, *late.OnTime)
	assert.Equal(t, 7, *late.LateMinutes, "lateness truncates toward zero")
}

func TestAssessArrivalWithoutUsableTestTime(t *testing.T) {
	now := kstAt("2024-01-09", 16, 7)
	for _, testTime := range []*string{nil, strPtr("4pm")} {
		update := AssessArrival(models.Lesson{Date: mustDate("2024-01-09"), TestTime: testTime, Type: models.LessonTypeOneToOne}, now, kst, 90*time.Minute)
		assert.Equal(t, models.LessonStatusPresent, update.Status)
		assert.Nil(t, update.LateMinutes)
		assert.Nil(t, update.OnTime)
		assert.NotNil(t, update.CheckinTime)
	}
}

func TestAssessArrivalReadingWindow(t *testing.T) {
	update := AssessArrival(models.Lesson{Date: mustDate("2024-01-10"), TestTime: strPtr("17:00"), Type: models.LessonTypeReading}, kstAt("2024-01-10", 17, 5), kst, 90*time.Minute)
	require.NotNil(t, update.CheckinTime)
	assert.Equal(t, "17:05 - 18:35", *update.CheckinTime)
	assert.Nil(t, update.LateMinutes)
	assert.Nil(t, update.OnTime)
}

func TestCheckInLessonLate(t *testing.T) {
	f := newAttendanceFixture(t, config.CheckInPolicyFirst)
	id := f.seed("2024-01-09", "16:40-17:20", models.LessonTypeOneToOne, strPtr("16:00"))

	result, err := f.service.CheckInLesson(context.Background(), id, kstAt("2024-01-09", 16, 7))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)

	stored := f.lessons.get(id)
	assert.Equal(t, models.LessonStatusPresent, stored.Status)
	assert.False(t, *stored.OnTime)
	assert.Equal(t, 7, *stored.LateMinutes)

	_, err = f.service.CheckInLesson(context.Background(), id, kstAt("2024-01-09", 16, 9))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyProcessed))
	assert.Equal(t, 7, *f.lessons.get(id).LateMinutes)
}

func TestCheckInLessonRejectsArtifacts(t *testing.T) {
	f := newAttendanceFixture(t, config.CheckInPolicyFirst)
	memo := f.lessons.seed(models.Lesson{Teacher: strPtr("Kim"), Date: mustDate("2024-01-09"), Time: "16:00-16:40", Type: models.LessonTypeMemo})

	_, err := f.service.CheckInLesson(context.Background(), memo, kstAt("2024-01-09", 16, 0))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.service.CheckInLesson(context.Background(), "missing", kstAt("2024-01-09", 16, 0))
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestKioskCheckInMarksFirstPendingOnly(t *testing.T) {
	f := newAttendanceFixture(t, config.CheckInPolicyFirst)
	first := f.seed("2024-01-09", "16:40-17:20", models.LessonTypeOneToOne, strPtr("16:00"))
	second := f.seed("2024-01-09", "18:00-18:40", models.LessonTypeReading, nil)
	ctx := context.Background()

	result, err := f.service.CheckInByPhone(ctx, KioskCheckInRequest{Phone: "010-1234-5678"}, kstAt("2024-01-09", 15, 58))
	require.NoError(t, err)
	assert.Equal(t, "Minji", result.StudentName)
	require.Len(t, result.Lessons, 1)
	assert.Equal(t, first, result.Lessons[0].ID)
	assert.Equal(t, models.LessonStatusUnset, f.lessons.get(second).Status)

	_, err = f.service.CheckInByPhone(ctx, KioskCheckInRequest{Phone: "01012345678"}, kstAt("2024-01-09", 17, 59))
	require.NoError(t, err)
	assert.Equal(t, models.LessonStatusPresent, f.lessons.get(second).Status)

	_, err = f.service.CheckInByPhone(ctx, KioskCheckInRequest{Phone: "01012345678"}, kstAt("2024-01-09", 18, 30))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyProcessed))
}

func TestKioskCheckInAllPolicy(t *testing.T) {
	f := newAttendanceFixture(t, config.CheckInPolicyAll)
	f.seed("2024-01-09", "16:40-17:20", models.LessonTypeOneToOne, strPtr("16:00"))
	f.seed("2024-01-09", "18:00-18:40", models.LessonTypeMakeup, strPtr("17:40"))

	result, err := f.service.CheckInByPhone(context.Background(), KioskCheckInRequest{Phone: "01012345678"}, kstAt("2024-01-09", 15, 58))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
}

func TestKioskCheckInLookupFailures(t *testing.T) {
	f := newAttendanceFixture(t, config.CheckInPolicyFirst)
	ctx := context.Background()
	now := kstAt("2024-01-09", 16, 0)

	_, err := f.service.CheckInByPhone(ctx, KioskCheckInRequest{Phone: "01099999999"}, now)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, "01099999999", appErrors.FromError(err).Details["phone"])

	_, err = f.service.CheckInByPhone(ctx, KioskCheckInRequest{Phone: "01012345678"}, now)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNoLessonsToday))

	_, err = f.service.CheckInByPhone(ctx, KioskCheckInRequest{Phone: ""}, now)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestKioskCheckInAmbiguousPhoneUsesFirstMatch(t *testing.T) {
	f := newAttendanceFixture(t, config.CheckInPolicyFirst)
	twin := models.Student{Name: "Minseo", Teacher: "Lee", Phone: "01012345678", EnrolledOn: mustDate("2024-01-01")}
	require.NoError(t, f.students.Create(context.Background(), &twin))
	f.seed("2024-01-09", "16:40-17:20", models.LessonTypeOneToOne, strPtr("16:00"))

	result, err := f.service.CheckInByPhone(context.Background(), KioskCheckInRequest{Phone: "01012345678"}, kstAt("2024-01-09", 16, 0))
	require.NoError(t, err)
	assert.Equal(t, f.student.ID, result.StudentID)
	require.NotEmpty(t, result.Warnings)
	assert.True(t, appErrors.Is(result.Warnings[0], appErrors.ErrAmbiguous))
}

func TestConsoleStudentCheckInIsBestEffort(t *testing.T) {
	f := newAttendanceFixture(t, config.CheckInPolicyFirst)
	one := f.seed("2024-01-09", "16:40-17:20", models.LessonTypeOneToOne, strPtr("16:00"))
	reading := f.seed("2024-01-09", "18:00-18:40", models.LessonTypeReading, nil)
	makeup := f.seed("2024-01-09", "20:00-20:40", models.LessonTypeMakeup, strPtr("19:40"))

	result, err := f.service.CheckInStudentToday(context.Background(), f.student.ID, kstAt("2024-01-09", 16, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempted)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, models.LessonStatusPresent, f.lessons.get(one).Status)
	assert.Equal(t, models.LessonStatusPresent, f.lessons.get(reading).Status)
	assert.Equal(t, models.LessonStatusUnset, f.lessons.get(makeup).Status)

	f.lessons.failAttendance = errInjected
	_, err = f.service.CheckInStudentToday(context.Background(), f.student.ID, kstAt("2024-01-09", 16, 3))
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyProcessed))
}

func TestConsoleStudentCheckInReportsFailures(t *testing.T) {
	f := newAttendanceFixture(t, config.CheckInPolicyFirst)
	f.seed("2024-01-09", "16:40-17:20", models.LessonTypeOneToOne, strPtr("16:00"))
	f.seed("2024-01-09", "18:00-18:40", models.LessonTypeReading, nil)
	f.lessons.failAttendance = errInjected

	result, err := f.service.CheckInStudentToday(context.Background(), f.student.ID, kstAt("2024-01-09", 16, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempted, "every lesson is attempted")
	assert.Zero(t, result.Succeeded)
	assert.Len(t, result.Warnings, 2)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "01012345678", NormalizePhone(" 010-1234-5678 "))
	assert.Equal(t, "", NormalizePhone("n/a"))
}
