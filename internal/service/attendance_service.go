package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-schedule-api/internal/models"
	"github.com/noah-isme/academy-schedule-api/internal/schedule"
	"github.com/noah-isme/academy-schedule-api/pkg/config"
	appErrors "github.com/noah-isme/academy-schedule-api/pkg/errors"
)

const (
	checkInPathKiosk   = "kiosk"
	checkInPathLesson  = "console_lesson"
	checkInPathStudent = "console_student"
)

type attendanceStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindActiveByPhone(ctx context.Context, phone string) ([]models.Student, error)
}

// KioskCheckInRequest is the payload typed on the kiosk keypad.
type KioskCheckInRequest struct {
	Phone string `json:"phone" validate:"required"`
}

// CheckInResult summarises a check-in for display on the kiosk or console.
type CheckInResult struct {
	StudentID   string             `json:"student_id,omitempty"`
	StudentName string             `json:"student_name,omitempty"`
	Lessons     []models.Lesson    `json:"lessons"`
	Attempted   int                `json:"attempted"`
	Succeeded   int                `json:"succeeded"`
	Message     string             `json:"message"`
	Warnings    []*appErrors.Error `json:"-"`
}

// AttendanceOptions carries the academy clock and kiosk policy.
type AttendanceOptions struct {
	Location      *time.Location
	KioskPolicy   string
	ReadingLength time.Duration
}

// AttendanceService records arrivals from the kiosk and the teacher console.
type AttendanceService struct {
	students  attendanceStudentRepository
	lessons   *LessonStore
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	opts      AttendanceOptions
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(students attendanceStudentRepository, lessons *LessonStore, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, opts AttendanceOptions) *AttendanceService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.KioskPolicy != config.CheckInPolicyAll {
		opts.KioskPolicy = config.CheckInPolicyFirst
	}
	if opts.ReadingLength <= 0 {
		opts.ReadingLength = 90 * time.Minute
	}
	return &AttendanceService{students: students, lessons: lessons, validator: validate, metrics: metrics, logger: logger, opts: opts}
}

// CheckInByPhone resolves the active student behind a phone number and checks in today's
// pending lessons. Under the "first" policy only the earliest pending lesson is marked.
func (s *AttendanceService) CheckInByPhone(ctx context.Context, req KioskCheckInRequest, now time.Time) (*CheckInResult, error) {
	result, err := s.checkInByPhone(ctx, req, now)
	s.recordOutcome(checkInPathKiosk, err)
	return result, err
}

func (s *AttendanceService) checkInByPhone(ctx context.Context, req KioskCheckInRequest, now time.Time) (*CheckInResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "phone number is required")
	}
	phone := NormalizePhone(req.Phone)
	if phone == "" {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "phone number must contain digits"), "phone", req.Phone)
	}

	matches, err := s.students.FindActiveByPhone(ctx, phone)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up phone number")
	}
	if len(matches) == 0 {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "no student registered with this number"), "phone", phone)
	}
	var warnings []*appErrors.Error
	if len(matches) > 1 {
		s.logger.Warn("phone number matches several active students",
			zap.String("phone", phone),
			zap.Int("matches", len(matches)),
			zap.String("chosen_student_id", matches[0].ID))
		warnings = append(warnings, appErrors.WithDetails(appErrors.Clone(appErrors.ErrAmbiguous, "phone number matches several students; the first was used"),
			"phone", phone, "matches", len(matches), "student_id", matches[0].ID))
	}
	student := matches[0]

	today := schedule.DateOf(now.In(s.opts.Location))
	pending, err := s.pendingToday(ctx, student.ID, today, nil)
	if err != nil {
		return nil, err
	}
	if s.opts.KioskPolicy == config.CheckInPolicyFirst {
		pending = pending[:1]
	}

	result := s.apply(ctx, pending, now, s.opts.KioskPolicy == config.CheckInPolicyAll)
	if result.Succeeded == 0 {
		return nil, result.Warnings[0]
	}
	result.StudentID = student.ID
	result.StudentName = student.Name
	result.Warnings = append(warnings, result.Warnings...)
	result.Message = arrivalMessage(student.Name, result.Lessons)
	return result, nil
}

// CheckInLesson marks a single lesson present from the teacher console.
func (s *AttendanceService) CheckInLesson(ctx context.Context, lessonID string, now time.Time) (*CheckInResult, error) {
	result, err := s.checkInLesson(ctx, lessonID, now)
	s.recordOutcome(checkInPathLesson, err)
	return result, err
}

func (s *AttendanceService) checkInLesson(ctx context.Context, lessonID string, now time.Time) (*CheckInResult, error) {
	lesson, err := s.lessons.Get(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.Type.Artifact() || lesson.StudentID == nil {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "memo and task entries have no attendance"), "lesson_id", lessonID)
	}
	if lesson.Status != models.LessonStatusUnset {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrAlreadyProcessed, "attendance already recorded for this lesson"), "lesson_id", lessonID, "status", string(lesson.Status))
	}

	result := s.apply(ctx, []models.Lesson{*lesson}, now, false)
	if result.Succeeded == 0 {
		return nil, result.Warnings[0]
	}
	result.StudentID = *lesson.StudentID
	result.Message = arrivalMessage("", result.Lessons)
	return result, nil
}

// CheckInStudentToday marks every pending one-to-one and reading lesson of the student today.
// Each lesson is attempted independently; failures are reported as warnings.
func (s *AttendanceService) CheckInStudentToday(ctx context.Context, studentID string, now time.Time) (*CheckInResult, error) {
	result, err := s.checkInStudentToday(ctx, studentID, now)
	s.recordOutcome(checkInPathStudent, err)
	return result, err
}

func (s *AttendanceService) checkInStudentToday(ctx context.Context, studentID string, now time.Time) (*CheckInResult, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "student not found"), "student_id", studentID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	today := schedule.DateOf(now.In(s.opts.Location))
	pending, err := s.pendingToday(ctx, student.ID, today, models.GeneratedLessonTypes)
	if err != nil {
		return nil, err
	}

	result := s.apply(ctx, pending, now, true)
	result.StudentID = student.ID
	result.StudentName = student.Name
	if result.Succeeded == 0 {
		result.Message = fmt.Sprintf("%s: no lesson could be checked in", student.Name)
		return result, nil
	}
	result.Message = arrivalMessage(student.Name, result.Lessons)
	return result, nil
}

// pendingToday returns the student's unset lessons for the day in slot order, failing with
// NoLessonsToday or AlreadyProcessed when there is nothing left to mark.
func (s *AttendanceService) pendingToday(ctx context.Context, studentID string, today time.Time, types []models.LessonType) ([]models.Lesson, error) {
	records, err := s.lessons.ListForStudentDateRange(ctx, studentID, today, today)
	if err != nil {
		return nil, err
	}
	var scheduled, pending []models.Lesson
	for _, record := range records {
		if record.Type.Artifact() || !typeIn(record.Type, types) {
			continue
		}
		scheduled = append(scheduled, record.Lesson)
		if record.Status == models.LessonStatusUnset {
			pending = append(pending, record.Lesson)
		}
	}
	date := today.Format(schedule.DateLayout)
	if len(scheduled) == 0 {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrNoLessonsToday, "no lessons scheduled today"), "student_id", studentID, "date", date)
	}
	if len(pending) == 0 {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrAlreadyProcessed, "attendance already recorded for every lesson today"), "student_id", studentID, "date", date)
	}
	return pending, nil
}

// apply writes attendance for each lesson. With bestEffort set, a failed write does not stop
// the remaining lessons.
func (s *AttendanceService) apply(ctx context.Context, lessons []models.Lesson, now time.Time, bestEffort bool) *CheckInResult {
	result := &CheckInResult{Lessons: []models.Lesson{}}
	for _, lesson := range lessons {
		result.Attempted++
		update := AssessArrival(lesson, now, s.opts.Location, s.opts.ReadingLength)
		if err := s.lessons.RecordCheckIn(ctx, lesson.ID, update); err != nil {
			s.logger.Warn("check-in write failed", zap.String("lesson_id", lesson.ID), zap.Error(err))
			result.Warnings = append(result.Warnings, appErrors.FromError(err))
			if !bestEffort {
				break
			}
			continue
		}
		applyUpdate(&lesson, update)
		result.Lessons = append(result.Lessons, lesson)
		result.Succeeded++
	}
	return result
}

func (s *AttendanceService) recordOutcome(path string, err error) {
	if err == nil {
		s.metrics.RecordCheckIn(path, string(models.LessonStatusPresent))
		return
	}
	s.metrics.RecordCheckIn(path, strings.ToLower(appErrors.FromError(err).Code))
}

// AssessArrival computes the attendance fields for a lesson checked in at now. Reading lessons
// record a display window; other lessons compare now to the test time on the lesson's date.
// Lateness is truncated to whole minutes and clamped at zero; a missing or malformed test time
// leaves lateness unknown.
func AssessArrival(lesson models.Lesson, now time.Time, loc *time.Location, readingLength time.Duration) models.AttendanceUpdate {
	local := now.In(loc)
	checkedAt := now.UTC()
	update := models.AttendanceUpdate{Status: models.LessonStatusPresent, CheckedInAt: &checkedAt}

	if lesson.Type == models.LessonTypeReading {
		window := fmt.Sprintf("%s - %s", local.Format("15:04"), local.Add(readingLength).Format("15:04"))
		update.CheckinTime = &window
		return update
	}

	stamp := local.Format("15:04")
	update.CheckinTime = &stamp
	if lesson.TestTime == nil {
		return update
	}
	testAt, err := schedule.At(lesson.Date, *lesson.TestTime, loc)
	if err != nil {
		return update
	}
	lateness := int(now.Sub(testAt) / time.Minute)
	onTime := lateness <= 0
	late := 0
	if lateness > 0 {
		late = lateness
	}
	update.LateMinutes = &late
	update.OnTime = &onTime
	return update
}

// NormalizePhone strips everything but digits so "010-1234-5678" and "01012345678" match.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func applyUpdate(lesson *models.Lesson, update models.AttendanceUpdate) {
	lesson.Status = update.Status
	lesson.CheckinTime = update.CheckinTime
	lesson.CheckedInAt = update.CheckedInAt
	lesson.LateMinutes = update.LateMinutes
	lesson.OnTime = update.OnTime
}

func arrivalMessage(name string, lessons []models.Lesson) string {
	parts := make([]string, 0, len(lessons))
	for _, lesson := range lessons {
		switch {
		case lesson.OnTime == nil:
			parts = append(parts, fmt.Sprintf("%s checked in", lesson.Time))
		case *lesson.OnTime:
			parts = append(parts, fmt.Sprintf("%s on time", lesson.Time))
		default:
			parts = append(parts, fmt.Sprintf("%s %d min late", lesson.Time, *lesson.LateMinutes))
		}
	}
	message := strings.Join(parts, ", ")
	if name != "" {
		message = name + ": " + message
	}
	return message
}

func typeIn(t models.LessonType, types []models.LessonType) bool {
	if len(types) == 0 {
		return true
	}
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
