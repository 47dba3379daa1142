package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-schedule-api/internal/models"
	"github.com/noah-isme/academy-schedule-api/internal/schedule"
	appErrors "github.com/noah-isme/academy-schedule-api/pkg/errors"
	"github.com/noah-isme/academy-schedule-api/pkg/jobs"
)

// RegenerationJobType identifies queued regeneration retries.
const RegenerationJobType = "lessons.regenerate"

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsActiveByPhone(ctx context.Context, phone, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Withdraw(ctx context.Context, id string, date time.Time) error
	Delete(ctx context.Context, id string) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// RegenerationJob is the payload of a queued regeneration retry.
type RegenerationJob struct {
	StudentID string
	From      time.Time
}

// StudentRequest holds the profile and weekly pattern entered on the roster screen.
type StudentRequest struct {
	Name              string            `json:"name" validate:"required"`
	School            string            `json:"school"`
	Grade             string            `json:"grade"`
	Teacher           string            `json:"teacher" validate:"required"`
	Phone             string            `json:"phone" validate:"required"`
	EnrolledOn        string            `json:"enrolled_on" validate:"omitempty,ymd"`
	OneToOneDay       string            `json:"one_day"`
	OneToOneTestTime  string            `json:"one_test_time"`
	OneToOneClassTime string            `json:"one_class_time"`
	ReadingDays       map[string]string `json:"reading_days"`
	// EffectiveFrom is the regeneration cutover for edits; it defaults to today.
	EffectiveFrom string `json:"effective_from" validate:"omitempty,ymd"`
}

// WithdrawRequest carries the withdrawal date.
type WithdrawRequest struct {
	Date string `json:"date" validate:"required,ymd"`
}

// StudentResult is returned by writes that touch the student's lessons.
type StudentResult struct {
	Student        *models.Student `json:"student"`
	LessonsWritten int             `json:"lessons_written"`
	LessonsDeleted int             `json:"lessons_deleted"`
}

// StudentOptions configures materialization for the roster.
type StudentOptions struct {
	Location     *time.Location
	HorizonYears int
}

// StudentService handles roster use-cases and keeps materialized lessons in step with each pattern.
// Writes touching one student's lessons, queued retries included, run one at a time per student.
type StudentService struct {
	repo      studentRepository
	lessons   *LessonStore
	queue     jobEnqueuer
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	opts      StudentOptions
	now       func() time.Time
	locks     jobs.KeyLock
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, lessons *LessonStore, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, opts StudentOptions) *StudentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.HorizonYears <= 0 {
		opts.HorizonYears = 7
	}
	return &StudentService{repo: repo, lessons: lessons, metrics: metrics, validator: validate, logger: logger, opts: opts, now: time.Now}
}

// SetRetryQueue wires the queue that receives regeneration retries after a partial failure.
func (s *StudentService) SetRetryQueue(queue jobEnqueuer) {
	s.queue = queue
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	if students == nil {
		students = []models.Student{}
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "student not found"), "student_id", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Lessons returns the student's lessons between from and to.
func (s *StudentService) Lessons(ctx context.Context, id string, from, to time.Time) ([]models.LessonRecord, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.lessons.ListForStudentDateRange(ctx, id, from, to)
}

// Register creates a student and materializes lessons from the enrollment date over the horizon.
// The student is kept when materialization fails part way; the error carries the rows written.
func (s *StudentService) Register(ctx context.Context, req StudentRequest) (*StudentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	pattern, err := parseRequestPattern(req)
	if err != nil {
		return nil, err
	}
	enrolledOn := s.today()
	if req.EnrolledOn != "" {
		if enrolledOn, err = schedule.ParseDate(req.EnrolledOn); err != nil {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid enrollment date, expected YYYY-MM-DD"), "field", "enrolled_on", "value", req.EnrolledOn)
		}
	}
	phone, err := s.uniquePhone(ctx, req.Phone, "")
	if err != nil {
		return nil, err
	}

	student := &models.Student{
		Name:       strings.TrimSpace(req.Name),
		School:     strings.TrimSpace(req.School),
		Grade:      strings.TrimSpace(req.Grade),
		Teacher:    strings.TrimSpace(req.Teacher),
		Phone:      phone,
		EnrolledOn: enrolledOn,
	}
	schedule.ApplyPattern(student, pattern)
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.logger.Info("student registered", zap.String("student_id", student.ID), zap.String("teacher", student.Teacher))
	defer s.locks.Lock(student.ID)()

	result := &StudentResult{Student: student}
	written, err := s.materialize(ctx, student, pattern, enrolledOn)
	result.LessonsWritten = written
	if err != nil {
		return result, s.scheduleRetry(student.ID, enrolledOn, err, 0)
	}
	return result, nil
}

// Update edits the profile and pattern. When the pattern changes, generated lessons from the cutover
// onward are deleted and re-materialized; earlier lessons and ad-hoc rows are left alone.
func (s *StudentService) Update(ctx context.Context, id string, req StudentRequest) (*StudentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	pattern, err := parseRequestPattern(req)
	if err != nil {
		return nil, err
	}
	defer s.locks.Lock(id)()
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !student.Active() {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "withdrawn students cannot be edited"), "student_id", id)
	}
	cutover := s.today()
	if req.EffectiveFrom != "" {
		if cutover, err = schedule.ParseDate(req.EffectiveFrom); err != nil {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid effective date, expected YYYY-MM-DD"), "field", "effective_from", "value", req.EffectiveFrom)
		}
	}
	if cutover.Before(student.EnrolledOn) {
		cutover = student.EnrolledOn
	}
	phone, err := s.uniquePhone(ctx, req.Phone, id)
	if err != nil {
		return nil, err
	}

	before := schedule.PatternOf(*student)
	previousTeacher := student.Teacher
	student.Name = strings.TrimSpace(req.Name)
	student.School = strings.TrimSpace(req.School)
	student.Grade = strings.TrimSpace(req.Grade)
	student.Teacher = strings.TrimSpace(req.Teacher)
	student.Phone = phone
	schedule.ApplyPattern(student, pattern)
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	result := &StudentResult{Student: student}
	if student.Teacher != previousTeacher {
		moved, err := s.lessons.ReassignTeacher(ctx, student.ID, student.Teacher, cutover)
		if err != nil {
			return nil, err
		}
		s.logger.Info("lessons reassigned",
			zap.String("student_id", student.ID),
			zap.String("from_teacher", previousTeacher),
			zap.String("to_teacher", student.Teacher),
			zap.Int("lessons", moved))
	}
	if samePattern(before, pattern) {
		s.lessons.InvalidateBoards(ctx)
		return result, nil
	}
	deleted, written, err := s.Regenerate(ctx, student, cutover)
	result.LessonsDeleted, result.LessonsWritten = deleted, written
	if err != nil {
		return result, s.scheduleRetry(student.ID, cutover, err, deleted)
	}
	return result, nil
}

// Regenerate deletes the student's generated lessons from the cutover and materializes the current
// pattern again up to the horizon, or the day before withdrawal. Delete always finishes before insert.
// Lessons holding a makeup survive the delete so the makeup keeps its original; they leave only
// through reset or withdrawal. Callers hold the student's lock.
func (s *StudentService) Regenerate(ctx context.Context, student *models.Student, cutover time.Time) (int, int, error) {
	cutover = schedule.DateOf(cutover)
	deleted, err := s.lessons.DeleteFutureGenerated(ctx, student.ID, cutover)
	if err != nil {
		return 0, 0, err
	}
	written, err := s.materialize(ctx, student, schedule.PatternOf(*student), cutover)
	s.metrics.RecordRegeneration(deleted, written)
	s.logger.Info("lessons regenerated",
		zap.String("student_id", student.ID),
		zap.String("from", cutover.Format(schedule.DateLayout)),
		zap.Int("deleted", deleted),
		zap.Int("written", written),
		zap.Error(err))
	return deleted, written, err
}

// Withdraw stamps the withdrawal date and removes every lesson of the student from that date on.
// Makeups dated from then are unlinked from their originals, originals dated from then give up
// their makeup wherever it is dated, and the remaining generated lessons are deleted last.
func (s *StudentService) Withdraw(ctx context.Context, id string, req WithdrawRequest) (*StudentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "withdrawal date is required")
	}
	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid withdrawal date, expected YYYY-MM-DD"), "field", "date", "value", req.Date)
	}
	defer s.locks.Lock(id)()
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !student.Active() {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "student already withdrawn"), "student_id", id, "withdrawn_on", student.WithdrawnOn.Format(schedule.DateLayout))
	}
	if date.Before(student.EnrolledOn) {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "withdrawal precedes enrollment"), "field", "date", "value", req.Date)
	}

	if err := s.repo.Withdraw(ctx, id, date); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw student")
	}
	student.WithdrawnOn = &date

	makeups, err := s.lessons.ListMakeupsFrom(ctx, id, date)
	if err != nil {
		return nil, err
	}
	removed := 0
	for _, makeup := range makeups {
		if err := s.lessons.RemoveMakeup(ctx, makeup); err != nil {
			return nil, err
		}
		removed++
	}
	released, err := s.lessons.ReleaseLinkedFrom(ctx, id, date)
	if err != nil {
		return nil, err
	}
	removed += released
	deleted, err := s.lessons.DeleteFutureGenerated(ctx, id, date)
	if err != nil {
		return nil, err
	}
	s.logger.Info("student withdrawn",
		zap.String("student_id", id),
		zap.String("date", date.Format(schedule.DateLayout)),
		zap.Int("makeups_removed", removed),
		zap.Int("lessons_deleted", deleted))
	return &StudentResult{Student: student, LessonsDeleted: deleted + removed}, nil
}

// Purge removes a withdrawn student's record together with the lessons still attached to it.
func (s *StudentService) Purge(ctx context.Context, id string) error {
	defer s.locks.Lock(id)()
	student, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if student.Active() {
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "withdraw the student before deleting the record"), "student_id", id)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "student not found"), "student_id", id)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.lessons.InvalidateBoards(ctx)
	s.logger.Info("student purged", zap.String("student_id", id))
	return nil
}

// HandleRegenerationJob re-runs delete-then-insert for a queued retry. Errors make the queue retry.
func (s *StudentService) HandleRegenerationJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(RegenerationJob)
	if !ok {
		s.logger.Error("unexpected regeneration payload", zap.String("job_id", job.ID))
		return nil
	}
	defer s.locks.Lock(payload.StudentID)()
	student, err := s.Get(ctx, payload.StudentID)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrNotFound) {
			return nil
		}
		return err
	}
	_, _, err = s.Regenerate(ctx, student, payload.From)
	return err
}

func (s *StudentService) materialize(ctx context.Context, student *models.Student, pattern models.RecurringPattern, from time.Time) (int, error) {
	to := schedule.HorizonEnd(from, s.opts.HorizonYears)
	if student.WithdrawnOn != nil {
		if last := student.WithdrawnOn.AddDate(0, 0, -1); last.Before(to) {
			to = last
		}
	}
	if to.Before(from) || pattern.Empty() {
		return 0, nil
	}
	drafts, err := schedule.Materialize(pattern, from, to)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid materialization window")
	}
	return s.lessons.InsertDrafts(ctx, student.ID, student.Teacher, drafts)
}

func (s *StudentService) scheduleRetry(studentID string, from time.Time, err error, deleted int) error {
	if !appErrors.Is(err, appErrors.ErrPartialFailure) {
		return err
	}
	partial := appErrors.WithDetails(appErrors.FromError(err), "deleted", deleted, "retry_queued", false)
	if s.queue == nil {
		return partial
	}
	job := jobs.Job{ID: uuid.NewString(), Type: RegenerationJobType, Key: studentID, Payload: RegenerationJob{StudentID: studentID, From: from}}
	if qErr := s.queue.Enqueue(job); qErr != nil {
		s.logger.Warn("regeneration retry not queued", zap.String("student_id", studentID), zap.Error(qErr))
		return partial
	}
	return appErrors.WithDetails(partial, "retry_queued", true, "retry_job_id", job.ID)
}

func (s *StudentService) uniquePhone(ctx context.Context, raw, excludeID string) (string, error) {
	phone := NormalizePhone(raw)
	if phone == "" {
		return "", appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "phone number must contain digits"), "field", "phone", "value", raw)
	}
	exists, err := s.repo.ExistsActiveByPhone(ctx, phone, excludeID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate phone")
	}
	if exists {
		return "", appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "phone number already used by an active student"), "phone", phone)
	}
	return phone, nil
}

func (s *StudentService) today() time.Time {
	return schedule.DateOf(s.now().In(s.opts.Location))
}

func parseRequestPattern(req StudentRequest) (models.RecurringPattern, error) {
	pattern, err := schedule.ParsePattern(schedule.RawPattern{
		OneToOneDay:       req.OneToOneDay,
		OneToOneTestTime:  req.OneToOneTestTime,
		OneToOneClassTime: req.OneToOneClassTime,
		ReadingDays:       req.ReadingDays,
	})
	if err != nil {
		var fieldErr *schedule.FieldError
		if errors.As(err, &fieldErr) {
			return pattern, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid weekly pattern: %s", fieldErr.Reason)),
				"field", fieldErr.Field, "value", fieldErr.Value)
		}
		return pattern, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid weekly pattern")
	}
	return pattern, nil
}

func samePattern(a, b models.RecurringPattern) bool {
	if (a.OneToOne == nil) != (b.OneToOne == nil) {
		return false
	}
	if a.OneToOne != nil && *a.OneToOne != *b.OneToOne {
		return false
	}
	return string(schedule.EncodeReadingDays(a.Reading)) == string(schedule.EncodeReadingDays(b.Reading))
}
