package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/academy-schedule-api/internal/models"
	"github.com/noah-isme/academy-schedule-api/internal/repository"
	"github.com/noah-isme/academy-schedule-api/internal/schedule"
	appErrors "github.com/noah-isme/academy-schedule-api/pkg/errors"
)

const defaultInsertChunk = 500

type lessonRepository interface {
	InsertBatch(ctx context.Context, lessons []models.Lesson) (int, error)
	Create(ctx context.Context, lesson *models.Lesson) error
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	List(ctx context.Context, filter models.LessonFilter) ([]models.LessonRecord, error)
	ExistsForStudentAt(ctx context.Context, studentID string, date time.Time, slot string) (bool, error)
	DeleteFutureGenerated(ctx context.Context, studentID string, types []models.LessonType, from time.Time) (int, error)
	UpdateAttendance(ctx context.Context, id string, update models.AttendanceUpdate) error
	MarkAbsent(ctx context.Context, id, reason string) error
	SetMakeupLink(ctx context.Context, originalID string, makeupID *string) error
	ClearAttendance(ctx context.Context, id string) error
	UpdateMemo(ctx context.Context, id string, memo *string) error
	Delete(ctx context.Context, id string) error
	ListMakeupsFrom(ctx context.Context, studentID string, from time.Time) ([]models.Lesson, error)
	ListLinkedFrom(ctx context.Context, studentID string, types []models.LessonType, from time.Time) ([]models.Lesson, error)
	ReassignTeacher(ctx context.Context, studentID, teacher string, from time.Time) (int, error)
}

// LessonStore owns every write to lesson rows and keeps makeup links consistent.
type LessonStore struct {
	repo      lessonRepository
	cache     *CacheService
	metrics   *MetricsService
	chunkSize int
	logger    *zap.Logger
}

// NewLessonStore constructs the lesson store.
func NewLessonStore(repo lessonRepository, cache *CacheService, metrics *MetricsService, chunkSize int, logger *zap.Logger) *LessonStore {
	if chunkSize <= 0 {
		chunkSize = defaultInsertChunk
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonStore{repo: repo, cache: cache, metrics: metrics, chunkSize: chunkSize, logger: logger}
}

// InsertDrafts persists materialized drafts for a student in sequential chunks, stamping each row
// with the teacher in charge at materialization time. Chunks already written stay in place when a
// later one fails; the failure is returned as a partial failure carrying the number of rows written.
func (s *LessonStore) InsertDrafts(ctx context.Context, studentID, teacher string, drafts []models.LessonDraft) (int, error) {
	if len(drafts) == 0 {
		return 0, nil
	}
	defer s.cache.InvalidateBoards(ctx)

	written := 0
	for start := 0; start < len(drafts); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(drafts) {
			end = len(drafts)
		}
		batch := make([]models.Lesson, 0, end-start)
		for _, draft := range drafts[start:end] {
			batch = append(batch, draftLesson(studentID, teacher, draft))
		}
		inserted, err := s.repo.InsertBatch(ctx, batch)
		if err != nil {
			s.metrics.RecordMaterialized(written)
			s.logger.Error("lesson batch failed",
				zap.String("student_id", studentID),
				zap.Int("written", written),
				zap.Int("remaining", len(drafts)-start),
				zap.Error(err))
			partial := appErrors.Wrap(err, appErrors.ErrPartialFailure.Code, appErrors.ErrPartialFailure.Status, "lesson materialization stopped part way")
			return written, appErrors.WithDetails(partial, "student_id", studentID, "written", written, "remaining", len(drafts)-start)
		}
		written += inserted
	}
	s.metrics.RecordMaterialized(written)
	return written, nil
}

// ListForDateRange returns the teacher's board between from and to inclusive.
func (s *LessonStore) ListForDateRange(ctx context.Context, teacher string, from, to time.Time, types []models.LessonType) ([]models.LessonRecord, error) {
	if to.Before(from) {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "date range is inverted"), "from", from.Format(schedule.DateLayout), "to", to.Format(schedule.DateLayout))
	}
	for _, t := range types {
		if !t.Valid() {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "unknown lesson type"), "type", string(t))
		}
	}

	key := boardKey(teacher, from, to, joinTypes(types))
	var cached []models.LessonRecord
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	generation := s.cache.BoardGeneration()

	lessons, err := s.repo.List(ctx, models.LessonFilter{Teacher: teacher, DateFrom: &from, DateTo: &to, Types: types})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	if lessons == nil {
		lessons = []models.LessonRecord{}
	}
	s.cache.SetBoard(ctx, key, lessons, generation)
	return lessons, nil
}

// ListForStudentDateRange returns a student's lessons between from and to inclusive.
func (s *LessonStore) ListForStudentDateRange(ctx context.Context, studentID string, from, to time.Time) ([]models.LessonRecord, error) {
	if to.Before(from) {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "date range is inverted"), "from", from.Format(schedule.DateLayout), "to", to.Format(schedule.DateLayout))
	}
	lessons, err := s.repo.List(ctx, models.LessonFilter{StudentID: studentID, DateFrom: &from, DateTo: &to})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student lessons")
	}
	if lessons == nil {
		lessons = []models.LessonRecord{}
	}
	return lessons, nil
}

// Get loads a single lesson.
func (s *LessonStore) Get(ctx context.Context, id string) (*models.Lesson, error) {
	lesson, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "lesson not found"), "lesson_id", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lesson, nil
}

// DeleteFutureGenerated removes the student's materialized lessons dated on or after from.
// Only one-to-one and reading rows are eligible; history and ad-hoc rows are never touched.
func (s *LessonStore) DeleteFutureGenerated(ctx context.Context, studentID string, from time.Time, types ...models.LessonType) (int, error) {
	if len(types) == 0 {
		types = models.GeneratedLessonTypes
	}
	for _, t := range types {
		if !t.Generated() {
			return 0, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "only materialized lesson types can be regenerated"), "type", string(t))
		}
	}
	deleted, err := s.repo.DeleteFutureGenerated(ctx, studentID, types, schedule.DateOf(from))
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete future lessons")
	}
	s.cache.InvalidateBoards(ctx)
	return deleted, nil
}

// RecordCheckIn writes attendance fields produced by a check-in.
func (s *LessonStore) RecordCheckIn(ctx context.Context, lessonID string, update models.AttendanceUpdate) error {
	if err := s.repo.UpdateAttendance(ctx, lessonID, update); err != nil {
		return s.writeError(err, lessonID, "failed to record check-in")
	}
	s.cache.InvalidateBoards(ctx)
	return nil
}

// UpsertAbsence marks the lesson absent with the given reason, overwriting an earlier reason.
func (s *LessonStore) UpsertAbsence(ctx context.Context, lessonID, reason string) (*models.Lesson, error) {
	if err := s.repo.MarkAbsent(ctx, lessonID, reason); err != nil {
		return nil, s.writeError(err, lessonID, "failed to record absence")
	}
	s.cache.InvalidateBoards(ctx)
	return s.Get(ctx, lessonID)
}

// LinkMakeup creates a makeup for the original lesson and points the original at it. The slot must
// be free for the student; a taken slot is a conflict and nothing is written. When the link-back
// write fails the freshly created makeup is deleted again.
func (s *LessonStore) LinkMakeup(ctx context.Context, originalID string, draft models.MakeupDraft) (*models.Lesson, error) {
	original, err := s.Get(ctx, originalID)
	if err != nil {
		return nil, err
	}
	if original.StudentID == nil || !original.Type.Generated() {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "only one-to-one and reading lessons can receive a makeup"), "lesson_id", originalID, "type", string(original.Type))
	}
	if original.MakeupLessonID != nil {
		s.metrics.RecordMakeupLink("conflict")
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "lesson already has a makeup"), "lesson_id", originalID, "makeup_lesson_id", *original.MakeupLessonID)
	}
	if err := validateMakeupDraft(draft); err != nil {
		return nil, err
	}

	date := schedule.DateOf(draft.Date)
	taken, err := s.repo.ExistsForStudentAt(ctx, *original.StudentID, date, draft.Time)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check makeup slot")
	}
	if taken {
		s.metrics.RecordMakeupLink("conflict")
		return nil, slotConflict(*original.StudentID, date, draft.Time)
	}

	makeup := &models.Lesson{
		StudentID:        original.StudentID,
		Teacher:          original.Teacher,
		Date:             date,
		Time:             draft.Time,
		TestTime:         draft.TestTime,
		Type:             models.LessonTypeMakeup,
		OriginalLessonID: &original.ID,
	}
	if err := s.repo.Create(ctx, makeup); err != nil {
		if errors.Is(err, repository.ErrDuplicateLesson) {
			s.metrics.RecordMakeupLink("conflict")
			return nil, slotConflict(*original.StudentID, date, draft.Time)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create makeup lesson")
	}
	defer s.cache.InvalidateBoards(ctx)

	if err := s.repo.SetMakeupLink(ctx, original.ID, &makeup.ID); err != nil {
		s.metrics.RecordMakeupLink("rolled_back")
		if cleanupErr := s.repo.Delete(ctx, makeup.ID); cleanupErr != nil {
			s.logger.Error("orphaned makeup lesson",
				zap.String("lesson_id", original.ID),
				zap.String("makeup_lesson_id", makeup.ID),
				zap.NamedError("link_error", err),
				zap.Error(cleanupErr))
		}
		linkErr := appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link makeup lesson")
		return nil, appErrors.WithDetails(linkErr, "lesson_id", original.ID)
	}
	s.metrics.RecordMakeupLink("linked")
	s.logger.Info("makeup linked", zap.String("lesson_id", original.ID), zap.String("makeup_lesson_id", makeup.ID))
	return makeup, nil
}

// UnlinkAndDeleteMakeup deletes the makeup the original points at and clears the link. It reports
// whether a makeup row was removed and is a no-op when no link exists. A makeup that is already
// gone only has its dangling link cleared, so the call can be retried after a failure.
func (s *LessonStore) UnlinkAndDeleteMakeup(ctx context.Context, originalID string) (bool, error) {
	original, err := s.Get(ctx, originalID)
	if err != nil {
		return false, err
	}
	if original.MakeupLessonID == nil {
		return false, nil
	}
	makeupID := *original.MakeupLessonID
	deleted := true
	if err := s.repo.Delete(ctx, makeupID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.WithDetails(appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete makeup lesson"), "makeup_lesson_id", makeupID)
		}
		deleted = false
	}
	defer s.cache.InvalidateBoards(ctx)
	if err := s.repo.SetMakeupLink(ctx, originalID, nil); err != nil {
		return deleted, s.writeError(err, originalID, "failed to clear makeup link")
	}
	return deleted, nil
}

// ResetAttendance returns the lesson to the unset state, deleting its linked makeup first.
func (s *LessonStore) ResetAttendance(ctx context.Context, lessonID string) (*models.Lesson, bool, error) {
	deleted, err := s.UnlinkAndDeleteMakeup(ctx, lessonID)
	if err != nil {
		return nil, false, err
	}
	if err := s.repo.ClearAttendance(ctx, lessonID); err != nil {
		return nil, deleted, s.writeError(err, lessonID, "failed to reset lesson")
	}
	s.cache.InvalidateBoards(ctx)
	lesson, err := s.Get(ctx, lessonID)
	return lesson, deleted, err
}

// RemoveMakeup deletes a makeup row, going through its original when the original still links to it.
func (s *LessonStore) RemoveMakeup(ctx context.Context, makeup models.Lesson) error {
	if makeup.OriginalLessonID != nil {
		original, err := s.repo.FindByID(ctx, *makeup.OriginalLessonID)
		switch {
		case err == nil && original.MakeupLessonID != nil && *original.MakeupLessonID == makeup.ID:
			_, err = s.UnlinkAndDeleteMakeup(ctx, original.ID)
			return err
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load original lesson")
		}
	}
	if err := s.repo.Delete(ctx, makeup.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete makeup lesson")
	}
	s.cache.InvalidateBoards(ctx)
	return nil
}

// ReleaseLinkedFrom unlinks and deletes the makeups held by the student's generated lessons dated
// on or after from, wherever the makeup itself is dated. It returns the number of makeups removed.
func (s *LessonStore) ReleaseLinkedFrom(ctx context.Context, studentID string, from time.Time) (int, error) {
	linked, err := s.repo.ListLinkedFrom(ctx, studentID, models.GeneratedLessonTypes, schedule.DateOf(from))
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list linked lessons")
	}
	removed := 0
	for _, original := range linked {
		deleted, err := s.UnlinkAndDeleteMakeup(ctx, original.ID)
		if err != nil {
			return removed, err
		}
		if deleted {
			removed++
		}
	}
	return removed, nil
}

// ReassignTeacher hands the student's lessons dated on or after from to another teacher.
// Earlier lessons keep the teacher they were held with.
func (s *LessonStore) ReassignTeacher(ctx context.Context, studentID, teacher string, from time.Time) (int, error) {
	moved, err := s.repo.ReassignTeacher(ctx, studentID, teacher, schedule.DateOf(from))
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reassign lessons")
	}
	s.cache.InvalidateBoards(ctx)
	return moved, nil
}

// ListMakeupsFrom returns the student's makeup rows dated on or after from.
func (s *LessonStore) ListMakeupsFrom(ctx context.Context, studentID string, from time.Time) ([]models.Lesson, error) {
	lessons, err := s.repo.ListMakeupsFrom(ctx, studentID, schedule.DateOf(from))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list makeup lessons")
	}
	return lessons, nil
}

// CreateArtifact stores a memo or task entry in a teacher's slot.
func (s *LessonStore) CreateArtifact(ctx context.Context, artifact *models.Lesson) error {
	if err := s.repo.Create(ctx, artifact); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create entry")
	}
	s.cache.InvalidateBoards(ctx)
	return nil
}

// UpdateMemo replaces the memo text of a lesson.
func (s *LessonStore) UpdateMemo(ctx context.Context, lessonID string, memo *string) (*models.Lesson, error) {
	if err := s.repo.UpdateMemo(ctx, lessonID, memo); err != nil {
		return nil, s.writeError(err, lessonID, "failed to update memo")
	}
	s.cache.InvalidateBoards(ctx)
	return s.Get(ctx, lessonID)
}

// Delete removes a memo, task, or unlinked makeup row. Makeups still referenced by their original
// and originals holding a makeup must go through reset instead.
func (s *LessonStore) Delete(ctx context.Context, lessonID string) error {
	lesson, err := s.Get(ctx, lessonID)
	if err != nil {
		return err
	}
	switch {
	case lesson.Type.Artifact():
	case lesson.Type == models.LessonTypeMakeup:
		if lesson.OriginalLessonID != nil {
			original, err := s.repo.FindByID(ctx, *lesson.OriginalLessonID)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load original lesson")
			}
			if err == nil && original.MakeupLessonID != nil && *original.MakeupLessonID == lesson.ID {
				return appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "makeup is still linked; reset the original lesson instead"), "lesson_id", lesson.ID, "original_lesson_id", original.ID)
			}
		}
	default:
		if lesson.MakeupLessonID != nil {
			return appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "lesson has a makeup; reset it first"), "lesson_id", lesson.ID, "makeup_lesson_id", *lesson.MakeupLessonID)
		}
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "scheduled lessons are removed by editing the student's pattern"), "lesson_id", lesson.ID, "type", string(lesson.Type))
	}
	if err := s.repo.Delete(ctx, lessonID); err != nil {
		return s.writeError(err, lessonID, "failed to delete lesson")
	}
	s.cache.InvalidateBoards(ctx)
	return nil
}

// InvalidateBoards drops cached boards after a change that affects how lessons are displayed.
func (s *LessonStore) InvalidateBoards(ctx context.Context) {
	s.cache.InvalidateBoards(ctx)
}

func (s *LessonStore) writeError(err error, lessonID, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "lesson not found"), "lesson_id", lessonID)
	}
	return appErrors.WithDetails(appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message), "lesson_id", lessonID)
}

func draftLesson(studentID, teacher string, draft models.LessonDraft) models.Lesson {
	id := studentID
	lesson := models.Lesson{
		StudentID: &id,
		Date:      draft.Date,
		Time:      draft.Time,
		TestTime:  draft.TestTime,
		Type:      draft.Type,
	}
	if teacher != "" {
		lesson.Teacher = &teacher
	}
	return lesson
}

func validateMakeupDraft(draft models.MakeupDraft) error {
	if draft.Date.IsZero() {
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "makeup date is required"), "field", "makeup.date")
	}
	if !schedule.ValidSlot(draft.Date.Weekday(), draft.Time) {
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "makeup slot is not offered on that day"), "field", "makeup.time", "value", draft.Time, "date", draft.Date.Format(schedule.DateLayout))
	}
	if draft.TestTime != nil {
		if _, _, err := schedule.ParseClock(*draft.TestTime); err != nil {
			return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "makeup test time must be HH:MM"), "field", "makeup.test_time", "value", *draft.TestTime)
		}
	}
	return nil
}

func slotConflict(studentID string, date time.Time, slot string) error {
	return appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "student already has a lesson in that slot"),
		"student_id", studentID, "date", date.Format(schedule.DateLayout), "time", slot)
}

func joinTypes(types []models.LessonType) string {
	if len(types) == 0 {
		return "all"
	}
	values := make([]string, len(types))
	for i, t := range types {
		values[i] = string(t)
	}
	return strings.Join(values, ",")
}
