package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/academy-schedule-api/internal/models"
	appErrors "github.com/noah-isme/academy-schedule-api/pkg/errors"
	"github.com/noah-isme/academy-schedule-api/pkg/export"
)

var daySheetHeaders = []string{"Date", "Time", "Student", "School", "Grade", "Type", "Test", "Status", "Check-in", "Late", "Memo"}

type boardReader interface {
	Board(ctx context.Context, query BoardQuery) (*Board, error)
}

// ExportResult is a rendered day sheet ready to be streamed.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// ExportService renders teacher boards as downloadable sheets.
type ExportService struct {
	boards    boardReader
	exporters map[string]export.Exporter
	logger    *zap.Logger
}

// NewExportService constructs an ExportService. Without explicit exporters CSV and PDF are registered.
func NewExportService(boards boardReader, logger *zap.Logger, exporters ...export.Exporter) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(exporters) == 0 {
		exporters = []export.Exporter{export.NewCSVExporter(), export.NewPDFExporter()}
	}
	byExt := make(map[string]export.Exporter, len(exporters))
	for _, e := range exporters {
		byExt[e.Extension()] = e
	}
	return &ExportService{boards: boards, exporters: byExt, logger: logger}
}

// DaySheet renders the board selected by query in the requested format.
func (s *ExportService) DaySheet(ctx context.Context, query BoardQuery, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	exporter, ok := s.exporters[format]
	if !ok {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "unsupported export format"), "field", "format", "value", format)
	}

	board, err := s.boards.Board(ctx, query)
	if err != nil {
		return nil, err
	}
	dataset := buildDaySheet(board)
	body, err := exporter.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Debug("day sheet rendered", zap.String("teacher", board.Teacher), zap.String("format", format), zap.Int("rows", len(dataset.Rows)))
	return &ExportResult{
		Filename:    sheetFilename(board, exporter.Extension()),
		ContentType: exporter.ContentType(),
		Body:        body,
		Rows:        len(dataset.Rows),
	}, nil
}

func buildDaySheet(board *Board) export.Dataset {
	title := fmt.Sprintf("%s %s", board.Teacher, board.From)
	if board.To != board.From {
		title = fmt.Sprintf("%s %s ~ %s", board.Teacher, board.From, board.To)
	}
	rows := make([]map[string]string, 0, len(board.Lessons))
	for _, lesson := range board.Lessons {
		row := map[string]string{
			"Date":     lesson.Date.Format("2006-01-02"),
			"Time":     lesson.Time,
			"Student":  deref(lesson.StudentName),
			"School":   deref(lesson.StudentSchool),
			"Grade":    deref(lesson.StudentGrade),
			"Type":     string(lesson.Type),
			"Test":     deref(lesson.TestTime),
			"Status":   string(lesson.Status),
			"Check-in": deref(lesson.CheckinTime),
			"Memo":     deref(lesson.Memo),
		}
		if lesson.LateMinutes != nil {
			row["Late"] = strconv.Itoa(*lesson.LateMinutes)
		}
		if lesson.Status == models.LessonStatusAbsent && lesson.AbsentReason != nil {
			row["Memo"] = strings.TrimSpace(*lesson.AbsentReason + " " + row["Memo"])
		}
		rows = append(rows, row)
	}
	return export.Dataset{Title: strings.TrimSpace(title), Headers: daySheetHeaders, Rows: rows}
}

func sheetFilename(board *Board, ext string) string {
	teacher := sanitizeFilename(board.Teacher)
	if board.To != board.From {
		return fmt.Sprintf("lessons_%s_%s_%s.%s", teacher, board.From, board.To, ext)
	}
	return fmt.Sprintf("lessons_%s_%s.%s", teacher, board.From, ext)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "all"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "\"", "")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
