package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/answer-sheet-service/internal/events"
	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/repositories"
	"github.com/SAP-F-2025/answer-sheet-service/internal/roster"
	"github.com/SAP-F-2025/answer-sheet-service/internal/sheet"
	"github.com/SAP-F-2025/answer-sheet-service/internal/sheetcode"
	"github.com/SAP-F-2025/answer-sheet-service/internal/validator"
)

// maxInsertAttempts bounds how many code sets one batch may burn through
// when concurrent writers collide on the sheet code index.
const maxInsertAttempts = 3

type answerSheetService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	composer  *sheet.Composer
	renderer  *sheet.Renderer
	generator *sheetcode.Generator
	genOpts   []sheetcode.Option
	now       func() time.Time
}

type AnswerSheetOption func(*answerSheetService)

func WithEventPublisher(p events.EventPublisher) AnswerSheetOption {
	return func(s *answerSheetService) { s.publisher = p }
}

func WithComposer(c *sheet.Composer) AnswerSheetOption {
	return func(s *answerSheetService) { s.composer = c }
}

func WithRenderer(r *sheet.Renderer) AnswerSheetOption {
	return func(s *answerSheetService) { s.renderer = r }
}

// WithCodeClaimer reserves candidate codes across service instances before
// they are checked against the store.
func WithCodeClaimer(c sheetcode.Claimer) AnswerSheetOption {
	return func(s *answerSheetService) {
		if c != nil {
			s.genOpts = append(s.genOpts, sheetcode.WithClaimer(c))
		}
	}
}

func WithGeneratorOptions(opts ...sheetcode.Option) AnswerSheetOption {
	return func(s *answerSheetService) { s.genOpts = append(s.genOpts, opts...) }
}

func WithClock(now func() time.Time) AnswerSheetOption {
	return func(s *answerSheetService) { s.now = now }
}

func NewAnswerSheetService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, opts ...AnswerSheetOption) AnswerSheetService {
	s := &answerSheetService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.composer == nil {
		s.composer = sheet.NewComposer(nil)
	}
	if s.renderer == nil {
		s.renderer = sheet.NewRenderer()
	}
	genOpts := append([]sheetcode.Option{sheetcode.WithLogger(logger)}, s.genOpts...)
	s.generator = sheetcode.NewGenerator(studentChecker{repo: repo}, genOpts...)
	return s
}

// studentChecker adapts the student repository to the generator's store check.
type studentChecker struct {
	repo repositories.Repository
}

func (c studentChecker) SheetCodeExists(ctx context.Context, code string) (bool, error) {
	return c.repo.Student().SheetCodeExists(ctx, nil, code)
}

// ===== BATCH CREATION =====

func (s *answerSheetService) CreateBatch(ctx context.Context, req *CreateBatchRequest, rows []models.StudentRosterRow) (*models.AnswerSheetBatch, []*models.AnswerSheetStudent, error) {
	if verrs := s.validator.GetBusinessValidator().ValidateCreateBatch(req); len(verrs) > 0 {
		return nil, nil, fmt.Errorf("%w: %w", ErrValidationFailed, verrs)
	}
	if len(rows) == 0 {
		return nil, nil, roster.ErrEmptyRoster
	}

	s.logger.Info("Creating answer sheet batch", "school_id", req.SchoolID, "exam_id", req.ExamID, "students", len(rows))

	batch := &models.AnswerSheetBatch{
		SchoolID:        req.SchoolID,
		ExamID:          req.ExamID,
		Name:            req.Name,
		TemplateVersion: s.composer.Template().Version,
	}
	if err := s.repo.Batch().Create(ctx, nil, batch); err != nil {
		return nil, nil, &BatchError{Op: "insert batch", Kind: ErrBatchCreateFailed, Attempted: len(rows), Err: err}
	}

	codes, err := s.generator.GenerateUnique(ctx, len(rows))
	if err != nil {
		// The batch row stays behind with no students until someone deletes it.
		s.logger.Warn("Sheet code generation failed, batch left without students",
			"batch_id", batch.ID, "students", len(rows), "error", err)
		return nil, nil, &BatchError{Op: "generate sheet codes", BatchID: batch.ID, Attempted: len(rows), Err: err}
	}

	var students []*models.AnswerSheetStudent
	for attempt := 1; ; attempt++ {
		students = buildStudents(batch.ID, rows, codes)
		err = s.repo.Student().CreateBatch(ctx, nil, students)
		if err == nil {
			break
		}
		if !repositories.IsDuplicateSheetCode(err) || attempt == maxInsertAttempts {
			break
		}

		s.logger.Warn("Sheet code collided on insert, regenerating", "batch_id", batch.ID, "attempt", attempt)
		codes, err = s.generator.GenerateUnique(ctx, len(rows))
		if err != nil {
			break
		}
	}
	if err != nil {
		s.compensate(ctx, batch.ID)
		return nil, nil, &BatchError{Op: "insert students", Kind: ErrStudentInsertFailed, BatchID: batch.ID, Attempted: len(rows), Err: err}
	}

	batch.StudentCount = len(students)
	s.logger.Info("Answer sheet batch created", "batch_id", batch.ID, "students", len(students))
	return batch, students, nil
}

// compensate removes a batch whose students could not be written. It runs
// even when the request context is already cancelled.
func (s *answerSheetService) compensate(ctx context.Context, batchID uuid.UUID) {
	if err := s.repo.Batch().Delete(context.WithoutCancel(ctx), nil, batchID); err != nil {
		s.logger.Error("Failed to delete batch after student insert failure", "batch_id", batchID, "error", err)
	}
}

func buildStudents(batchID uuid.UUID, rows []models.StudentRosterRow, codes []string) []*models.AnswerSheetStudent {
	students := make([]*models.AnswerSheetStudent, len(rows))
	for i, row := range rows {
		students[i] = &models.AnswerSheetStudent{
			BatchID:        batchID,
			StudentName:    row.StudentName,
			EnrollmentCode: row.EnrollmentCode,
			ClassName:      row.ClassName,
			SheetCode:      codes[i],
		}
	}
	return students
}

func (s *answerSheetService) ImportRoster(ctx context.Context, req *CreateBatchRequest, filename string, data []byte) (*BatchResponse, error) {
	raw, err := roster.Parse(filename, data)
	if err != nil {
		return nil, err
	}
	rows, err := roster.Normalize(raw)
	if err != nil {
		return nil, err
	}

	batch, students, err := s.CreateBatch(ctx, req, rows)
	if err != nil {
		return nil, err
	}

	codes := make([]string, len(students))
	for i, st := range students {
		codes[i] = st.SheetCode
	}
	s.publish(ctx, events.TypeBatchCreated, events.BatchCreatedEvent{
		BatchID:         batch.ID.String(),
		SchoolID:        batch.SchoolID,
		ExamID:          batch.ExamID,
		Name:            batch.Name,
		TemplateVersion: batch.TemplateVersion,
		StudentCount:    len(students),
		SheetCodes:      codes,
		CreatedAt:       batch.CreatedAt,
	})

	return &BatchResponse{AnswerSheetBatch: batch, Students: students}, nil
}

// ===== RENDERING =====

func (s *answerSheetService) RenderBatchDocument(ctx context.Context, students []*models.AnswerSheetStudent, examLabel string) ([]byte, error) {
	if len(students) == 0 {
		return nil, ErrBatchEmpty
	}
	if examLabel == "" {
		examLabel = sheet.DayLabel(1)
	}

	doc, err := s.composer.ComposeBatch(students, examLabel)
	if err != nil {
		return nil, err
	}
	pdf, err := s.renderer.Render(doc)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Rendered answer sheets", "pages", len(doc.Pages), "bytes", len(pdf))
	return pdf, nil
}

func (s *answerSheetService) RenderBatch(ctx context.Context, batchID uuid.UUID, examLabel string) ([]byte, error) {
	students, err := s.batchStudents(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return s.RenderBatchDocument(ctx, students, examLabel)
}

// ===== LOOKUP & SCAN RESULTS =====

func (s *answerSheetService) LookupBySheetCode(ctx context.Context, code string) (*models.AnswerSheetStudent, error) {
	if !sheetcode.Valid(code) {
		return nil, nil
	}
	student, err := s.repo.Student().GetBySheetCode(ctx, nil, code)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup sheet code %s: %w", code, err)
	}
	return student, nil
}

func (s *answerSheetService) RecordAnswers(ctx context.Context, code string, answers []string) (*models.AnswerSheetStudent, error) {
	req := &RecordAnswersRequest{SheetCode: code, Answers: answers}
	if verrs := s.validator.GetBusinessValidator().ValidateRecordAnswers(req); len(verrs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, verrs)
	}

	processedAt := s.now().UTC()
	student, err := s.repo.Student().UpdateAnswers(ctx, nil, code, answers, processedAt)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("sheet code %s: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("record answers for %s: %w", code, err)
	}

	answered := 0
	for _, a := range answers {
		if a != "" {
			answered++
		}
	}
	s.logger.Info("Answers recorded", "sheet_code", code, "answered", answered)

	s.publish(ctx, events.TypeAnswersRecorded, events.AnswersRecordedEvent{
		SheetCode:   code,
		BatchID:     student.BatchID.String(),
		Answers:     answers,
		Answered:    answered,
		ProcessedAt: processedAt,
	})
	return student, nil
}

// ===== QUERIES =====

func (s *answerSheetService) GetBatch(ctx context.Context, id uuid.UUID) (*BatchResponse, error) {
	batch, err := s.repo.Batch().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("batch %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	students, err := s.repo.Student().ListByBatch(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	return &BatchResponse{AnswerSheetBatch: batch, Students: students}, nil
}

func (s *answerSheetService) ListBatches(ctx context.Context, filters repositories.BatchFilters) (*BatchListResponse, error) {
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	batches, total, err := s.repo.Batch().List(ctx, nil, filters)
	if err != nil {
		return nil, err
	}
	return &BatchListResponse{
		Batches: batches,
		Total:   total,
		Limit:   filters.Limit,
		Offset:  filters.Offset,
	}, nil
}

func (s *answerSheetService) ExportCodeMap(ctx context.Context, id uuid.UUID, format string) (*CodeMapFile, error) {
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatXLSX {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	students, err := s.batchStudents(ctx, id)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	file := &CodeMapFile{Filename: fmt.Sprintf("batch_%s_codes.%s", id, format)}
	switch format {
	case FormatXLSX:
		file.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = roster.WriteCodeMapXLSX(&buf, students)
	default:
		file.ContentType = "text/csv; charset=utf-8"
		err = roster.WriteCodeMapCSV(&buf, students)
	}
	if err != nil {
		return nil, fmt.Errorf("export code map: %w", err)
	}
	file.Data = buf.Bytes()
	return file, nil
}

// ===== HELPERS =====

// batchStudents loads a batch's students ordered by name, failing with
// ErrNotFound for unknown batches and ErrBatchEmpty for batches without any.
func (s *answerSheetService) batchStudents(ctx context.Context, id uuid.UUID) ([]*models.AnswerSheetStudent, error) {
	if _, err := s.repo.Batch().GetByID(ctx, nil, id); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("batch %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	students, err := s.repo.Student().ListByBatch(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return nil, fmt.Errorf("batch %s: %w", id, ErrBatchEmpty)
	}
	return students, nil
}

// publish never fails the caller; the write already happened.
func (s *answerSheetService) publish(ctx context.Context, eventType string, data interface{}) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, events.NewEvent(eventType, data))
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("Failed to publish event", "type", eventType, "error", err)
	}
}
