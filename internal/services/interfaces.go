package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/repositories"
	"github.com/SAP-F-2025/answer-sheet-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

type CreateBatchRequest = validator.CreateBatchRequest
type RecordAnswersRequest = validator.RecordAnswersRequest

type BatchResponse struct {
	*models.AnswerSheetBatch
	Students []*models.AnswerSheetStudent `json:"students"`
}

type BatchListResponse struct {
	Batches []*models.AnswerSheetBatch `json:"batches"`
	Total   int64                      `json:"total"`
	Limit   int                        `json:"limit"`
	Offset  int                        `json:"offset"`
}

// Export formats for the sheet-code map
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

type CodeMapFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ===== SERVICE INTERFACES =====

type AnswerSheetService interface {
	// CreateBatch persists a batch and one student per row, or nothing that
	// references the batch.
	CreateBatch(ctx context.Context, req *CreateBatchRequest, rows []models.StudentRosterRow) (*models.AnswerSheetBatch, []*models.AnswerSheetStudent, error)

	// ImportRoster parses an uploaded roster and creates its batch.
	ImportRoster(ctx context.Context, req *CreateBatchRequest, filename string, data []byte) (*BatchResponse, error)

	RenderBatchDocument(ctx context.Context, students []*models.AnswerSheetStudent, examLabel string) ([]byte, error)
	RenderBatch(ctx context.Context, batchID uuid.UUID, examLabel string) ([]byte, error)

	// LookupBySheetCode returns nil without error when the code is unknown.
	LookupBySheetCode(ctx context.Context, code string) (*models.AnswerSheetStudent, error)
	RecordAnswers(ctx context.Context, code string, answers []string) (*models.AnswerSheetStudent, error)

	GetBatch(ctx context.Context, id uuid.UUID) (*BatchResponse, error)
	ListBatches(ctx context.Context, filters repositories.BatchFilters) (*BatchListResponse, error)
	ExportCodeMap(ctx context.Context, id uuid.UUID, format string) (*CodeMapFile, error)
}

type ServiceManager interface {
	AnswerSheet() AnswerSheetService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
