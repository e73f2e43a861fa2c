package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type BatchFilters struct {
	SchoolID  *string `json:"school_id"`
	ExamID    *string `json:"exam_id"`
	Limit     int     `json:"limit"`
	Offset    int     `json:"offset"`
	SortBy    string  `json:"sort_by"`    // "created_at", "name"
	SortOrder string  `json:"sort_order"` // "asc", "desc"
}

// BatchRepository persists answer-sheet batches. Batches are created once and
// only ever deleted as compensation for a failed student insert.
type BatchRepository interface {
	Create(ctx context.Context, tx *gorm.DB, batch *models.AnswerSheetBatch) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.AnswerSheetBatch, error)
	List(ctx context.Context, tx *gorm.DB, filters BatchFilters) ([]*models.AnswerSheetBatch, int64, error)

	// Delete removes the batch and every student that references it.
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

// StudentRepository persists the per-student sheets of a batch.
type StudentRepository interface {
	// CreateBatch inserts all students in a single statement. A sheet-code
	// collision surfaces as ErrDuplicateSheetCode.
	CreateBatch(ctx context.Context, tx *gorm.DB, students []*models.AnswerSheetStudent) error

	// ListByBatch returns the batch's students ordered by name.
	ListByBatch(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) ([]*models.AnswerSheetStudent, error)
	CountByBatch(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) (int64, error)

	GetBySheetCode(ctx context.Context, tx *gorm.DB, code string) (*models.AnswerSheetStudent, error)
	SheetCodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error)

	// UpdateAnswers stores scan results and stamps ProcessedAt.
	UpdateAnswers(ctx context.Context, tx *gorm.DB, code string, answers []string, processedAt time.Time) (*models.AnswerSheetStudent, error)
}
