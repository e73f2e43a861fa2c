package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StudentRosterRow is one normalized line of an uploaded roster. It is never
// persisted as-is.
type StudentRosterRow struct {
	StudentName    string            `json:"student_name"`
	EnrollmentCode *string           `json:"enrollment_code"`
	ClassName      *string           `json:"class_name"`
	Line           int               `json:"line"`
	Extra          map[string]string `json:"extra,omitempty"`
}

// AnswerSheetBatch is one import/print run of answer sheets for an exam.
type AnswerSheetBatch struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	SchoolID        string    `json:"school_id" gorm:"not null;index;size:255"`
	ExamID          string    `json:"exam_id" gorm:"not null;index;size:255"`
	Name            string    `json:"name" gorm:"not null;size:200"`
	TemplateVersion string    `json:"template_version" gorm:"not null;size:50"`
	CreatedAt       time.Time `json:"created_at"`

	// Relations
	Students []AnswerSheetStudent `json:"students,omitempty" gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`

	// Computed fields (not stored)
	StudentCount int `json:"student_count" gorm:"-"`
}

// AnswerSheetStudent is one printed sheet. SheetCode is the identity printed
// on paper and in the QR code; ID never leaves the service.
type AnswerSheetStudent struct {
	ID             uuid.UUID                   `json:"id" gorm:"type:uuid;primaryKey"`
	BatchID        uuid.UUID                   `json:"batch_id" gorm:"type:uuid;not null;index"`
	EnrollmentCode *string                     `json:"enrollment_code" gorm:"size:100"`
	StudentName    string                      `json:"student_name" gorm:"not null;size:255;index"`
	ClassName      *string                     `json:"class_name" gorm:"size:100"`
	SheetCode      string                      `json:"sheet_code" gorm:"not null;size:20;uniqueIndex:idx_answer_sheet_students_sheet_code"`
	Answers        datatypes.JSONSlice[string] `json:"answers" gorm:"type:jsonb"`
	ProcessedAt    *time.Time                  `json:"processed_at"`
	CreatedAt      time.Time                   `json:"created_at"`
}

func (b *AnswerSheetBatch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (s *AnswerSheetStudent) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (AnswerSheetBatch) TableName() string {
	return "answer_sheet_batches"
}

func (AnswerSheetStudent) TableName() string {
	return "answer_sheet_students"
}

// IsProcessed reports whether scan results have been written back.
func (s *AnswerSheetStudent) IsProcessed() bool {
	return s.ProcessedAt != nil
}
