// Package events publishes domain events about answer-sheet batches.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	Source  = "answer-sheet-service"
	Version = "1.0"
)

// Event types. The published topic is "<prefix>.<type>".
const (
	TypeBatchCreated    = "batch_created"
	TypeAnswersRecorded = "answers_recorded"
)

// Event is the envelope written to every topic.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// BatchCreatedEvent is published after a roster import succeeds.
type BatchCreatedEvent struct {
	BatchID         string    `json:"batch_id"`
	SchoolID        string    `json:"school_id"`
	ExamID          string    `json:"exam_id"`
	Name            string    `json:"name"`
	TemplateVersion string    `json:"template_version"`
	StudentCount    int       `json:"student_count"`
	SheetCodes      []string  `json:"sheet_codes"`
	CreatedAt       time.Time `json:"created_at"`
}

// AnswersRecordedEvent is published when scan results are written back.
type AnswersRecordedEvent struct {
	SheetCode   string    `json:"sheet_code"`
	BatchID     string    `json:"batch_id"`
	Answers     []string  `json:"answers"`
	Answered    int       `json:"answered"`
	ProcessedAt time.Time `json:"processed_at"`
}

// EventPublisher delivers events. Publish failures never roll back the
// operation that produced the event; callers log them.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// NewEvent stamps a new envelope around data.
func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    Source,
		Version:   Version,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
