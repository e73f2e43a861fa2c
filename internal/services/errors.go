package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Service-level errors
var (
	ErrBatchCreateFailed   = errors.New("answer sheet batch could not be created")
	ErrStudentInsertFailed = errors.New("answer sheet students could not be inserted")
	ErrNotFound            = errors.New("not found")
	ErrValidationFailed    = errors.New("validation failed")
	ErrBatchEmpty          = errors.New("batch has no students")
	ErrUnsupportedFormat   = errors.New("unsupported export format")
)

// BatchError reports a failed step of batch creation with the context an
// operator needs to clean up: which batch, how many students were attempted
// and the underlying store message.
type BatchError struct {
	Op        string
	Kind      error
	BatchID   uuid.UUID
	Attempted int
	Err       error
}

func (e *BatchError) Error() string {
	msg := e.Op
	if e.Kind != nil {
		msg = e.Kind.Error() + ": " + msg
	}
	if e.BatchID != uuid.Nil {
		msg += fmt.Sprintf(" (batch %s)", e.BatchID)
	}
	msg += fmt.Sprintf(" [%d students]", e.Attempted)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BatchError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
