package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/repositories"
)

// fakeStore is an in-memory Repository with failure injection.
type fakeStore struct {
	mu       sync.Mutex
	batches  map[uuid.UUID]*models.AnswerSheetBatch
	students map[string]*models.AnswerSheetStudent

	batchCreateErr error
	insertErr      error
	duplicates     int // next N student inserts fail with a sheet code collision
	deleteErr      error
	onInsert       func()

	insertCalls int
	deleteCalls int
	existsCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		batches:  make(map[uuid.UUID]*models.AnswerSheetBatch),
		students: make(map[string]*models.AnswerSheetStudent),
	}
}

func (f *fakeStore) Batch() repositories.BatchRepository     { return fakeBatches{f} }
func (f *fakeStore) Student() repositories.StudentRepository { return fakeStudents{f} }

func (f *fakeStore) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(f)
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

func (f *fakeStore) studentsOf(batchID uuid.UUID) []*models.AnswerSheetStudent {
	var out []*models.AnswerSheetStudent
	for _, s := range f.students {
		if s.BatchID == batchID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentName < out[j].StudentName })
	return out
}

type fakeBatches struct{ f *fakeStore }

func (r fakeBatches) Create(ctx context.Context, tx *gorm.DB, batch *models.AnswerSheetBatch) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.batchCreateErr != nil {
		return r.f.batchCreateErr
	}
	batch.ID = uuid.New()
	batch.CreatedAt = time.Now()
	cp := *batch
	r.f.batches[batch.ID] = &cp
	return nil
}

func (r fakeBatches) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.AnswerSheetBatch, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	b, ok := r.f.batches[id]
	if !ok {
		return nil, fmt.Errorf("get batch failed: %w", repositories.ErrNotFound)
	}
	cp := *b
	cp.StudentCount = len(r.f.studentsOf(id))
	return &cp, nil
}

func (r fakeBatches) List(ctx context.Context, tx *gorm.DB, filters repositories.BatchFilters) ([]*models.AnswerSheetBatch, int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []*models.AnswerSheetBatch
	for _, b := range r.f.batches {
		if filters.SchoolID != nil && b.SchoolID != *filters.SchoolID {
			continue
		}
		out = append(out, b)
	}
	return out, int64(len(out)), nil
}

func (r fakeBatches) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	r.f.deleteCalls++
	if r.f.deleteErr != nil {
		return r.f.deleteErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	for code, s := range r.f.students {
		if s.BatchID == id {
			delete(r.f.students, code)
		}
	}
	delete(r.f.batches, id)
	return nil
}

type fakeStudents struct{ f *fakeStore }

func (r fakeStudents) CreateBatch(ctx context.Context, tx *gorm.DB, students []*models.AnswerSheetStudent) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	r.f.insertCalls++
	if r.f.onInsert != nil {
		r.f.onInsert()
	}
	if r.f.duplicates > 0 {
		r.f.duplicates--
		return fmt.Errorf("insert %d answer sheet students: %w", len(students), repositories.ErrDuplicateSheetCode)
	}
	if r.f.insertErr != nil {
		return r.f.insertErr
	}
	for _, s := range students {
		if _, taken := r.f.students[s.SheetCode]; taken {
			return repositories.ErrDuplicateSheetCode
		}
	}
	for _, s := range students {
		s.ID = uuid.New()
		cp := *s
		r.f.students[s.SheetCode] = &cp
	}
	return nil
}

func (r fakeStudents) ListByBatch(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) ([]*models.AnswerSheetStudent, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	return r.f.studentsOf(batchID), nil
}

func (r fakeStudents) CountByBatch(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) (int64, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	return int64(len(r.f.studentsOf(batchID))), nil
}

func (r fakeStudents) GetBySheetCode(ctx context.Context, tx *gorm.DB, code string) (*models.AnswerSheetStudent, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	s, ok := r.f.students[code]
	if !ok {
		return nil, fmt.Errorf("get answer sheet student failed: %w", repositories.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (r fakeStudents) SheetCodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	r.f.existsCalls++
	_, ok := r.f.students[code]
	return ok, nil
}

func (r fakeStudents) UpdateAnswers(ctx context.Context, tx *gorm.DB, code string, answers []string, processedAt time.Time) (*models.AnswerSheetStudent, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	s, ok := r.f.students[code]
	if !ok {
		return nil, fmt.Errorf("update answers failed: %w", repositories.ErrNotFound)
	}
	s.Answers = append([]string(nil), answers...)
	s.ProcessedAt = &processedAt
	cp := *s
	return &cp, nil
}

var errStoreDown = errors.New("connection refused")

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
