package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/repositories"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.AnswerSheetBatch{}, &models.AnswerSheetStudent{}))
	return db
}

func newTestRepo(t *testing.T, withRedis bool) (repositories.Repository, *miniredis.Miniredis) {
	t.Helper()
	db := newTestDB(t)

	var client *redis.Client
	var mr *miniredis.Miniredis
	if withRedis {
		mr = miniredis.RunT(t)
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	}
	return NewPostgreSQLRepository(RepositoryConfig{DB: db, RedisClient: client}), mr
}

func strPtr(s string) *string { return &s }

func seedBatch(t *testing.T, repo repositories.Repository, names ...string) (*models.AnswerSheetBatch, []*models.AnswerSheetStudent) {
	t.Helper()
	ctx := context.Background()

	batch := &models.AnswerSheetBatch{SchoolID: "school-1", ExamID: "exam-1", Name: "Simulado", TemplateVersion: "xtri-v1"}
	require.NoError(t, repo.Batch().Create(ctx, nil, batch))

	students := make([]*models.AnswerSheetStudent, len(names))
	for i, n := range names {
		students[i] = &models.AnswerSheetStudent{
			BatchID:     batch.ID,
			StudentName: n,
			SheetCode:   fmt.Sprintf("XTRI-%06d", i),
		}
	}
	require.NoError(t, repo.Student().CreateBatch(ctx, nil, students))
	return batch, students
}

func TestBatchRepository_CreateAndGet(t *testing.T) {
	repo, _ := newTestRepo(t, false)
	ctx := context.Background()

	batch, _ := seedBatch(t, repo, "Carla", "Ana")
	assert.NotEqual(t, uuid.Nil, batch.ID)

	got, err := repo.Batch().GetByID(ctx, nil, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, "Simulado", got.Name)
	assert.Equal(t, 2, got.StudentCount)

	_, err = repo.Batch().GetByID(ctx, nil, uuid.New())
	assert.True(t, repositories.IsNotFoundError(err))
}

func TestBatchRepository_List(t *testing.T) {
	repo, _ := newTestRepo(t, false)
	ctx := context.Background()

	seedBatch(t, repo, "Ana")
	other := &models.AnswerSheetBatch{SchoolID: "school-2", ExamID: "exam-9", Name: "Outro", TemplateVersion: "xtri-v1"}
	require.NoError(t, repo.Batch().Create(ctx, nil, other))

	school := "school-1"
	batches, total, err := repo.Batch().List(ctx, nil, repositories.BatchFilters{SchoolID: &school})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, batches, 1)
	assert.Equal(t, 1, batches[0].StudentCount)

	batches, total, err = repo.Batch().List(ctx, nil, repositories.BatchFilters{SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, "Outro", batches[0].Name)
	assert.Equal(t, 0, batches[0].StudentCount)
}

func TestBatchRepository_DeleteRemovesStudents(t *testing.T) {
	repo, _ := newTestRepo(t, false)
	ctx := context.Background()

	batch, students := seedBatch(t, repo, "Ana", "Bruno")
	require.NoError(t, repo.Batch().Delete(ctx, nil, batch.ID))

	_, err := repo.Batch().GetByID(ctx, nil, batch.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	count, err := repo.Student().CountByBatch(ctx, nil, batch.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	exists, err := repo.Student().SheetCodeExists(ctx, nil, students[0].SheetCode)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, repo.Batch().Delete(ctx, nil, batch.ID), repositories.ErrNotFound)
}

func TestStudentRepository_DuplicateSheetCode(t *testing.T) {
	repo, _ := newTestRepo(t, false)
	ctx := context.Background()

	batch, students := seedBatch(t, repo, "Ana")

	dup := []*models.AnswerSheetStudent{
		{BatchID: batch.ID, StudentName: "Bruno", SheetCode: "XTRI-NEW001"},
		{BatchID: batch.ID, StudentName: "Carla", SheetCode: students[0].SheetCode},
	}
	err := repo.Student().CreateBatch(ctx, nil, dup)
	require.Error(t, err)
	assert.True(t, repositories.IsDuplicateSheetCode(err))

	// single statement: nothing from the failed insert is left behind
	count, err := repo.Student().CountByBatch(ctx, nil, batch.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestStudentRepository_ListByBatchOrderedByName(t *testing.T) {
	repo, _ := newTestRepo(t, false)
	ctx := context.Background()

	batch, _ := seedBatch(t, repo, "Carla", "Ana", "Bruno")

	students, err := repo.Student().ListByBatch(ctx, nil, batch.ID)
	require.NoError(t, err)
	require.Len(t, students, 3)
	assert.Equal(t, []string{"Ana", "Bruno", "Carla"}, []string{students[0].StudentName, students[1].StudentName, students[2].StudentName})
}

func TestStudentRepository_SheetCodeLookup(t *testing.T) {
	repo, mr := newTestRepo(t, true)
	ctx := context.Background()

	_, students := seedBatch(t, repo, "Ana")
	code := students[0].SheetCode

	exists, err := repo.Student().SheetCodeExists(ctx, nil, code)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := repo.Student().GetBySheetCode(ctx, nil, code)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.StudentName)
	assert.Nil(t, got.Answers)
	assert.False(t, got.IsProcessed())
	assert.True(t, mr.Exists("sheet:code:"+code))

	_, err = repo.Student().GetBySheetCode(ctx, nil, "XTRI-ZZZZZZ")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.False(t, mr.Exists("sheet:code:XTRI-ZZZZZZ"))
}

func TestStudentRepository_UpdateAnswers(t *testing.T) {
	repo, mr := newTestRepo(t, true)
	ctx := context.Background()

	_, students := seedBatch(t, repo, "Ana")
	code := students[0].SheetCode

	_, err := repo.Student().GetBySheetCode(ctx, nil, code)
	require.NoError(t, err)
	require.True(t, mr.Exists("sheet:code:"+code))

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	updated, err := repo.Student().UpdateAnswers(ctx, nil, code, []string{"A", "", "E"}, at)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "", "E"}, []string(updated.Answers))
	require.NotNil(t, updated.ProcessedAt)
	assert.True(t, updated.ProcessedAt.Equal(at))
	assert.False(t, mr.Exists("sheet:code:"+code))

	fresh, err := repo.Student().GetBySheetCode(ctx, nil, code)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "", "E"}, []string(fresh.Answers))

	_, err = repo.Student().UpdateAnswers(ctx, nil, "XTRI-ZZZZZZ", []string{"A"}, at)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestWithTransaction_RollsBack(t *testing.T) {
	repo, _ := newTestRepo(t, false)
	ctx := context.Background()

	var id uuid.UUID
	err := repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		batch := &models.AnswerSheetBatch{SchoolID: "s", ExamID: "e", Name: "n", TemplateVersion: "xtri-v1"}
		if err := tx.Batch().Create(ctx, nil, batch); err != nil {
			return err
		}
		id = batch.ID
		return fmt.Errorf("abort")
	})
	require.EqualError(t, err, "abort")

	_, err = repo.Batch().GetByID(ctx, nil, id)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestPing(t *testing.T) {
	repo, _ := newTestRepo(t, true)
	assert.NoError(t, repo.Ping(context.Background()))
}
