package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/answer-sheet-service/internal/cache"
	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/repositories"
)

type batchPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewBatchPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.BatchRepository {
	return &batchPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (r *batchPostgreSQL) Create(ctx context.Context, tx *gorm.DB, batch *models.AnswerSheetBatch) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Omit("Students").Create(batch).Error; err != nil {
		return handleDBError(err, "create answer sheet batch")
	}
	cache.SafeInvalidatePattern(ctx, r.cacheManager.Batch, "list:*")
	return nil
}

func (r *batchPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.AnswerSheetBatch, error) {
	if tx != nil {
		return r.getByID(ctx, tx, id)
	}

	var batch models.AnswerSheetBatch
	err := r.cacheManager.Batch.CacheOrExecute(ctx, cache.BatchKey(id.String()), &batch, cache.BatchCacheConfig.TTL, func() (interface{}, error) {
		return r.getByID(ctx, r.db, id)
	})
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *batchPostgreSQL) getByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.AnswerSheetBatch, error) {
	var batch models.AnswerSheetBatch
	if err := db.WithContext(ctx).First(&batch, "id = ?", id).Error; err != nil {
		return nil, handleDBError(err, "get answer sheet batch by id")
	}

	var count int64
	if err := db.WithContext(ctx).
		Model(&models.AnswerSheetStudent{}).
		Where("batch_id = ?", id).
		Count(&count).Error; err != nil {
		return nil, handleDBError(err, "count batch students")
	}
	batch.StudentCount = int(count)

	return &batch, nil
}

func (r *batchPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.BatchFilters) ([]*models.AnswerSheetBatch, int64, error) {
	db := r.getDB(tx)
	var batches []*models.AnswerSheetBatch
	var total int64

	query := db.WithContext(ctx).Model(&models.AnswerSheetBatch{})
	if filters.SchoolID != nil {
		query = query.Where("school_id = ?", *filters.SchoolID)
	}
	if filters.ExamID != nil {
		query = query.Where("exam_id = ?", *filters.ExamID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count answer sheet batches")
	}

	query = applyPaginationAndSort(query, map[string]string{
		"created_at": "created_at",
		"name":       "name",
	}, "created_at", filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&batches).Error; err != nil {
		return nil, 0, handleDBError(err, "list answer sheet batches")
	}

	if err := r.fillStudentCounts(ctx, db, batches); err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

func (r *batchPostgreSQL) fillStudentCounts(ctx context.Context, db *gorm.DB, batches []*models.AnswerSheetBatch) error {
	if len(batches) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(batches))
	for i, b := range batches {
		ids[i] = b.ID
	}

	var counts []struct {
		BatchID uuid.UUID
		Total   int
	}
	if err := db.WithContext(ctx).
		Model(&models.AnswerSheetStudent{}).
		Select("batch_id, COUNT(*) AS total").
		Where("batch_id IN ?", ids).
		Group("batch_id").
		Scan(&counts).Error; err != nil {
		return handleDBError(err, "count students per batch")
	}

	byID := make(map[uuid.UUID]int, len(counts))
	for _, c := range counts {
		byID[c.BatchID] = c.Total
	}
	for _, b := range batches {
		b.StudentCount = byID[b.ID]
	}
	return nil
}

func (r *batchPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	var codes []string
	del := func(db *gorm.DB) error {
		if err := db.Model(&models.AnswerSheetStudent{}).
			Where("batch_id = ?", id).
			Pluck("sheet_code", &codes).Error; err != nil {
			return err
		}
		if err := db.Where("batch_id = ?", id).Delete(&models.AnswerSheetStudent{}).Error; err != nil {
			return err
		}
		res := db.Where("id = ?", id).Delete(&models.AnswerSheetBatch{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}

	var err error
	if tx != nil {
		err = del(tx.WithContext(ctx))
	} else {
		err = r.db.WithContext(ctx).Transaction(del)
	}
	if err != nil {
		return handleDBError(err, fmt.Sprintf("delete answer sheet batch %s", id))
	}

	cache.InvalidateBatchCache(ctx, r.cacheManager, id.String())
	for _, code := range codes {
		cache.InvalidateSheetCache(ctx, r.cacheManager, code)
	}
	return nil
}

func (r *batchPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
