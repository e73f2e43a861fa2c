package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/answer-sheet-service/internal/cache"
	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/repositories"
)

type studentPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewStudentPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.StudentRepository {
	return &studentPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (r *studentPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, students []*models.AnswerSheetStudent) error {
	if len(students) == 0 {
		return nil
	}

	db := r.getDB(tx)
	if err := db.WithContext(ctx).Create(&students).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("insert %d answer sheet students: %w: %w", len(students), repositories.ErrDuplicateSheetCode, err)
		}
		return handleDBError(err, "insert answer sheet students")
	}

	cache.SafeDelete(ctx, r.cacheManager.Batch, cache.BatchKey(students[0].BatchID.String()))
	return nil
}

func (r *studentPostgreSQL) ListByBatch(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) ([]*models.AnswerSheetStudent, error) {
	db := r.getDB(tx)
	var students []*models.AnswerSheetStudent

	if err := db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("student_name ASC").
		Order("created_at ASC").
		Find(&students).Error; err != nil {
		return nil, handleDBError(err, "list students by batch")
	}
	return students, nil
}

func (r *studentPostgreSQL) CountByBatch(ctx context.Context, tx *gorm.DB, batchID uuid.UUID) (int64, error) {
	db := r.getDB(tx)
	var count int64
	err := db.WithContext(ctx).
		Model(&models.AnswerSheetStudent{}).
		Where("batch_id = ?", batchID).
		Count(&count).Error
	return count, handleDBError(err, "count students by batch")
}

func (r *studentPostgreSQL) GetBySheetCode(ctx context.Context, tx *gorm.DB, code string) (*models.AnswerSheetStudent, error) {
	if tx != nil {
		return r.getBySheetCode(ctx, tx, code)
	}

	var student models.AnswerSheetStudent
	err := r.cacheManager.Sheet.CacheOrExecute(ctx, cache.SheetKey(code), &student, cache.SheetCacheConfig.TTL, func() (interface{}, error) {
		return r.getBySheetCode(ctx, r.db, code)
	})
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *studentPostgreSQL) getBySheetCode(ctx context.Context, db *gorm.DB, code string) (*models.AnswerSheetStudent, error) {
	var student models.AnswerSheetStudent
	if err := db.WithContext(ctx).
		Where("sheet_code = ?", code).
		First(&student).Error; err != nil {
		return nil, handleDBError(err, "get student by sheet code")
	}
	return &student, nil
}

func (r *studentPostgreSQL) SheetCodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	db := r.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.AnswerSheetStudent{}).
		Where("sheet_code = ?", code).
		Count(&count).Error; err != nil {
		return false, handleDBError(err, "check sheet code")
	}
	return count > 0, nil
}

func (r *studentPostgreSQL) UpdateAnswers(ctx context.Context, tx *gorm.DB, code string, answers []string, processedAt time.Time) (*models.AnswerSheetStudent, error) {
	db := r.getDB(tx)

	res := db.WithContext(ctx).
		Model(&models.AnswerSheetStudent{}).
		Where("sheet_code = ?", code).
		Updates(map[string]interface{}{
			"answers":      datatypes.JSONSlice[string](answers),
			"processed_at": processedAt,
		})
	if res.Error != nil {
		return nil, handleDBError(res.Error, "update answers")
	}
	if res.RowsAffected == 0 {
		return nil, handleDBError(gorm.ErrRecordNotFound, "update answers")
	}

	cache.InvalidateSheetCache(ctx, r.cacheManager, code)
	return r.getBySheetCode(ctx, db, code)
}

func (r *studentPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
