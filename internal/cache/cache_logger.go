package cache

import (
	"context"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// SheetKey is the cache key of a student sheet looked up by code.
func SheetKey(code string) string {
	return "code:" + code
}

// BatchKey is the cache key of a batch looked up by id.
func BatchKey(id string) string {
	return "id:" + id
}

// InvalidateSheetCache drops a cached sheet after its answers change.
func InvalidateSheetCache(ctx context.Context, cm *CacheManager, code string) {
	SafeDelete(ctx, cm.Sheet, SheetKey(code))
}

// InvalidateBatchCache drops a cached batch and every list that may hold it.
func InvalidateBatchCache(ctx context.Context, cm *CacheManager, id string) {
	SafeDelete(ctx, cm.Batch, BatchKey(id))
	SafeInvalidatePattern(ctx, cm.Batch, "list:*")
}
