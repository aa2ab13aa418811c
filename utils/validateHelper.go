package utils

import (
	"context"

	"github.com/stocklot/marketplace_backend/config"
)

// CountWhere counts records of T matching the condition.
func CountWhere[T any](ctx context.Context, condition string, values ...interface{}) (int64, error) {
	var model T
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&model).Where(condition, values...).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ValidateResourceId checks that a record of T with the given primary key
// exists; returns ErrorRecordNotFound otherwise.
func ValidateResourceId[T any](ctx context.Context, id interface{}) error {
	count, err := CountWhere[T](ctx, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}

// FetchModel loads a record of T by primary key. May return gorm's not-found
// error; callers that need a soft miss should use First with Limit instead.
func FetchModel[T any](ctx context.Context, id interface{}, associations ...string) (*T, error) {
	db := config.GetDB()
	var result T
	dbCtx := db.WithContext(ctx)
	for _, assoc := range associations {
		dbCtx = dbCtx.Preload(assoc)
	}
	if err := dbCtx.First(&result, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &result, nil
}
