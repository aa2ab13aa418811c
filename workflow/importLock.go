package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/stocklot/marketplace_backend/config"
)

const importLockTTL = 30 * time.Second

// AcquireImportLock serializes the duplicate-offer check and offer creation
// for one buyer+listing pair across instances. Best-effort: when redis is
// unavailable or the lock is contended, the import proceeds anyway and the
// database unique checks remain the backstop. The returned release func is
// always safe to call.
func AcquireImportLock(ctx context.Context, buyerUserId int, listingPublicId string) func() {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}
	}

	lockKey := fmt.Sprintf("offerImport:%d:%s", buyerUserId, listingPublicId)
	lock, err := locker.Obtain(ctx, lockKey, importLockTTL, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, "importLock.go", "AcquireImportLock", "Could not obtain import lock", lockKey, err)
		return func() {}
	} else if err != nil {
		config.LogError(logger, "importLock.go", "AcquireImportLock", "Error obtaining import lock", lockKey, err)
		return func() {}
	}

	return func() {
		_ = lock.Release(ctx)
	}
}
