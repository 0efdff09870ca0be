package health

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/marketrank/internal/cache"
)

// checkKeyPrefix namespaces health check entries away from ranked output
// keys. Each check appends a fresh UUID so concurrent checks and replicas
// sharing one Redis never read each other's value.
const checkKeyPrefix = "marketrank:health:check:"

// checkTTL keeps check entries from outliving the check itself for long.
const checkTTL = 10 * time.Second

// errReadBackMismatch is returned when the written value does not read back.
var errReadBackMismatch = errors.New("cache check read back a different value")

// CacheChecker verifies a cache.Store accepts writes and serves reads.
type CacheChecker struct {
	store cache.Store
	now   func() time.Time
}

// NewCacheChecker creates a health checker for store.
func NewCacheChecker(store cache.Store) *CacheChecker {
	return &CacheChecker{store: store, now: time.Now}
}

// HealthCheck writes a timestamped value and reads it back.
func (c *CacheChecker) HealthCheck(ctx context.Context) error {
	key := checkKeyPrefix + uuid.NewString()
	value := []byte(c.now().UTC().Format(time.RFC3339Nano))
	if err := c.store.Set(ctx, key, value, checkTTL); err != nil {
		return fmt.Errorf("cache check write: %w", err)
	}

	got, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("cache check read: %w", err)
	}
	if !ok || !bytes.Equal(got, value) {
		return errReadBackMismatch
	}
	return nil
}
