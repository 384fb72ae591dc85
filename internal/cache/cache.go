package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

var _ Cache[struct{}] = (*LRUCache[struct{}])(nil)

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// RunCleanup sweeps the cleaners every interval until ctx is done.
func RunCleanup(ctx context.Context, interval time.Duration, name string, cleaners ...Cleaner) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			total := 0
			for _, c := range cleaners {
				total += c.CleanExpired()
			}
			if total > 0 {
				slog.DebugContext(ctx, "Expired cache entries removed", "cache", name, "removed", total)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
