// Package ingest turns uploaded documents into stored, vectorized chunks.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// lockKeyPrefix namespaces upload locks in Redis. The suffix is the
// content hash, so concurrent uploads of identical bytes contend while
// different documents never do.
const lockKeyPrefix = "source:upload:"

// lockRetryInterval is how often a waiter re-attempts acquisition.
const lockRetryInterval = 100 * time.Millisecond

// releaseScript deletes the lock only when the caller still holds it, so an
// expired lease taken over by another node is never released by the old holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// UploadLock is a Redis lease lock keyed by content hash.
type UploadLock struct {
	rdb   *redis.Client
	wait  time.Duration
	lease time.Duration
}

// NewUploadLock creates a lock helper. Acquire waits up to wait; a held lock
// expires after lease even if the holder dies.
func NewUploadLock(rdb *redis.Client, wait, lease time.Duration) *UploadLock {
	return &UploadLock{rdb: rdb, wait: wait, lease: lease}
}

// Acquire tries to take the lock for contentHash, polling until the wait
// budget is spent. Returns the holder token and true on success.
func (l *UploadLock) Acquire(ctx context.Context, contentHash string) (string, bool, error) {
	key := lockKeyPrefix + contentHash
	token := uuid.New().String()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.lease).Result()
		if err != nil {
			return "", false, err
		}
		if ok {
			return token, true, nil
		}
		if time.Now().After(deadline) {
			return "", false, nil
		}
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// Release gives up the lock if token still holds it.
func (l *UploadLock) Release(ctx context.Context, contentHash, token string) error {
	return releaseScript.Run(ctx, l.rdb, []string{lockKeyPrefix + contentHash}, token).Err()
}
