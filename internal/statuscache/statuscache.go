// Package statuscache is a cache-aside read path for a request's last
// known JudgeResult, backed by internal/common/cache's Redis
// implementation. Grounded on
// judge_service/internal/repository/status_repository.go's cache-aside
// shape, but without that file's database fallback: persistence of
// results is the front-office API's job (spec §1's "out of scope"), so a
// cache miss here simply means "ask the API", not "fall through to a
// local database".
package statuscache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"treadmill/internal/model"
	"treadmill/pkg/errors"
)

const keyPrefix = "treadmill:judge-status:"

// backend is the slice of internal/common/cache.Cache this package
// actually drives: a plain string get/set/delete. The full Cache
// interface also carries hash/set/zset/list/lock/pipeline operations
// that a write-through status cache has no use for; depending on this
// narrower shape instead means any fake swapped in for tests only has to
// implement three methods, and *cache.RedisCache still satisfies it
// structurally with no wrapper needed.
type backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Cache is a thin, ttl-bound write-through cache of the last JudgeResult
// reported for a request, used by cmd/treadmill-worker's status endpoint
// to answer quick polling reads without hitting the front-office API.
type Cache struct {
	backend backend
	ttl     time.Duration
}

// New builds a Cache over b, entries expiring after ttl.
func New(b backend, ttl time.Duration) *Cache {
	return &Cache{backend: b, ttl: ttl}
}

func resultKey(requestID int64) string {
	return keyPrefix + strconv.FormatInt(requestID, 10)
}

// Put writes result for requestID, overwriting any prior entry. Called
// alongside every UpdateOverallResult so the cache never serves a status
// older than the last patch sent to the API.
func (c *Cache) Put(ctx context.Context, requestID int64, result model.JudgeResult) error {
	b, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, errors.CacheSetFailed)
	}
	if err := c.backend.Set(ctx, resultKey(requestID), string(b), c.ttl); err != nil {
		return errors.Wrap(err, errors.CacheSetFailed)
	}
	return nil
}

// Get returns the cached result for requestID. ok is false on a cache
// miss (nothing cached, or the entry expired); callers fall back to the
// front-office API in that case.
func (c *Cache) Get(ctx context.Context, requestID int64) (result model.JudgeResult, ok bool, err error) {
	raw, err := c.backend.Get(ctx, resultKey(requestID))
	if err != nil {
		return model.JudgeResult{}, false, errors.Wrap(err, errors.CacheError)
	}
	if raw == "" {
		return model.JudgeResult{}, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return model.JudgeResult{}, false, errors.Wrap(err, errors.CacheError).WithMessage("corrupt cached status entry")
	}
	return result, true, nil
}

// Invalidate removes requestID's cached entry, used when a request is
// requeued for retry so a stale terminal status can't be served while the
// rerun is in flight.
func (c *Cache) Invalidate(ctx context.Context, requestID int64) error {
	if err := c.backend.Del(ctx, resultKey(requestID)); err != nil {
		return errors.Wrap(err, errors.CacheError)
	}
	return nil
}
