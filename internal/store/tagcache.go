package store

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

const tagIndexPrefix = "cachetag:"

// TagCache is a KV wrapper with tag-based invalidation.
// Every Set also writes one index key per tag ("cachetag:<tag>:<key>"), so
// invalidating a tag is a scan over its index keys plus a delete of both the
// index and the data keys. Entries carry a TTL as a backstop: a missed
// invalidation goes stale for at most one TTL.
type TagCache struct {
	kv     KV
	ttl    time.Duration
	logger *zap.Logger
}

func NewTagCache(kv KV, ttl time.Duration, logger *zap.Logger) *TagCache {
	return &TagCache{kv: kv, ttl: ttl, logger: logger}
}

func (c *TagCache) Get(ctx context.Context, key string) (string, error) {
	return c.kv.Get(ctx, key)
}

func (c *TagCache) Set(ctx context.Context, key, value string, tags ...string) error {
	if err := c.kv.Set(ctx, key, value, c.ttl); err != nil {
		return err
	}
	for _, tag := range tags {
		if err := c.kv.Set(ctx, tagIndexPrefix+tag+":"+key, "1", c.ttl); err != nil {
			return err
		}
	}
	return nil
}

// InvalidateByTags drops every entry written under any of the given tags.
// Failures are logged and skipped; the TTL caps how long a survivor stays stale.
func (c *TagCache) InvalidateByTags(ctx context.Context, tags ...string) {
	for _, tag := range tags {
		prefix := tagIndexPrefix + tag + ":"
		indexKeys, err := c.kv.ScanKeys(ctx, prefix+"*")
		if err != nil {
			c.logger.Warn("cache tag scan failed", zap.String("tag", tag), zap.Error(err))
			continue
		}
		for _, indexKey := range indexKeys {
			dataKey := strings.TrimPrefix(indexKey, prefix)
			if err := c.kv.Del(ctx, dataKey, indexKey); err != nil {
				c.logger.Warn("cache invalidation failed",
					zap.String("tag", tag),
					zap.String("key", dataKey),
					zap.Error(err))
			}
		}
	}
}
