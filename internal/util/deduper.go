package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper is a redis-backed seen-cache for scanned message keys. It only
// short-circuits work the archive would refuse anyway, so it fails open:
// when redis is unavailable, nothing is considered seen and nothing is
// blocked.
type Deduper struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDeduper(rdb *redis.Client, ttl time.Duration) *Deduper {
	return &Deduper{rdb: rdb, ttl: ttl}
}

func (d *Deduper) key(k string) string {
	return fmt.Sprintf("ingest:seen:%s", k)
}

// Seen reports whether the key was marked after a durable commit.
func (d *Deduper) Seen(ctx context.Context, k string) bool {
	n, err := d.rdb.Exists(ctx, d.key(k)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// MarkSeen records the key; errors are ignored, the archive stays
// authoritative.
func (d *Deduper) MarkSeen(ctx context.Context, k string) {
	_ = d.rdb.Set(ctx, d.key(k), 1, d.ttl).Err()
}
