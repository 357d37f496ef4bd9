// Package cache memoizes successful route queries in Redis.
package cache

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"

	"debris_router/pkg/metrics"
	"debris_router/pkg/routing"
)

// Source is a Router that exposes the snapshot it answers from. Cached
// entries are keyed by the snapshot version so they never outlive the graph.
type Source interface {
	routing.Router
	Snapshot() *routing.Snapshot
}

// Open returns a client for addr, or nil when addr is empty.
func Open(addr, pass string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}

// Router serves repeated queries from Redis and forwards the rest to the
// wrapped Source. Only successful results are stored. Redis failures are
// logged and the query falls through.
type Router struct {
	next   Source
	rc     *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New wraps next. A nil client disables caching.
func New(next Source, rc *redis.Client, ttl time.Duration, logger *slog.Logger) *Router {
	return &Router{next: next, rc: rc, ttl: ttl, logger: logger}
}

// FindRoute implements routing.Router.
func (c *Router) FindRoute(ctx context.Context, start, end orb.Point) (*routing.PathResult, error) {
	snap := c.next.Snapshot()
	if c.rc == nil || snap == nil {
		return c.next.FindRoute(ctx, start, end)
	}

	key := Key(snap.Version, start, end)
	s, err := c.rc.Get(ctx, key).Result()
	switch {
	case err == nil:
		var res routing.PathResult
		if err := json.Unmarshal([]byte(s), &res); err == nil {
			// No search ran for this answer.
			res.Settled = 0
			metrics.CacheHitsTotal.Inc()
			return &res, nil
		}
		c.logger.Warn("route cache entry unreadable", "key", key)
		metrics.CacheErrorsTotal.Inc()
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("route cache get failed", "key", key, "err", err)
		metrics.CacheErrorsTotal.Inc()
	}
	metrics.CacheMissesTotal.Inc()

	res, err := c.next.FindRoute(ctx, start, end)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(res)
	if err != nil {
		return res, nil
	}
	if err := c.rc.Set(ctx, key, b, c.ttl).Err(); err != nil {
		c.logger.Warn("route cache set failed", "key", key, "err", err)
		metrics.CacheErrorsTotal.Inc()
	}
	return res, nil
}

// Key is the Redis key of a query against graph version v. Coordinates are
// hashed by their exact bit patterns.
func Key(v uint64, start, end orb.Point) string {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[0:], math.Float64bits(start[0]))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(start[1]))
	binary.LittleEndian.PutUint64(buf[16:], math.Float64bits(end[0]))
	binary.LittleEndian.PutUint64(buf[24:], math.Float64bits(end[1]))
	return fmt.Sprintf("route:%016x:%016x", v, xxhash.Sum64(buf[:]))
}
