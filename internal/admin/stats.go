// AngelaMos | 2026
// stats.go

package admin

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const pingTimeout = 3 * time.Second

// DatabaseProbe is satisfied by core.Database.
type DatabaseProbe interface {
	Ping(ctx context.Context) error
	Stats() sql.DBStats
}

// RedisProbe is satisfied by core.Redis.
type RedisProbe interface {
	Ping(ctx context.Context) error
	PoolStats() *redis.PoolStats
}

type SystemStatsResponse struct {
	Database DependencyStatus[DBPoolStats]    `json:"database"`
	Redis    DependencyStatus[RedisPoolStats] `json:"redis"`
	Runtime  RuntimeStats                     `json:"runtime"`
}

type DependencyStatus[T any] struct {
	Healthy bool `json:"healthy"`
	Stats   *T   `json:"stats,omitempty"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
	MaxIdleClosed      int64  `json:"max_idle_closed"`
	MaxLifetimeClosed  int64  `json:"max_lifetime_closed"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
	StaleConns uint32 `json:"stale_conns"`
}

type RuntimeStats struct {
	GoVersion     string `json:"go_version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	NumGoroutine  int    `json:"num_goroutine"`
	NumCPU        int    `json:"num_cpu"`
	HeapAlloc     uint64 `json:"heap_alloc_bytes"`
	Sys           uint64 `json:"sys_bytes"`
	NumGC         uint32 `json:"num_gc"`
}

// collect pings both stores concurrently. A failed ping only marks the
// dependency unhealthy.
func (h *Handler) collect(ctx context.Context) SystemStatsResponse {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	resp := SystemStatsResponse{Runtime: runtimeStats(h.startedAt)}

	var g errgroup.Group
	if h.db != nil {
		g.Go(func() error {
			resp.Database.Healthy = h.db.Ping(ctx) == nil
			return nil
		})
	}
	if h.redis != nil {
		g.Go(func() error {
			resp.Redis.Healthy = h.redis.Ping(ctx) == nil
			return nil
		})
	}
	//nolint:errcheck // pings report through Healthy
	_ = g.Wait()

	resp.Database.Stats = dbPoolStats(h.db)
	if resp.Redis.Healthy {
		resp.Redis.Stats = redisPoolStats(h.redis)
	}

	return resp
}

func dbPoolStats(db DatabaseProbe) *DBPoolStats {
	if db == nil {
		return nil
	}

	s := db.Stats()
	return &DBPoolStats{
		MaxOpenConnections: s.MaxOpenConnections,
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		WaitCount:          s.WaitCount,
		WaitDuration:       s.WaitDuration.String(),
		MaxIdleClosed:      s.MaxIdleClosed + s.MaxIdleTimeClosed,
		MaxLifetimeClosed:  s.MaxLifetimeClosed,
	}
}

func redisPoolStats(rdb RedisProbe) *RedisPoolStats {
	if rdb == nil {
		return nil
	}

	s := rdb.PoolStats()
	if s == nil {
		return nil
	}
	return &RedisPoolStats{
		Hits:       s.Hits,
		Misses:     s.Misses,
		Timeouts:   s.Timeouts,
		TotalConns: s.TotalConns,
		IdleConns:  s.IdleConns,
		StaleConns: s.StaleConns,
	}
}

func runtimeStats(startedAt time.Time) RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return RuntimeStats{
		GoVersion:     runtime.Version(),
		UptimeSeconds: int64(time.Since(startedAt).Seconds()),
		NumGoroutine:  runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		HeapAlloc:     m.HeapAlloc,
		Sys:           m.Sys,
		NumGC:         m.NumGC,
	}
}
