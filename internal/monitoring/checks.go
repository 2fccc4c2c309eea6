package monitoring

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	defaultDatabaseTimeout = 2 * time.Second
	defaultRedisTimeout    = 2 * time.Second
)

// Database returns a probe that pings the configured database handle.
func Database(db *gorm.DB, timeout time.Duration) Check {
	return NewCheck("database", func(ctx context.Context) ProbeResult {
		start := time.Now()
		if db == nil {
			return ProbeResult{Status: StatusDown, Details: "database not configured"}
		}

		sqlDB, err := db.DB()
		if err != nil {
			return ResultFromError("database", err, time.Since(start))
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultDatabaseTimeout))
		defer cancel()

		return ResultFromError("database", sqlDB.PingContext(probeCtx), time.Since(start))
	})
}

// RedisPinger is the subset of the Redis cache used by the probe.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// Redis returns a probe for the Redis cache. A disabled cache reports up; an
// enabled cache that never connected is degraded because the database cache
// takes over.
func Redis(client RedisPinger, enabled bool, timeout time.Duration) Check {
	return NewCheck("redis", func(ctx context.Context) ProbeResult {
		if !enabled {
			return ProbeResult{Status: StatusUp, Details: "redis disabled"}
		}
		if client == nil {
			return ProbeResult{Status: StatusDegraded, Details: "redis unavailable; using database cache"}
		}

		start := time.Now()
		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultRedisTimeout))
		defer cancel()

		if err := client.Ping(probeCtx); err != nil {
			result := ResultFromError("redis", err, time.Since(start))
			result.Status = StatusDegraded
			return result
		}
		return ProbeResult{Status: StatusUp, Duration: time.Since(start)}
	})
}

// RateClock reports when exchange rates were last refreshed.
type RateClock interface {
	LastUpdated() time.Time
}

// ExchangeRates returns a probe that flags stale rate tables. maxAge <= 0
// means rates are never refreshed and the probe always reports up.
func ExchangeRates(rates RateClock, maxAge time.Duration, now func() time.Time) Check {
	if now == nil {
		now = time.Now
	}
	return NewCheck("exchange_rates", func(context.Context) ProbeResult {
		if maxAge <= 0 {
			return ProbeResult{Status: StatusUp, Details: "built-in rates"}
		}
		updated := rates.LastUpdated()
		if updated.IsZero() {
			return ProbeResult{Status: StatusDegraded, Details: "rates never refreshed; using built-in rates"}
		}
		if age := now().Sub(updated); age > maxAge {
			return ProbeResult{Status: StatusDegraded, Details: fmt.Sprintf("rates last refreshed %s ago", age.Round(time.Second))}
		}
		return ProbeResult{Status: StatusUp}
	})
}

func chooseTimeout(provided, fallback time.Duration) time.Duration {
	if provided <= 0 {
		return fallback
	}
	return provided
}
