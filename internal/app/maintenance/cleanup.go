package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vexpense/vexpense/pkg/logger"
)

const (
	defaultSessionSpec  = "@hourly"
	defaultCacheSpec    = "@every 30m"
	defaultCurrencySpec = "@every 1h"

	jobTimeout = 2 * time.Minute
)

// SessionCleaner removes expired or revoked sessions.
type SessionCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// CachePurger drops expired entries from the SQL cache table.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// RateRefresher reloads the exchange-rate table.
type RateRefresher interface {
	Refresh(ctx context.Context) error
}

// Cleaner coordinates background maintenance tasks such as purging expired sessions,
// dropping stale cache rows, and refreshing exchange rates.
type Cleaner struct {
	sessions SessionCleaner
	cache    CachePurger
	rates    RateRefresher
	cron     *cron.Cron
	log      *zap.Logger

	sessionSchedule  string
	cacheSchedule    string
	currencySchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithCachePurger enables purging of the SQL cache table.
func WithCachePurger(purger CachePurger) Option {
	return func(cleaner *Cleaner) {
		cleaner.cache = purger
	}
}

// WithRateRefresher enables the scheduled exchange-rate refresh.
func WithRateRefresher(refresher RateRefresher) Option {
	return func(cleaner *Cleaner) {
		cleaner.rates = refresher
	}
}

// WithSessionSchedule overrides the cron specification for session cleanup.
func WithSessionSchedule(schedule string) Option {
	return func(cleaner *Cleaner) {
		if schedule != "" {
			cleaner.sessionSchedule = schedule
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache purging.
func WithCacheSchedule(schedule string) Option {
	return func(cleaner *Cleaner) {
		if schedule != "" {
			cleaner.cacheSchedule = schedule
		}
	}
}

// WithCurrencySchedule overrides the cron specification for rate refreshes.
func WithCurrencySchedule(schedule string) Option {
	return func(cleaner *Cleaner) {
		if schedule != "" {
			cleaner.currencySchedule = schedule
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding job being skipped.
func NewCleaner(sessions SessionCleaner, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sessions:         sessions,
		sessionSchedule:  defaultSessionSpec,
		cacheSchedule:    defaultCacheSpec,
		currencySchedule: defaultCurrencySpec,
		log:              logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

func (c *Cleaner) enabled() bool {
	return c.sessions != nil || c.cache != nil || c.rates != nil
}

// Start registers jobs with the cron scheduler and launches it if at least one job is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled() {
		return nil
	}

	if c.sessions != nil {
		if _, err := c.cron.AddFunc(c.sessionSchedule, c.job("session cleanup", c.cleanSessions)); err != nil {
			return err
		}
	}

	if c.cache != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, c.job("cache purge", c.purgeCache)); err != nil {
			return err
		}
	}

	if c.rates != nil {
		if _, err := c.cron.AddFunc(c.currencySchedule, c.job("currency refresh", c.rates.Refresh)); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured routine sequentially and aggregates failures.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.sessions != nil {
		errs = multierr.Append(errs, c.cleanSessions(ctx))
	}
	if c.cache != nil {
		errs = multierr.Append(errs, c.purgeCache(ctx))
	}
	if c.rates != nil {
		errs = multierr.Append(errs, c.rates.Refresh(ctx))
	}

	return errs
}

func (c *Cleaner) job(name string, run func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := run(ctx); err != nil {
			c.log.Warn(name+" failed", zap.Error(err))
		}
	}
}

func (c *Cleaner) cleanSessions(ctx context.Context) error {
	removed, err := c.sessions.CleanupExpired(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		c.log.Info("expired sessions removed", zap.Int64("count", removed))
	}
	return nil
}

func (c *Cleaner) purgeCache(ctx context.Context) error {
	removed, err := c.cache.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		c.log.Debug("expired cache entries purged", zap.Int64("count", removed))
	}
	return nil
}
