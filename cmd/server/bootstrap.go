package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vexpense/vexpense/internal/api"
	"github.com/vexpense/vexpense/internal/app"
	"github.com/vexpense/vexpense/internal/app/maintenance"
	iauth "github.com/vexpense/vexpense/internal/auth"
	"github.com/vexpense/vexpense/internal/cache"
	"github.com/vexpense/vexpense/internal/currency"
	"github.com/vexpense/vexpense/internal/database"
	"github.com/vexpense/vexpense/internal/middleware"
	"github.com/vexpense/vexpense/internal/monitoring"
	"github.com/vexpense/vexpense/pkg/logger"
)

const initialRateRefreshTimeout = 15 * time.Second

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Redis      *cache.RedisStore
	SessionSvc *iauth.SessionService
	Converter  *currency.Converter
	Cleaner    *maintenance.Cleaner
	RateStore  middleware.RateStore
	Router     *gin.Engine
}

// bootstrapRuntime initialises the database, cache, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var sharedStore cache.Store
	var dbStore *cache.DatabaseStore
	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
		} else {
			sharedStore = stack.Redis
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}
	if sharedStore == nil {
		dbStore = cache.NewDatabaseStore(stack.DB)
		sharedStore = dbStore
	}
	stack.RateStore = middleware.NewCacheRateStore(sharedStore)

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.SessionSvc, err = iauth.NewSessionService(stack.DB, jwtSvc, cfg.Auth.SessionServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise session service: %w", err)
	}

	stack.Converter = initialiseConverter(ctx, cfg, log)

	opts := []maintenance.Option{
		maintenance.WithSessionSchedule(cfg.Maintenance.SessionSchedule),
		maintenance.WithCacheSchedule(cfg.Maintenance.CachePurgeSchedule),
		maintenance.WithCurrencySchedule(cfg.Currency.RefreshSchedule),
	}
	if dbStore != nil {
		opts = append(opts, maintenance.WithCachePurger(dbStore))
	}
	if strings.TrimSpace(cfg.Currency.RatesURL) != "" {
		opts = append(opts, maintenance.WithRateRefresher(stack.Converter))
	}
	stack.Cleaner = maintenance.NewCleaner(stack.SessionSvc, opts...)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	var redisProbe monitoring.RedisPinger
	if stack.Redis != nil {
		redisProbe = stack.Redis
	}
	stack.Router, err = api.NewRouter(stack.DB, cfg, stack.SessionSvc, stack.Converter, stack.RateStore,
		api.WithHealthChecks(monitoring.Redis(redisProbe, cfg.Cache.Redis.Enabled, cfg.Cache.Redis.Timeout)),
	)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
		s.Redis = nil
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
		s.DB = nil
	}
}

func initialiseDatabase(ctx context.Context, cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.Connection()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(ctx, db, cfg.Auth.AdminSeed()); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(dbCfg.Driver)))

	return db, nil
}

// initialiseConverter builds the exchange-rate table. Without a rates URL the
// built-in table is used and never refreshed.
func initialiseConverter(ctx context.Context, cfg *app.Config, log *zap.Logger) *currency.Converter {
	url := strings.TrimSpace(cfg.Currency.RatesURL)
	if url == "" {
		return currency.NewConverter(nil)
	}

	converter := currency.NewConverter(currency.NewHTTPSource(url, cfg.Currency.Timeout))

	refreshCtx, cancel := context.WithTimeout(ctx, initialRateRefreshTimeout)
	defer cancel()
	if err := converter.Refresh(refreshCtx); err != nil {
		log.Warn("initial exchange-rate refresh failed; using built-in rates", zap.Error(err))
	}
	return converter
}
