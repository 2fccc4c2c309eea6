package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/vexpense/vexpense/internal/app"
	iauth "github.com/vexpense/vexpense/internal/auth"
	"github.com/vexpense/vexpense/internal/currency"
	"github.com/vexpense/vexpense/internal/handlers"
	"github.com/vexpense/vexpense/internal/middleware"
	"github.com/vexpense/vexpense/internal/monitoring"
	"github.com/vexpense/vexpense/internal/services"
)

// staleRatesAfter marks refreshed exchange rates as degraded in health reports.
const staleRatesAfter = 24 * time.Hour

// Option customises NewRouter.
type Option func(*routerOptions)

type routerOptions struct {
	healthChecks []monitoring.Check
}

// WithHealthChecks adds probes to the health endpoint beyond the database and exchange-rate checks.
func WithHealthChecks(checks ...monitoring.Check) Option {
	return func(o *routerOptions) {
		o.healthChecks = append(o.healthChecks, checks...)
	}
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
// A nil rateStore falls back to an in-process counter.
func NewRouter(db *gorm.DB, cfg *app.Config, sessions *iauth.SessionService, converter *currency.Converter, rateStore middleware.RateStore, opts ...Option) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session service must be provided")
	}
	if converter == nil {
		return nil, fmt.Errorf("currency converter must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if rateStore == nil {
		rateStore = middleware.NewMemoryRateStore()
	}

	options := routerOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	var rateAge time.Duration
	if strings.TrimSpace(cfg.Currency.RatesURL) != "" {
		rateAge = staleRatesAfter
	}
	health := monitoring.NewHealthManager(
		monitoring.Database(db, 0),
		monitoring.ExchangeRates(converter, rateAge, nil),
	)
	for _, check := range options.healthChecks {
		health.Register(check)
	}

	userSvc, err := services.NewUserService(db, sessions, cfg.Auth.PasswordCost())
	if err != nil {
		return nil, err
	}
	expenseSvc, err := services.NewExpenseService(db, converter)
	if err != nil {
		return nil, err
	}
	exporterSvc, err := services.NewExporterService(db)
	if err != nil {
		return nil, err
	}
	partSvc, err := services.NewPartService(db)
	if err != nil {
		return nil, err
	}
	shipmentSvc, err := services.NewShipmentService(db, converter)
	if err != nil {
		return nil, err
	}

	authHandler, err := handlers.NewAuthHandler(sessions, userSvc)
	if err != nil {
		return nil, err
	}
	userHandler, err := handlers.NewUserHandler(userSvc)
	if err != nil {
		return nil, err
	}
	expenseHandler, err := handlers.NewExpenseHandler(expenseSvc)
	if err != nil {
		return nil, err
	}
	exporterHandler, err := handlers.NewExporterHandler(exporterSvc)
	if err != nil {
		return nil, err
	}
	partHandler, err := handlers.NewPartHandler(partSvc)
	if err != nil {
		return nil, err
	}
	shipmentHandler, err := handlers.NewShipmentHandler(shipmentSvc)
	if err != nil {
		return nil, err
	}
	currencyHandler, err := handlers.NewCurrencyHandler(converter)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins...))

	registerHealthRoutes(r, health)

	// Metrics endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limits := cfg.RateLimit
	api := r.Group("/api")
	api.Use(middleware.RateLimit(rateStore, "api", limits.Requests, limits.Window))

	requireAuth := middleware.Auth(sessions)
	authLimit := middleware.RateLimit(rateStore, "auth", limits.AuthRequests, limits.AuthWindow)

	registerAuthRoutes(api, authRouteDeps{
		Handler:     authHandler,
		RequireAuth: requireAuth,
		RateLimit:   authLimit,
	})

	protected := api.Group("")
	protected.Use(requireAuth)

	registerUserRoutes(protected, userHandler)
	registerExpenseRoutes(protected, expenseHandler)
	registerExporterRoutes(protected, exporterHandler)
	registerPartRoutes(protected, partHandler)
	registerShipmentRoutes(protected, shipmentHandler)
	registerCurrencyRoutes(protected, currencyHandler)

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)
	r.NoMethod(middleware.MethodNotAllowedHandler)

	return r, nil
}
