package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"velvet-pos/internal/clock"
	"velvet-pos/internal/config"
	"velvet-pos/internal/database"
	"velvet-pos/internal/ledger"
	"velvet-pos/internal/ledger/memory"
	"velvet-pos/internal/ledger/redisstore"
	"velvet-pos/internal/ledger/sqlstore"
	"velvet-pos/internal/metrics"
	custommiddleware "velvet-pos/internal/middleware"
	"velvet-pos/internal/repository"
	"velvet-pos/internal/seed"
	"velvet-pos/internal/service"
	"velvet-pos/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// devJWTSecret signs tokens in development when JWT_SECRET is unset.
const devJWTSecret = "velvet-pos-development-secret"

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	store  ledger.Store
	redis  *redis.Client
}

// NewServer wires the ledger backend, services and HTTP routes. db is the
// migrated SQL database for the postgres and sqlite backends and nil
// otherwise.
func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service) (*Server, error) {
	secret := cfg.JWT.Secret
	if secret == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("JWT_SECRET must be set in %s", cfg.Server.Env)
		}
		logger.Warn("JWT_SECRET not set, using the development secret")
		secret = devJWTSecret
	}

	defaultTaxRate, err := decimal.NewFromString(cfg.Sale.DefaultTaxRate)
	if err != nil {
		return nil, fmt.Errorf("invalid SALE_DEFAULT_TAX_RATE %q: %w", cfg.Sale.DefaultTaxRate, err)
	}
	if err := service.ValidateTaxRate(defaultTaxRate); err != nil {
		return nil, fmt.Errorf("invalid SALE_DEFAULT_TAX_RATE: %w", err)
	}

	s := &Server{config: cfg, logger: logger}
	checks := make(map[string]transport.HealthCheck)

	// Redis backs the rate limiter and, when selected, the ledger itself
	if cfg.Ledger.Backend == config.BackendRedis || cfg.RateLimit.Requests > 0 {
		client := redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := pingRedis(client); err != nil {
			if cfg.Ledger.Backend == config.BackendRedis {
				client.Close()
				return nil, fmt.Errorf("failed to connect to redis: %w", err)
			}
			logger.Warn("Redis unavailable, rate limiting disabled", zap.Error(err))
			client.Close()
		} else {
			s.redis = client
			checks["redis"] = redisHealth(client)
		}
	}

	switch cfg.Ledger.Backend {
	case config.BackendMemory:
		s.store = memory.New()
	case config.BackendRedis:
		s.store = redisstore.New(s.redis, cfg.Ledger.RedisPrefix)
	case config.BackendPostgres, config.BackendSQLite:
		if db == nil {
			s.closeResources()
			return nil, fmt.Errorf("ledger backend %q needs a database", cfg.Ledger.Backend)
		}
		s.store = sqlstore.New(db.DB(), db.Dialect())
		checks["database"] = db.Health
	default:
		s.closeResources()
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
	logger.Info("Ledger backend ready", zap.String("backend", cfg.Ledger.Backend))

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	saleMetrics := metrics.NewSaleMetrics(registry)

	// Initialize repositories
	productRepo := repository.NewProductRepository(s.store)
	categoryRepo := repository.NewCategoryRepository(s.store)
	customerRepo := repository.NewCustomerRepository(s.store)
	configRepo := repository.NewConfigRepository(s.store)
	userRepo := repository.NewUserRepository(s.store)
	refreshTokenRepo := repository.NewRefreshTokenRepository(s.store)
	transactionRepo := repository.NewTransactionRepository(s.store)
	summaryRepo := repository.NewSummaryRepository(s.store)

	// Initialize services
	authService := service.NewAuthService(userRepo, refreshTokenRepo, clock.System, service.TokenConfig{
		Secret:        secret,
		AccessExpiry:  time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
		RefreshExpiry: time.Duration(cfg.JWT.RefreshExpiry) * 24 * time.Hour,
	}, logger)
	saleService := service.NewSaleService(s.store, configRepo, transactionRepo, clock.System, service.SaleConfig{
		MaxAttempts:    cfg.Sale.MaxAttempts,
		DefaultTaxRate: decimal.NewNullDecimal(defaultTaxRate),
	}, saleMetrics, logger)
	inventoryService := service.NewInventoryService(productRepo, categoryRepo, clock.System, logger)
	customerService := service.NewCustomerService(customerRepo, clock.System, logger)
	configService := service.NewStoreConfigService(configRepo, defaultTaxRate, logger)
	analyticsService := service.NewAnalyticsService(summaryRepo, configRepo, clock.System)

	seeder := seed.New(productRepo, categoryRepo, customerRepo, configRepo, userRepo, clock.System, seed.Owner{
		Email:    cfg.Demo.OwnerEmail,
		Password: cfg.Demo.OwnerPassword,
	}, logger)
	if cfg.Demo.Seed {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_, err := seeder.Seed(ctx, seed.DefaultStoreID)
		cancel()
		if err != nil {
			s.closeResources()
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	// Create router
	router := chi.NewRouter()
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.IsDevelopment()))
	router.Use(custommiddleware.DefaultMiddlewareStack(logger)...)

	// Authenticated requests are rate limited per store user
	authenticate := custommiddleware.AuthMiddlewareWith(transport.TokenValidator(authService), logger)
	if s.redis != nil {
		limit := custommiddleware.RateLimitMiddleware(s.redis, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
			KeyPrefix:         "ratelimit",
		}, logger)
		authOnly := authenticate
		authenticate = func(next http.Handler) http.Handler {
			return authOnly(limit(next))
		}
	}
	adminOnly := custommiddleware.RequireAdmin(logger)

	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Register routes
	transport.NewHealthHandler(cfg.Server.Env, checks).RegisterRoutes(router)
	transport.NewAuthHandler(authService, configService, logger).RegisterRoutes(router, authenticate, adminOnly)
	transport.NewInventoryHandler(inventoryService, logger).RegisterRoutes(router, authenticate, adminOnly)
	transport.NewCustomerHandler(customerService, logger).RegisterRoutes(router, authenticate)
	transport.NewTransactionHandler(saleService, logger).RegisterRoutes(router, authenticate)
	transport.NewStoreHandler(configService, analyticsService, logger).RegisterRoutes(router, authenticate, adminOnly)
	if cfg.IsDevelopment() {
		transport.NewDemoHandler(seeder, logger).RegisterRoutes(router)
	}

	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, nil
}

func pingRedis(client *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return client.Ping(ctx).Err()
}

func redisHealth(client *redis.Client) transport.HealthCheck {
	return func() map[string]string {
		if err := pingRedis(client); err != nil {
			return map[string]string{"status": "down", "error": err.Error()}
		}
		return map[string]string{"status": "up"}
	}
}

func (s *Server) closeResources() {
	// The SQL ledger owns the database pool and closes it.
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("Failed to close ledger store", zap.Error(err))
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")
	s.closeResources()
	s.logger.Sync()
	return nil
}
