package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vibecommerce/storefront/internal/catalog"
	"github.com/vibecommerce/storefront/internal/config"
	"github.com/vibecommerce/storefront/internal/event"
	handler "github.com/vibecommerce/storefront/internal/handler/http"
	"github.com/vibecommerce/storefront/internal/repository"
	"github.com/vibecommerce/storefront/internal/repository/fallback"
	"github.com/vibecommerce/storefront/internal/repository/memory"
	mongorepo "github.com/vibecommerce/storefront/internal/repository/mongo"
	"github.com/vibecommerce/storefront/internal/repository/postgres"
	redisrepo "github.com/vibecommerce/storefront/internal/repository/redis"
	"github.com/vibecommerce/storefront/internal/service"
	"github.com/vibecommerce/storefront/pkg/database"
	"github.com/vibecommerce/storefront/pkg/health"
	pkgkafka "github.com/vibecommerce/storefront/pkg/kafka"
	"github.com/vibecommerce/storefront/pkg/middleware"
	"github.com/vibecommerce/storefront/pkg/tracing"
)

// postgresStartupTimeout covers the pool's connect retries and migrations.
const postgresStartupTimeout = 30 * time.Second

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	health         *health.Handler
	mongoClient    *mongo.Client
	mongoErr       error
	rdb            *redis.Client
	pool           *pgxpool.Pool
	publisher      pkgkafka.Publisher
	handler        http.Handler
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// A persistent store that cannot be reached at startup is replaced by the
// in-memory store; only tracing setup errors are fatal.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    handler.ServiceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTelEndpoint,
		SampleRate:     cfg.OTelSampleRate,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}

	a := &App{
		cfg:            cfg,
		logger:         logger,
		health:         health.NewHandler(),
		tracerShutdown: tracerShutdown,
	}

	// Kafka is optional. Without it events are dropped.
	if cfg.KafkaEnabled {
		producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		a.health.RegisterOptional("kafka", producer.Ping)
		a.publisher = producer
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		a.publisher = pkgkafka.NopPublisher{}
	}

	// Build the dependency graph.
	eventProducer := event.NewProducer(a.publisher, logger)
	carts := a.cartRepository()
	orders := a.orderRepository()

	cartService := service.NewCartService(carts, eventProducer, logger, cfg.SessionID)
	checkoutService := service.NewCheckoutService(cartService, orders, eventProducer, logger, cfg.StoreTimeout)
	orderService := service.NewOrderService(orders, cfg.StoreTimeout)

	logger.Info("storage configured",
		slog.String("carts", cartService.Source()),
		slog.String("orders", orderService.Source()),
		slog.String("session_id", cfg.SessionID),
	)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	a.handler = handler.NewRouter(
		handler.Services{
			Catalog:  a.catalogProvider(),
			Carts:    cartService,
			Checkout: checkoutService,
			Orders:   orderService,
		},
		a.health,
		logger,
		handler.RouterConfig{
			CORS:           cors,
			RateLimitRPS:   cfg.RateLimitRPS,
			RateLimitBurst: cfg.RateLimitBurst,
			PprofCIDRs:     cfg.PprofAllowedCIDRs,
		},
	)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           a.handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

func (a *App) catalogProvider() catalog.Provider {
	if a.cfg.CatalogURL == "" {
		a.logger.Info("catalog upstream disabled, serving built-in products")
		return catalog.NewStatic()
	}
	return catalog.NewHTTPProvider(catalog.HTTPConfig{
		URL:        a.cfg.CatalogURL,
		Timeout:    a.cfg.CatalogTimeout,
		MaxRetries: a.cfg.CatalogMaxRetries,
	}, a.logger)
}

// cartRepository opens the configured cart backend. Persistent backends are
// wrapped so that a runtime fault switches the cart to memory.
func (a *App) cartRepository() repository.CartRepository {
	var (
		primary repository.CartRepository
		err     error
	)

	switch a.cfg.CartStore {
	case config.StoreMongo:
		primary, err = a.mongoCartRepository()
	case config.StoreRedis:
		primary, err = a.redisCartRepository()
	default:
		return memory.NewCartRepository()
	}

	if err != nil {
		a.storeUnavailable("carts", a.cfg.CartStore, err)
		return memory.NewCartRepository()
	}
	return fallback.NewCartRepository(primary, a.cfg.StoreTimeout, a.logger)
}

func (a *App) mongoCartRepository() (repository.CartRepository, error) {
	db, err := a.mongoDatabase()
	if err != nil {
		return nil, err
	}
	repo := mongorepo.NewCartRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.MongoConnectTimeout)
	defer cancel()
	if err := repo.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (a *App) redisCartRepository() (repository.CartRepository, error) {
	redisCfg := database.DefaultRedisConfig()
	redisCfg.Addr = a.cfg.RedisAddr
	redisCfg.Password = a.cfg.RedisPass
	redisCfg.DB = a.cfg.RedisDB

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.MongoConnectTimeout)
	defer cancel()

	rdb, err := database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		return nil, err
	}
	a.rdb = rdb
	a.health.RegisterOptional("redis", database.RedisCheck(rdb))
	a.logger.Info("connected to Redis",
		slog.String("addr", a.cfg.RedisAddr),
		slog.Int("db", a.cfg.RedisDB),
	)
	return redisrepo.NewCartRepository(rdb, a.cfg.CartTTLDuration()), nil
}

// orderRepository opens the configured order backend. Persistent backends
// are wrapped so that reads survive a runtime fault.
func (a *App) orderRepository() repository.OrderRepository {
	var (
		repo repository.OrderRepository
		err  error
	)

	switch a.cfg.OrderStore {
	case config.StoreMongo:
		repo, err = a.mongoOrderRepository()
	case config.StorePostgres:
		repo, err = a.postgresOrderRepository()
	default:
		return memory.NewOrderRepository()
	}

	if err != nil {
		a.storeUnavailable("orders", a.cfg.OrderStore, err)
		return memory.NewOrderRepository()
	}
	return fallback.NewOrderRepository(repo, a.cfg.StoreTimeout, a.logger)
}

func (a *App) mongoOrderRepository() (repository.OrderRepository, error) {
	db, err := a.mongoDatabase()
	if err != nil {
		return nil, err
	}
	repo := mongorepo.NewOrderRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.MongoConnectTimeout)
	defer cancel()
	if err := repo.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (a *App) postgresOrderRepository() (repository.OrderRepository, error) {
	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = a.cfg.PostgresHost
	pgCfg.Port = a.cfg.PostgresPort
	pgCfg.User = a.cfg.PostgresUser
	pgCfg.Password = a.cfg.PostgresPassword
	pgCfg.DBName = a.cfg.PostgresDB
	pgCfg.SSLMode = a.cfg.PostgresSSLMode

	ctx, cancel := context.WithTimeout(context.Background(), postgresStartupTimeout)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, pool, a.logger); err != nil {
		pool.Close()
		return nil, err
	}

	a.pool = pool
	a.health.RegisterOptional("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, "orders"); err != nil {
		a.logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", a.cfg.PostgresHost),
		slog.Int("port", a.cfg.PostgresPort),
		slog.String("database", a.cfg.PostgresDB),
	)
	return postgres.NewOrderRepository(pool), nil
}

// mongoDatabase connects once and shares the client between carts and orders.
// A failed connection is remembered so the second store does not wait again.
func (a *App) mongoDatabase() (*mongo.Database, error) {
	if a.mongoClient == nil && a.mongoErr == nil {
		client, err := database.ConnectMongo(context.Background(), database.MongoConfig{
			URI:            a.cfg.MongoURI,
			Database:       a.cfg.MongoDatabase,
			ConnectTimeout: a.cfg.MongoConnectTimeout,
		})
		if err != nil {
			a.mongoErr = err
		} else {
			a.mongoClient = client
			a.health.RegisterOptional("mongodb", database.MongoCheck(client))
			a.logger.Info("connected to MongoDB", slog.String("database", a.cfg.MongoDatabase))
		}
	}
	if a.mongoErr != nil {
		return nil, a.mongoErr
	}
	return a.mongoClient.Database(a.cfg.MongoDatabase), nil
}

func (a *App) storeUnavailable(store, backend string, err error) {
	a.logger.Warn("store unavailable at startup, using in-memory storage",
		slog.String("store", store),
		slog.String("backend", backend),
		slog.String("error", err.Error()),
	)
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.closeResources()
		return err
	}

	return a.Shutdown()
}

// Shutdown drains in-flight requests, then flushes spans and closes the
// stores and the event publisher.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.closeResources()

	a.logger.Info("application shutdown complete")
	return nil
}

func (a *App) closeResources() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}
	if a.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.mongoClient.Disconnect(ctx); err != nil {
			a.logger.Error("mongodb disconnect error", slog.String("error", err.Error()))
		}
		cancel()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
