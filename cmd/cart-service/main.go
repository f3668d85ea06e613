package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/DotZohaib/ShopSphere/internal/cache"
	"github.com/DotZohaib/ShopSphere/internal/catalog"
	"github.com/DotZohaib/ShopSphere/internal/checkout"
	"github.com/DotZohaib/ShopSphere/internal/config"
	"github.com/DotZohaib/ShopSphere/internal/httpapi"
	"github.com/DotZohaib/ShopSphere/internal/metrics"
	"github.com/DotZohaib/ShopSphere/internal/orders"
	"github.com/DotZohaib/ShopSphere/internal/poller"
	"github.com/DotZohaib/ShopSphere/internal/publisher"
	"github.com/DotZohaib/ShopSphere/internal/repository"
	"github.com/DotZohaib/ShopSphere/internal/service"
	"github.com/DotZohaib/ShopSphere/pkg/circuitbreaker"
	"github.com/DotZohaib/ShopSphere/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "cart-service"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Debug(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "cart service stopped with error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	healthChecks := make(map[string]httpapi.HealthCheck)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cartMetrics := metrics.NewCartMetrics(registry)

	// Cart store
	repo, closeRepo, err := newCartRepository(ctx, cfg, logg, healthChecks)
	if err != nil {
		return err
	}
	defer closeRepo()

	// Redis backs both the read cache and checkout idempotency keys
	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Address,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "addr", cfg.Redis.Address), "redis ping succeeded")
	healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }

	var cartCache cache.CartCache
	if cfg.Cart.CacheEnabled {
		cartCache = cache.NewRedisCache(redisClient, cfg.Cart.CacheTTL)
	}
	guard, err := cache.NewIdempotencyGuard(redisClient, cfg.Checkout.IdempotencyTTL)
	if err != nil {
		return err
	}

	// Catalog
	catalogRepo, err := catalog.NewRepository(cfg.Catalog.DBPath)
	if err != nil {
		return err
	}
	defer catalogRepo.Close()
	if err := catalogRepo.RunMigrations(cfg.Catalog.MigrationsPath); err != nil {
		return err
	}
	healthChecks["catalog"] = catalogRepo.Ping

	products := catalog.NewBreakerCatalog(catalogRepo, circuitbreaker.Settings{
		Name:             "catalog",
		MaxFailures:      cfg.Catalog.BreakerMaxFailures,
		OpenTimeout:      cfg.Catalog.BreakerOpenTimeout,
		HalfOpenRequests: cfg.Catalog.BreakerHalfOpenRequests,
		OnStateChange: func(name, from, to string) {
			cartMetrics.BreakerTransition(name, from, to)
			logg.Info(logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from,
				"to":      to,
			}), "circuit breaker state changed")
		},
	})

	mode, err := service.ParseConcurrencyMode(cfg.Cart.ConcurrencyMode)
	if err != nil {
		return err
	}
	carts := service.NewCartService(repo, cartCache, products,
		service.WithConcurrencyMode(mode),
		service.WithLogger(logg),
		service.WithMetrics(cartMetrics),
	)

	// Orders and checkout
	creds := &orders.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		SSLMode:           cfg.Postgres.SSLMode,
		MigrationsDirPath: cfg.Postgres.MigrationsPath,
	}
	ordersRepo, err := orders.NewRepository(ctx, creds)
	if err != nil {
		return err
	}
	defer ordersRepo.Close()
	if err := ordersRepo.RunMigrations(creds); err != nil {
		return err
	}
	healthChecks["postgres"] = ordersRepo.Ping

	checkoutSvc := checkout.NewService(carts, ordersRepo, guard,
		checkout.WithLogger(logg),
		checkout.WithMetrics(cartMetrics),
	)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup

	if cfg.Kafka.Enabled {
		outbox := publisher.NewOutboxPoller(ordersRepo,
			publisher.NewKafkaWriter(cfg.Kafka.Topic, cfg.Kafka.Brokers...), logg, cartMetrics)
		cleaner := poller.NewPoller(carts,
			poller.NewKafkaReader(cfg.Kafka.Topic, cfg.Kafka.GroupID, cfg.Kafka.Brokers...), logg)

		workers.Add(2)
		go func() {
			defer workers.Done()
			outbox.Run(workerCtx)
		}()
		go func() {
			defer workers.Done()
			cleaner.Run(workerCtx)
		}()
		defer func() {
			if err := outbox.Close(); err != nil {
				logg.Error(ctx, "error closing kafka writer", err)
			}
			cleaner.Close()
		}()
	} else {
		logg.Warn(ctx, "kafka disabled, carts are not cleared after checkout", nil)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Carts:          carts,
		Catalog:        products,
		Checkout:       checkoutSvc,
		Log:            logg,
		Gatherer:       registry,
		HealthChecks:   healthChecks,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		SecureCookies:  cfg.HTTP.SecureCookies,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "port", cfg.HTTP.Port), "cart service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
		logg.Info(ctx, "shutting down cart service")
	case err := <-serverErr:
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "server forced to shutdown", err)
	}

	stopWorkers()
	workers.Wait()

	logg.Info(ctx, "cart service stopped")
	return runErr
}

// newCartRepository connects the configured cart store and registers its health check.
func newCartRepository(ctx context.Context, cfg *config.Config, logg *logger.Logger, checks map[string]httpapi.HealthCheck) (repository.CartRepository, func(), error) {
	switch cfg.Cart.Store {
	case config.StoreMongo:
		opts := repository.MongoOptions{
			ConnectTimeout:         cfg.Mongo.ConnectTimeout,
			ServerSelectionTimeout: cfg.Mongo.ServerSelectionTimeout,
			MaxPoolSize:            cfg.Mongo.MaxPoolSize,
			MinPoolSize:            cfg.Mongo.MinPoolSize,
		}
		db, err := repository.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database, opts)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoRepository(db)
		if err := repo.CreateIndexes(ctx); err != nil {
			_ = db.Client().Disconnect(ctx)
			return nil, nil, err
		}
		checks["mongo"] = func(ctx context.Context) error { return db.Client().Ping(ctx, nil) }
		logg.Info(logg.WithField(ctx, "database", cfg.Mongo.Database), "connected to MongoDB")

		return repo, func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := db.Client().Disconnect(disconnectCtx); err != nil {
				logg.Error(disconnectCtx, "error disconnecting MongoDB", err)
			}
		}, nil

	case config.StoreFirestore:
		client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			return nil, nil, err
		}
		logg.Info(logg.WithField(ctx, "collection", cfg.Firestore.Collection), "connected to Firestore")
		return repository.NewFirestoreRepository(client, cfg.Firestore.Collection), func() {
			if err := client.Close(); err != nil {
				logg.Error(context.Background(), "error closing Firestore client", err)
			}
		}, nil

	default:
		logg.Warn(ctx, "using in-memory cart store, carts are lost on restart", nil)
		return repository.NewMemoryRepository(), func() {}, nil
	}
}
