package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"petshop/internal/cache"
	"petshop/internal/catalog"
	"petshop/internal/config"
	"petshop/internal/coupon"
	"petshop/internal/database"
	"petshop/internal/events"
	"petshop/internal/handler"
	"petshop/internal/identity"
	"petshop/internal/lock"
	"petshop/internal/payment"
	"petshop/internal/repository"
	"petshop/internal/repository/memory"
	"petshop/internal/router"
	"petshop/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Str("store", cfg.Store.Driver).Msg("starting petshop API server")

	// Cancelled on SIGINT/SIGTERM; every background loop stops with it.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("address", cfg.Server.Address()).Msg("HTTP server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		logger.Info().Msg("server shutdown completed")
		return nil
	})

	for _, runner := range a.runners {
		g.Go(func() error { return runner(gctx) })
	}

	return g.Wait()
}

// app is the wired service: the HTTP handler plus the loops that must run
// beside it.
type app struct {
	handler http.Handler
	runners []func(ctx context.Context) error
	closers []func()
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	carts, idem, closeCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeCache)

	if err := importCoupons(ctx, cfg, store.Coupons(), logger); err != nil {
		return nil, err
	}

	// Events go through the dispatcher so request paths never wait on the broker.
	var sink events.Publisher = events.NewLogPublisher(logger)
	if cfg.Kafka.Enabled {
		sink = events.NewKafkaPublisher(cfg.Kafka.EventsTopic, cfg.Kafka.Brokers...)
	}
	dispatcher := events.NewDispatcher(sink, cfg.Kafka.EventBuffer, logger)
	a.closers = append(a.closers, func() {
		if err := dispatcher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event publisher")
		}
	})

	locks := lock.NewKeyed()
	products := catalog.NewGateway(store.Products(), catalog.Settings{
		MaxFailures: uint32(cfg.Catalog.MaxFailures),
		OpenTimeout: cfg.Catalog.OpenTimeout,
	}, logger)
	coupons := coupon.NewEngine(store.Coupons(), time.Now, logger)
	refundQueue := service.NewRefundQueue(cfg.Refund.QueueSize, logger)

	// Initialize services
	productService := service.NewProductService(products, logger)
	cartService := service.NewCartService(carts, products, coupons, locks, logger)
	orderService := service.NewOrderService(store, carts, products, coupons, idem, locks, dispatcher, refundQueue, logger)
	paymentService := service.NewPaymentService(
		store,
		payment.NewSimulatedGateway(cfg.Payment.ApprovalRate, time.Now().UnixNano()),
		service.PaymentSettings{
			CardFeePercent: decimal.NewFromFloat(cfg.Payment.CardFeePercent),
			IntentTTL:      cfg.Payment.IntentTTL,
			Artifacts: payment.Artifacts{
				MerchantName: cfg.Payment.MerchantName,
				MerchantCity: cfg.Payment.MerchantCity,
				PixKey:       cfg.Payment.PixKey,
				BaseURL:      cfg.Payment.BaseURL,
				PixTTL:       cfg.Payment.PixTTL,
				BoletoTTL:    cfg.Payment.BoletoTTL,
			},
		},
		locks, dispatcher, refundQueue, logger,
	)
	refundService := service.NewRefundService(store, locks, refundQueue, logger)
	loyaltyService := service.NewLoyaltyService(store, locks, logger)
	refundWorker := service.NewRefundWorker(store, locks, refundQueue, dispatcher, service.RefundWorkerSettings{
		Delay:         cfg.Refund.Delay,
		SweepInterval: cfg.Refund.SweepInterval,
	}, logger)

	// Initialize router
	a.handler = router.New(router.Handlers{
		Products: handler.NewProductHandler(productService, logger),
		Cart:     handler.NewCartHandler(cartService, logger),
		Orders:   handler.NewOrderHandler(orderService, logger),
		Payments: handler.NewPaymentHandler(paymentService, refundService, logger),
		Loyalty:  handler.NewLoyaltyHandler(loyaltyService, logger),
	}, identity.NewProvider(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience), logger)

	a.runners = append(a.runners,
		dispatcher.Run,
		refundWorker.Run,
		func(ctx context.Context) error {
			return service.RunLoyaltyExpiry(ctx, loyaltyService, cfg.Loyalty.SweepInterval, logger)
		},
	)

	if cfg.Kafka.Enabled {
		consumer := events.NewSettlementConsumer(paymentService, cfg.Kafka.SettlementTopic, cfg.Kafka.GroupID, logger, cfg.Kafka.Brokers...)
		a.runners = append(a.runners, consumer.Run)
		a.closers = append(a.closers, func() {
			if err := consumer.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close settlement consumer")
			}
		})
	}

	return a, nil
}

// openStore connects the configured persistence backend.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.Store, func(), error) {
	if cfg.Store.Driver == config.DriverMemory {
		store := memory.NewStore()
		seedDemoData(store)
		logger.Warn().Msg("using in-memory store, data is lost on restart")
		return store, func() {}, nil
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database.ConnectionString(), logger); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return repository.NewStore(pool, logger), pool.Close, nil
}

// openCache returns the cart and idempotency stores, Redis-backed when enabled.
func openCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.CartRepository, cache.IdempotencyStore, func(), error) {
	if !cfg.Redis.Enabled {
		logger.Info().Msg("redis disabled, carts and idempotency keys kept in memory")
		return memory.NewCartRepository(), cache.NewMemoryIdempotencyStore(cfg.Redis.IdempotencyTTL), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close redis client")
		}
	}
	return cache.NewRedisCartRepository(client, cfg.Redis.CartTTL), cache.NewRedisIdempotencyStore(client, cfg.Redis.IdempotencyTTL), closeFn, nil
}

// importCoupons upserts the configured coupon files, S3 first when enabled.
func importCoupons(ctx context.Context, cfg *config.Config, coupons repository.CouponRepository, logger zerolog.Logger) error {
	if len(cfg.Coupons.Files) == 0 {
		return nil
	}

	fileLoader := coupon.NewFileLoader(logger)
	var s3Loader coupon.Loader
	if cfg.S3.Enabled {
		l, err := coupon.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
		} else {
			s3Loader = l
		}
	}

	loader := coupon.NewFallbackLoader(s3Loader, fileLoader, cfg.S3.Prefix, cfg.S3.Enabled, logger)
	if _, err := coupon.NewImporter(loader, coupons, logger).Import(ctx, cfg.Coupons.Files); err != nil {
		return fmt.Errorf("failed to import coupons: %w", err)
	}
	return nil
}
