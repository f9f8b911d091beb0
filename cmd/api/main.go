package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/commercekit/discount-registry/internal/config"
	"github.com/commercekit/discount-registry/internal/handler"
	"github.com/commercekit/discount-registry/internal/registry"
	"github.com/commercekit/discount-registry/internal/store"
	"github.com/commercekit/discount-registry/internal/validator"
	"github.com/commercekit/discount-registry/pkg/database"
)

func main() {
	// Load .env if present, then configuration
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize zerolog based on configuration
	initLogger(cfg)

	// Create context for startup
	ctx := context.Background()

	// Initialize the configured option-store backend
	optionStore, pinger, cleanup, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("failed to initialize store backend")
	}

	// Build the registry and declare its option key
	reg := registry.New(optionStore)
	if err := reg.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize discount registry")
	}

	// Initialize Fiber with production-ready configuration
	app := fiber.New(fiber.Config{
		AppName:      "Discount Registry",
		ReadTimeout:  30 * time.Second,  // Max time to read request
		WriteTimeout: 30 * time.Second,  // Max time to write response
		IdleTimeout:  120 * time.Second, // Max time for keep-alive connections
		BodyLimit:    1 * 1024 * 1024,   // 1MB body limit (explicit, prevents large payloads)
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	// Initialize validator
	validate := validator.New()

	// Handlers
	discountHandler := handler.NewDiscountHandler(reg, validate)
	redeemHandler := handler.NewRedeemHandler(reg, validate)
	healthHandler := handler.NewHealthHandler(pinger)

	app.Get("/health", healthHandler.Check)

	// Discount routes
	app.Post("/api/discounts", discountHandler.CreateDiscount)
	app.Get("/api/discounts", discountHandler.ListDiscounts)
	app.Get("/api/discounts/validate/:code", redeemHandler.ValidateDiscount)
	app.Post("/api/discounts/apply", redeemHandler.ApplyDiscount)
	app.Post("/api/discounts/redeem", redeemHandler.RedeemDiscount)
	app.Get("/api/discounts/:id", discountHandler.GetDiscount)
	app.Put("/api/discounts/:id", discountHandler.UpdateDiscount)
	app.Delete("/api/discounts/:id", discountHandler.DeleteDiscount)
	app.Patch("/api/discounts/:id/status", discountHandler.UpdateStatus)

	// Start server with graceful shutdown
	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("backend", cfg.Store.Backend).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Shutdown server (waits for in-flight requests)
	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Close store connections AFTER server shutdown (even if shutdown timed out)
	log.Info().Msg("closing store connections...")
	cleanup()
	log.Info().Msg("server stopped")
}

// redisPinger adapts a go-redis client to the handler.Pinger interface.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// newStore builds the option store selected by STORE_BACKEND, along with a
// health-check pinger (nil for the memory backend) and a cleanup func.
func newStore(ctx context.Context, cfg *config.Config) (store.OptionStore, handler.Pinger, func(), error) {
	switch cfg.Store.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, nil, err
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis connection established")
		cleanup := func() { _ = client.Close() }
		return store.NewRedisStore(client), redisPinger{client: client}, cleanup, nil
	case "memory":
		log.Warn().Msg("using in-memory store: data will not survive restarts")
		return store.NewMemoryStore(), nil, func() {}, nil
	default:
		pool, err := database.NewPool(ctx, cfg.DB.DSN(), 5)
		if err != nil {
			return nil, nil, nil, err
		}
		return store.NewPostgresStore(pool), pool, pool.Close, nil
	}
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
