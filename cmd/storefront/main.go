package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/Varunjaishreeram/ayurvedic-store/internal/api"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/config"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/events"
	h "github.com/Varunjaishreeram/ayurvedic-store/internal/http"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/logger"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/storage"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/workspace"
)

const (
	sweepInterval   = time.Minute
	janitorInterval = time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	lg, err := logger.New(logger.Options{Service: "storefront", Env: cfg.AppEnv, Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer lg.Sync()
	zap.ReplaceGlobals(lg)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	var bg sync.WaitGroup
	runBackground := func(f func(context.Context)) {
		bg.Add(1)
		go func() {
			defer bg.Done()
			f(bgCtx)
		}()
	}

	backend, err := openStorage(bgCtx, cfg, lg, runBackground)
	if err != nil {
		lg.Fatal("failed to open storage", zap.String("backend", cfg.StorageBackend), zap.Error(err))
	}
	lg.Info("storage ready", zap.String("backend", cfg.StorageBackend))

	var publisher events.Publisher = events.NopPublisher{}
	var kafkaPublisher *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaTopic, cfg.KafkaBrokers...), lg)
		publisher = kafkaPublisher
		runBackground(kafkaPublisher.Run)
		lg.Info("publishing storefront events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	client := api.New(cfg.APIBaseURL, cfg.APITimeout,
		api.WithLogger(lg.Named("api")),
		api.WithRateLimit(cfg.APIRatePerSecond, cfg.APIRateBurst),
		api.WithBreaker(cfg.BreakerMaxFails, cfg.BreakerOpenPeriod),
	)

	registry := workspace.NewRegistry(backend, client,
		workspace.WithPublisher(publisher),
		workspace.WithLogger(lg),
		workspace.WithRemoteConfirm(cfg.ConfirmSession),
		workspace.WithIdleAfter(cfg.WorkspaceIdle),
	)
	runBackground(func(ctx context.Context) { registry.Run(ctx, sweepInterval) })

	limiter := h.NewVisitorLimiter(cfg.VisitorRate, cfg.VisitorBurst)
	runBackground(func(ctx context.Context) { limiter.Run(ctx, 5*time.Minute, 30*time.Minute) })

	handler := h.NewHandler(registry, cfg.RequestTimeout,
		h.WithMaxBodySize(cfg.MaxRequestBodySize),
		h.WithLogger(lg.Named("http")),
	)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(h.RequestIDMiddleware)
	r.Use(h.RequestLogger(lg.Named("access")))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.VisitorMiddleware(cfg.VisitorCookie, cfg.AppEnv == "prod"))
		r.Use(limiter.Middleware)
		handler.Routes(r)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(r, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		lg.Info("storefront starting", zap.String("port", cfg.HTTPPort), zap.String("api", cfg.APIBaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		lg.Error("server forced to shutdown", zap.Error(err))
	}

	registry.Close()
	stopBackground()
	bg.Wait()

	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			lg.Warn("failed to close event writer", zap.Error(err))
		}
	}
	if err := backend.Close(); err != nil {
		lg.Warn("failed to close storage", zap.Error(err))
	}

	lg.Info("server exited")
}

func openStorage(ctx context.Context, cfg *config.Config, lg *zap.Logger, runBackground func(func(context.Context))) (storage.Backend, error) {
	switch cfg.StorageBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return storage.NewRedisBackend(client, cfg.RedisTTL), nil

	case "sqlite":
		b, err := storage.NewSQLiteBackend(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		runBackground(func(ctx context.Context) { purgeLoop(ctx, b, cfg.SQLiteRetain, lg) })
		return b, nil

	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		db, err := storage.ConnectMongoDB(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		b := storage.NewMongoBackend(db)
		if err := b.CreateIndexes(connectCtx); err != nil {
			b.Close()
			return nil, err
		}
		return b, nil

	default:
		return storage.NewMemoryBackend(), nil
	}
}

// purgeLoop drops SQLite slots untouched for longer than retain.
func purgeLoop(ctx context.Context, b *storage.SQLiteBackend, retain time.Duration, lg *zap.Logger) {
	if retain <= 0 {
		return
	}
	t := time.NewTicker(janitorInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := b.PurgeOlderThan(ctx, time.Now().Add(-retain))
			if err != nil {
				lg.Warn("storage purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				lg.Info("purged stale storage slots", zap.Int64("count", n))
			}
		}
	}
}
