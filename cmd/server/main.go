package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/moodroom/internal/adapter/httpserver"
	"github.com/pscheid92/moodroom/internal/adapter/memory"
	"github.com/pscheid92/moodroom/internal/adapter/metrics"
	"github.com/pscheid92/moodroom/internal/adapter/postgres"
	"github.com/pscheid92/moodroom/internal/adapter/redis"
	"github.com/pscheid92/moodroom/internal/adapter/sqlite"
	"github.com/pscheid92/moodroom/internal/app"
	"github.com/pscheid92/moodroom/internal/domain"
	"github.com/pscheid92/moodroom/internal/platform/config"
	"github.com/pscheid92/moodroom/internal/platform/logging"
	"github.com/pscheid92/moodroom/internal/platform/retry"
	"github.com/pscheid92/moodroom/internal/platform/version"
)

const (
	connectTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// slog is not configured yet
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func connectPolicy(clock clockwork.Clock, backend string) retry.Policy {
	return retry.Policy{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Clock:          clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Store connection failed, retrying", "backend", backend, "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
}

// setupStore opens the configured backend. The returned close func releases
// its connections.
func setupStore(ctx context.Context, cfg *config.Config, clock clockwork.Clock, storeMetrics *metrics.StoreMetrics) (domain.RoomStore, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	policy := connectPolicy(clock, cfg.StoreBackend)

	switch cfg.StoreBackend {
	case config.BackendMemory:
		return memory.NewStore(), func() {}, nil

	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case config.BackendRedis:
		client, err := retry.Do(ctx, policy, retry.AlwaysRetry, func(ctx context.Context) (*goredis.Client, error) {
			return redis.NewClient(ctx, cfg.RedisURL, storeMetrics)
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return redis.NewRoomStore(client), func() { _ = client.Close() }, nil

	case config.BackendPostgres:
		pool, err := retry.Do(ctx, policy, retry.AlwaysRetry, func(ctx context.Context) (*pgxpool.Pool, error) {
			return postgres.Connect(ctx, cfg.DatabaseURL, storeMetrics)
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.NewRoomStore(pool), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func roomConfig(cfg *config.Config) app.RoomConfig {
	return app.RoomConfig{
		VoteWindow:        cfg.VoteWindow,
		FairnessLookback:  cfg.FairnessLookback,
		StarvationCeiling: cfg.StarvationCeiling,
		CoverageLookback:  cfg.CoverageLookback,
		StatsLimit:        cfg.StatsDefaultLimit,
	}
}

func runGracefulShutdown(srv *httpserver.Server, stopBackground context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		stopBackground()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", append([]any{"env", cfg.AppEnv, "port", cfg.Port, "backend", cfg.StoreBackend}, version.Get().LogAttrs()...)...)

	reg := metrics.NewRegistry()
	roomMetrics := metrics.NewRoomMetrics(reg)
	storeMetrics := metrics.NewStoreMetrics(reg)
	httpMetrics := metrics.NewHTTPMetrics(reg)

	store, closeStore, err := setupStore(context.Background(), cfg, clock, storeMetrics)
	if err != nil {
		slog.Error("Failed to set up store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	room := app.NewRoom(store, clock, roomConfig(cfg), roomMetrics)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	if cfg.HistoryRetention > 0 {
		retention := app.NewHistoryRetention(room, clock, cfg.HistoryRetention, cfg.RetentionInterval)
		go retention.Run(bgCtx)
		slog.Info("History retention enabled", "retention", cfg.HistoryRetention, "interval", cfg.RetentionInterval)
	}

	srv := httpserver.NewServer(cfg, room, clock,
		httpserver.WithMetrics(metrics.Handler(reg), httpMetrics.Middleware()),
		httpserver.WithHealthChecks(httpserver.HealthCheck{Name: "store", Check: room.Ping}),
	)

	done := runGracefulShutdown(srv, stopBackground)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
