package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/tern/v2/migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Connect opens a pgx pool and verifies it with a ping. observer may be nil.
func Connect(ctx context.Context, databaseURL string, observer OpObserver) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if observer != nil {
		poolCfg.ConnConfig.Tracer = &queryTracer{observer: observer}
	}

	slog.Info("Database SSL mode", "sslmode", extractSSLMode(databaseURL))

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Database connected", "min_conns", poolCfg.MinConns, "max_conns", poolCfg.MaxConns)
	return pool, nil
}

func extractSSLMode(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "unknown"
	}
	mode := strings.ToLower(u.Query().Get("sslmode"))
	if mode == "" {
		return "prefer (default)"
	}
	return mode
}

const (
	// migrationLockID serializes room migrations across instances ("moodrm" in ASCII hex).
	migrationLockID             = 0x6d6f6f64726d
	migrationLockReleaseTimeout = 5 * time.Second

	// versionTable records the applied room schema version.
	versionTable = "public.moodroom_schema_version"
)

// RunMigrationsWithLock brings the votes and selections tables up to date.
// Instances racing at startup queue on a session advisory lock.
func RunMigrationsWithLock(ctx context.Context, pool *pgxpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for room migrations: %w", err)
	}
	defer conn.Release()

	unlock, err := lockRoomSchema(ctx, conn.Conn())
	if err != nil {
		return err
	}
	defer unlock()

	return migrateRoomSchema(ctx, conn.Conn())
}

func migrateRoomSchema(ctx context.Context, conn *pgx.Conn) error {
	migrationFS, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded room migrations: %w", err)
	}

	migrator, err := migrate.NewMigrator(ctx, conn, versionTable)
	if err != nil {
		return fmt.Errorf("failed to create room migrator: %w", err)
	}
	if err := migrator.LoadMigrations(migrationFS); err != nil {
		return fmt.Errorf("failed to load room migrations: %w", err)
	}

	target := int32(len(migrator.Migrations))
	from, err := migrator.GetCurrentVersion(ctx)
	if err != nil {
		slog.Debug("Room schema version unknown, assuming fresh database", "table", versionTable, "error", err)
	}
	if from == target {
		slog.Info("Room schema up to date", "table", versionTable, "version", from)
		return nil
	}

	slog.Info("Migrating room schema", "table", versionTable, "from", from, "to", target)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate room schema from version %d: %w", from, err)
	}
	return nil
}

// lockRoomSchema blocks until the room migration lock is held. The returned
// func releases it on a fresh context so a cancelled ctx cannot leak the lock.
func lockRoomSchema(ctx context.Context, conn *pgx.Conn) (unlock func(), err error) {
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return nil, fmt.Errorf("failed to acquire room migration lock: %w", err)
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), migrationLockReleaseTimeout)
		defer cancel()
		if _, err := conn.Exec(releaseCtx, "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			slog.Error("Failed to release room migration lock", "lock_id", migrationLockID, "error", err)
		}
	}, nil
}
