package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/couponbot/core/logger"
)

const connectTimeout = 5 * time.Second

// Connect opens the database for cfg and pings it before returning.
func Connect(cfg Config) (*sqlx.DB, error) {
	driver := cfg.DriverName()
	if driver == DriverSQLite {
		if cfg.Path == "" {
			return nil, fmt.Errorf("db connect: sqlite path is empty")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("db connect: create sqlite dir: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, driver, cfg.DSN())
	took := time.Since(start)
	if err != nil {
		logger.DB.Error("db connect failed",
			append(targetAttrs(cfg),
				slog.String("event", "db.connect"),
				slog.Duration("duration", logger.RoundMS(took)),
				slog.String("err", err.Error()),
			)...,
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	pool := cfg.MaxConnections
	if pool <= 0 {
		pool = defaultPool(driver)
	}
	db.SetMaxOpenConns(pool)
	db.SetMaxIdleConns(pool)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.DB.Info("db connected",
		append(targetAttrs(cfg),
			slog.String("event", "db.connect"),
			slog.Int("pool_open", pool),
			slog.Duration("duration", logger.RoundMS(took)),
		)...,
	)
	return db, nil
}

// sqlite serialises writers; one pooled connection avoids SQLITE_BUSY under load.
func defaultPool(driver string) int {
	if driver == DriverSQLite {
		return 1
	}
	return 10
}

func targetAttrs(cfg Config) []any {
	if cfg.DriverName() == DriverSQLite {
		return []any{
			slog.String("driver", DriverSQLite),
			slog.String("db", cfg.Path),
		}
	}
	return []any{
		slog.String("driver", DriverPostgres),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
	}
}

// WaitReady polls the database until it answers a ping or timeout elapses.
// sqlite files are always ready.
func WaitReady(cfg Config, timeout time.Duration) error {
	if cfg.DriverName() == DriverSQLite {
		return nil
	}
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		lastErr = pingOnce(cfg)
		if lastErr == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout reached waiting for database: %w", lastErr)
		}
		logger.DB.Debug("db not ready yet",
			slog.String("event", "db.wait"),
			slog.String("err", lastErr.Error()),
		)
		time.Sleep(2 * time.Second)
	}
}

func pingOnce(cfg Config) error {
	db, err := sql.Open(cfg.DriverName(), cfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return db.PingContext(ctx)
}
