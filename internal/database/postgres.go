package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/ruralpay/payments-engine/internal/config"
)

// Schema creates the tables the snapshot export writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS replay_runs (
	run_id      UUID PRIMARY KEY,
	records     INTEGER NOT NULL,
	applied     INTEGER NOT NULL,
	ignored     INTEGER NOT NULL,
	malformed   INTEGER NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS account_snapshots (
	run_id     UUID NOT NULL REFERENCES replay_runs (run_id),
	client_id  INTEGER NOT NULL,
	available  NUMERIC(24, 4) NOT NULL,
	held       NUMERIC(24, 4) NOT NULL,
	total      NUMERIC(24, 4) NOT NULL,
	locked     BOOLEAN NOT NULL,
	PRIMARY KEY (run_id, client_id)
);`

// ConnString builds a lib/pq connection string.
func ConnString(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)
}

// OpenPostgres opens and pings the export database and makes sure the schema
// exists.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating schema: %w", err)
	}

	logger.Info("database connection established", zap.String("host", cfg.Host), zap.String("name", cfg.Name))
	return db, nil
}
