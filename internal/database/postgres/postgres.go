package postgres

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"coordination-service/internal/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var DBStatus bool

// Reconciliation trail schema. This store is local operational data only;
// authoritative claim/payout state lives on the ledger.
const schema = `
CREATE TABLE IF NOT EXISTS payout_run (
	id                  UUID PRIMARY KEY,
	location            TEXT NOT NULL,
	observed_at         TIMESTAMPTZ NOT NULL,
	policies_checked    INTEGER NOT NULL DEFAULT 0,
	thresholds_breached INTEGER NOT NULL DEFAULT 0,
	claims_triggered    INTEGER NOT NULL DEFAULT 0,
	error_count         INTEGER NOT NULL DEFAULT 0,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS unreconciled_payout (
	id            UUID PRIMARY KEY,
	run_id        UUID NOT NULL REFERENCES payout_run(id),
	claim_id      TEXT NOT NULL,
	policy_id     TEXT NOT NULL,
	farmer_id     TEXT NOT NULL,
	payout_amount DOUBLE PRECISION NOT NULL,
	failure_cause TEXT NOT NULL,
	resolved_at   TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_unreconciled_payout_open
	ON unreconciled_payout (created_at) WHERE resolved_at IS NULL;
`

func ConnectAndCreateDB(cfg config.PostgresConfig) (*sqlx.DB, error) {
	defaultConnStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=postgres sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password)

	defaultDB, err := sql.Open("postgres", defaultConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to default postgres db: %w", err)
	}
	defer defaultDB.Close()

	var exists bool
	checkQuery := `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`
	err = defaultDB.QueryRow(checkQuery, cfg.DBname).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check if database exists: %w", err)
	}

	if !exists {
		createQuery := fmt.Sprintf(`CREATE DATABASE "%s"`, cfg.DBname)
		if _, err = defaultDB.Exec(createQuery); err != nil {
			return nil, fmt.Errorf("failed to create database %s: %w", cfg.DBname, err)
		}
		slog.Info("Database created", "dbname", cfg.DBname)
	}

	targetConnStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.DBname)

	db, err := sqlx.Connect("postgres", targetConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to target database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping target database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply reconciliation schema: %w", err)
	}

	DBStatus = true
	return db, nil
}

// RetryConnectOnFailed keeps retrying the connection in the background until
// it succeeds. Used when the service starts before Postgres is reachable.
func RetryConnectOnFailed(wait time.Duration, db **sqlx.DB, cfg config.PostgresConfig) {
	if DBStatus {
		return
	}

	if *db != nil {
		if err := (*db).Ping(); err == nil {
			slog.Info("database connection is healthy, no retry needed")
			return
		}
	}

	newDB, err := ConnectAndCreateDB(cfg)
	if err == nil {
		*db = newDB
		slog.Info("database retry connection succeeded")
		return
	}
	slog.Error("failed to retry database connection", "error", err, "next_retry_in", wait)
	time.Sleep(wait)

	RetryConnectOnFailed(wait, db, cfg)
}
