package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func OpenPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// The exclusion constraint is the store-level guard against double booking: two active
// meetings on one date may not share a minute.
var postgresSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`CREATE TABLE IF NOT EXISTS services (
		id text PRIMARY KEY,
		name text NOT NULL,
		slug text NOT NULL UNIQUE,
		description text NOT NULL DEFAULT '',
		category text NOT NULL DEFAULT '',
		duration_minutes integer NOT NULL CHECK (duration_minutes > 0),
		price integer NOT NULL DEFAULT 0,
		active boolean NOT NULL DEFAULT true,
		color text NOT NULL DEFAULT '',
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS availability_rules (
		id text PRIMARY KEY,
		day_of_week integer NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
		start_time text NOT NULL,
		end_time text NOT NULL,
		active boolean NOT NULL DEFAULT true,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS blocked_dates (
		id text PRIMARY KEY,
		date text NOT NULL UNIQUE,
		reason text NOT NULL DEFAULT '',
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS meetings (
		id text PRIMARY KEY,
		service_id text NOT NULL,
		date text NOT NULL,
		time text NOT NULL,
		start_minute integer NOT NULL,
		duration_minutes integer NOT NULL CHECK (duration_minutes > 0),
		status text NOT NULL,
		client_name text NOT NULL,
		client_email text NOT NULL,
		client_phone text NOT NULL,
		channel text NOT NULL DEFAULT '',
		notes text NOT NULL DEFAULT '',
		created_at timestamptz NOT NULL,
		updated_at timestamptz NOT NULL,
		CONSTRAINT meetings_no_overlap EXCLUDE USING gist (
			date WITH =,
			int4range(start_minute, start_minute + duration_minutes) WITH &&
		) WHERE (status IN ('pending', 'confirmed'))
	)`,
	`CREATE INDEX IF NOT EXISTS meetings_date_idx ON meetings (date, time)`,
	`CREATE TABLE IF NOT EXISTS settings (
		id text PRIMARY KEY,
		buffer_time_minutes integer NOT NULL,
		min_advance_hours integer NOT NULL,
		max_advance_days integer NOT NULL,
		slot_duration_minutes integer NOT NULL,
		admin_email text NOT NULL DEFAULT '',
		timezone text NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id text PRIMARY KEY,
		username text NOT NULL UNIQUE,
		email text NOT NULL DEFAULT '',
		password_hash text NOT NULL,
		role text NOT NULL,
		created_at timestamptz NOT NULL,
		updated_at timestamptz NOT NULL
	)`,
}

func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	migrateCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(migrateCtx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func PostgresReadyCheck(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if pool == nil {
			return errors.New("db not configured")
		}
		return pool.Ping(ctx)
	}
}
