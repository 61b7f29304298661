package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL DEFAULT '',
		pickup_lat DOUBLE PRECISION NOT NULL,
		pickup_lng DOUBLE PRECISION NOT NULL,
		pickup_address TEXT NOT NULL DEFAULT '',
		dropoff_lat DOUBLE PRECISION NOT NULL,
		dropoff_lng DOUBLE PRECISION NOT NULL,
		dropoff_address TEXT NOT NULL DEFAULT '',
		delivery_date TIMESTAMPTZ,
		preferred_slot TEXT NOT NULL DEFAULT '',
		priority INT NOT NULL DEFAULT 1,
		value DOUBLE PRECISION NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS orders_status_idx ON orders (status)`,

	`CREATE TABLE IF NOT EXISTS drivers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		vehicle_type TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'offline',
		max_orders INT NOT NULL DEFAULT 1,
		lat DOUBLE PRECISION NOT NULL DEFAULT 0,
		lng DOUBLE PRECISION NOT NULL DEFAULT 0,
		located_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS drivers_status_idx ON drivers (status)`,

	`CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		driver_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'offered',
		sequence INT NOT NULL DEFAULT 0,
		offered_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		reject_reason TEXT NOT NULL DEFAULT '',
		estimated_pickup TIMESTAMPTZ,
		estimated_delivery TIMESTAMPTZ,
		actual_pickup TIMESTAMPTZ,
		actual_delivery TIMESTAMPTZ,
		missing_window BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS assignments_driver_status_idx ON assignments (driver_id, status)`,
	`CREATE INDEX IF NOT EXISTS assignments_expiry_idx ON assignments (status, expires_at)`,

	`CREATE TABLE IF NOT EXISTS observations (
		id TEXT PRIMARY KEY,
		from_lat DOUBLE PRECISION NOT NULL,
		from_lng DOUBLE PRECISION NOT NULL,
		to_lat DOUBLE PRECISION NOT NULL,
		to_lng DOUBLE PRECISION NOT NULL,
		estimated_seconds DOUBLE PRECISION NOT NULL,
		actual_seconds DOUBLE PRECISION NOT NULL,
		deviation_seconds DOUBLE PRECISION NOT NULL,
		time_of_day TEXT NOT NULL,
		day_of_week TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS observations_from_idx ON observations (from_lat, from_lng, created_at)`,

	`CREATE TABLE IF NOT EXISTS time_windows (
		order_id TEXT PRIMARY KEY,
		lower_bound TIMESTAMPTZ NOT NULL,
		upper_bound TIMESTAMPTZ NOT NULL,
		width_seconds DOUBLE PRECISION NOT NULL,
		expected_arrival TIMESTAMPTZ NOT NULL,
		confidence_level DOUBLE PRECISION NOT NULL,
		violation_probability DOUBLE PRECISION NOT NULL,
		penalty_width DOUBLE PRECISION NOT NULL,
		penalty_early DOUBLE PRECISION NOT NULL,
		penalty_late DOUBLE PRECISION NOT NULL,
		calculation_method TEXT NOT NULL,
		sample_count INT NOT NULL DEFAULT 0,
		sample_stddev DOUBLE PRECISION NOT NULL DEFAULT 0,
		coefficient_of_variation DOUBLE PRECISION NOT NULL DEFAULT 0,
		actual_arrival TIMESTAMPTZ,
		was_within_window BOOLEAN NOT NULL DEFAULT FALSE,
		realized_deviation_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
		completed BOOLEAN NOT NULL DEFAULT FALSE
	)`,
}

// Migrate applies the schema statements. Every statement is idempotent so
// repeated startups are safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
