// Command migrate creates (or recreates) the database schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"

	"github.com/rotaplan/rotaplan_core/internal/db"
)

func main() {
	drop := flag.Bool("drop", false, "Drop existing tables before creating the schema")
	flag.Parse()

	log.Println("Running schema migration...")

	pool, err := db.Connect(db.LoadConfigFromEnv())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	if err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		return migrate(ctx, tx, *drop)
	}); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migration completed successfully!")
}

func migrate(ctx context.Context, tx pgx.Tx, drop bool) error {
	log.Println("Step 1/3: Ensuring PostGIS extension...")
	if _, err := tx.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS postgis`); err != nil {
		return fmt.Errorf("creating postgis extension: %w", err)
	}

	if drop {
		log.Println("Dropping existing tables...")
		if _, err := tx.Exec(ctx, `
			DROP TABLE IF EXISTS plan_routes;
			DROP TABLE IF EXISTS plans;
			DROP TABLE IF EXISTS employees;
			DROP TABLE IF EXISTS shifts;
		`); err != nil {
			return fmt.Errorf("dropping tables: %w", err)
		}
	}

	log.Println("Step 2/3: Creating shift and employee tables...")
	if _, err := tx.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS shifts (
			id          BIGSERIAL PRIMARY KEY,
			name        TEXT NOT NULL UNIQUE,
			color       TEXT,
			start_time  TIME,
			end_time    TIME
		);

		CREATE TABLE IF NOT EXISTS employees (
			id               BIGSERIAL PRIMARY KEY,
			name             TEXT NOT NULL,
			home_location    GEOGRAPHY(POINT, 4326),
			assigned_stop_id BIGINT,
			address          TEXT,
			shift_id         BIGINT REFERENCES shifts(id) ON DELETE SET NULL
		);

		CREATE INDEX IF NOT EXISTS idx_employees_shift ON employees(shift_id);
		CREATE INDEX IF NOT EXISTS idx_employees_home ON employees USING GIST(home_location);
	`); err != nil {
		return fmt.Errorf("creating employee tables: %w", err)
	}

	log.Println("Step 3/3: Creating plan tables...")
	if _, err := tx.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS plans (
			id                   BIGSERIAL PRIMARY KEY,
			name                 TEXT NOT NULL DEFAULT '',
			total_vehicles       INT NOT NULL DEFAULT 0,
			total_distance       DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_duration       DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_passengers     INT NOT NULL DEFAULT 0,
			max_walking_distance INT NOT NULL,
			depot_lat            DOUBLE PRECISION NOT NULL,
			depot_lng            DOUBLE PRECISION NOT NULL,
			traffic_mode         TEXT NOT NULL DEFAULT 'none',
			buffer_seats         INT NOT NULL DEFAULT 0,
			vehicle_priority     TEXT NOT NULL DEFAULT 'auto',
			max_travel_time      INT NOT NULL,
			num_small            INT NOT NULL,
			num_large            INT NOT NULL,
			shift_id             BIGINT,
			shift_name           TEXT,
			route_type           TEXT NOT NULL DEFAULT 'ring',
			exclude_tolls        BOOLEAN NOT NULL DEFAULT FALSE,
			degraded             BOOLEAN NOT NULL DEFAULT FALSE,
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS plan_routes (
			id           BIGSERIAL PRIMARY KEY,
			plan_id      BIGINT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
			vehicle_id   INT NOT NULL,
			vehicle_type TEXT NOT NULL,
			capacity     INT NOT NULL,
			passengers   INT NOT NULL DEFAULT 0,
			distance     DOUBLE PRECISION NOT NULL DEFAULT 0,
			duration     DOUBLE PRECISION NOT NULL DEFAULT 0,
			polyline     JSONB NOT NULL DEFAULT '[]',
			stops        JSONB NOT NULL DEFAULT '[]',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_plan_routes_plan ON plan_routes(plan_id);
	`); err != nil {
		return fmt.Errorf("creating plan tables: %w", err)
	}

	return nil
}
