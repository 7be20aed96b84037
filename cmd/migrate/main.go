package main

import (
	"context"
	"fmt"
	"log"

	"skydrive/internal/config"
	"skydrive/internal/repository/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// Creates the drive schema for the configured environment prefix.
// Idempotent: every statement is IF NOT EXISTS.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	t := postgres.NewTableNames(cfg.TablePrefix)

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id          BIGSERIAL PRIMARY KEY,
			username    VARCHAR(255) NOT NULL UNIQUE,
			used_space  BIGINT NOT NULL DEFAULT 0,
			total_space BIGINT NOT NULL DEFAULT 10737418240
		);

		CREATE TABLE IF NOT EXISTS %[2]s (
			id             BIGSERIAL PRIMARY KEY,
			can_read_users BIGINT[] NOT NULL DEFAULT '{}',
			can_edit_users BIGINT[] NOT NULL DEFAULT '{}'
		);

		CREATE TABLE IF NOT EXISTS %[3]s (
			id           BIGSERIAL PRIMARY KEY,
			owner_id     BIGINT NOT NULL,
			parent_id    BIGINT REFERENCES %[3]s(id),
			share_id     BIGINT REFERENCES %[2]s(id),
			is_directory BOOLEAN NOT NULL,
			size         BIGINT NOT NULL DEFAULT 0 CHECK (size >= 0),
			name         VARCHAR(255) NOT NULL,
			UNIQUE (parent_id, is_directory, name)
		);

		CREATE TABLE IF NOT EXISTS %[4]s (
			id             BIGINT PRIMARY KEY REFERENCES %[3]s(id) ON DELETE CASCADE,
			prev_parent_id BIGINT NOT NULL,
			prev_share_id  BIGINT,
			put_at         TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		-- UNIQUE treats NULLs as distinct, so drive roots (parent_id IS NULL)
		-- need their own per-owner uniqueness backstop.
		CREATE UNIQUE INDEX IF NOT EXISTS idx_%[3]s_root_name
			ON %[3]s (owner_id, is_directory, name) WHERE parent_id IS NULL;

		CREATE INDEX IF NOT EXISTS idx_%[3]s_parent_id ON %[3]s(parent_id);
		CREATE INDEX IF NOT EXISTS idx_%[3]s_share_id ON %[3]s(share_id);
		CREATE INDEX IF NOT EXISTS idx_%[2]s_can_read_users ON %[2]s USING GIN (can_read_users);
		CREATE INDEX IF NOT EXISTS idx_%[4]s_put_at ON %[4]s(put_at);
	`, t.Users, t.Shares, t.Entries, t.Bin)

	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}

	fmt.Printf("Schema created successfully (prefix: %s)\n", cfg.TablePrefix)
}
