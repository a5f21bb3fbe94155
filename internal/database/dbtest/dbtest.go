// Package dbtest opens a migrated Postgres database for integration tests.
package dbtest

import (
	"context"
	"os"
	"testing"

	"meal-planner/internal/database"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Open returns a pool on TEST_DATABASE_URL with every table truncated. The
// test is skipped when the variable is unset.
func Open(t testing.TB) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := database.NewDB(ctx, url)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(db.Close)

	_, err = db.Pool.Exec(ctx, `TRUNCATE users, recipes, ingredients, instructions, recipe_favorites,
		recipe_ratings, meal_plans, meal_slots, shopping_lists, shopping_items, cached_recipes, llm_usage CASCADE`)
	if err != nil {
		t.Fatalf("Failed to truncate tables: %v", err)
	}
	return db.Pool
}

// CreateUser inserts a minimal user row and returns its id.
func CreateUser(t testing.TB, pool *pgxpool.Pool, id string) string {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, email, name) VALUES ($1, $2, $3)`, id, id+"@example.com", id)
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return id
}
