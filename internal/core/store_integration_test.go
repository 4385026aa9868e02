package core_test

import (
	"context"
	"os"
	"testing"

	"ecommerce-support-agent/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// setupTestDB truncates and reseeds a real Postgres database dedicated to
// tests. Set TEST_DATABASE_URL to run these; otherwise they're skipped so a
// missing test database never blocks the rest of the suite.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE agent_return_items, agent_returns, agent_order_items, agent_orders,
		              agent_support_tickets, agent_shipping_rates, agent_products RESTART IDENTITY CASCADE;

		INSERT INTO agent_products (name, description, specifications, category, price, stock_quantity, weight) VALUES
		('Trail Runner 200',   'Lightweight trail running shoe', 'Drop: 6mm, mesh upper',    'shoe',       89.99,  20, 0.8),
		('Trail Runner 200 Wide', 'Wide-fit trail running shoe', 'Drop: 6mm, 2E width',      'shoe',       94.99,  5,  0.9),
		('Summit Jacket',      'Waterproof shell jacket',        '3-layer, 20k membrane',    'jacket',     149.50, 10, 1.2),
		('Carbon Trekking Pole', 'Adjustable carbon fiber pole', '100-130cm, twist lock',    'accessories', 39.00, 30, 0.3);

		INSERT INTO agent_shipping_rates (carrier, service_type, base_rate, per_pound_rate, estimated_days, destination_zip) VALUES
		('ParcelCo', 'ground', 5.00, 1.50, 5, '94107'),
		('ParcelCo', 'express', 15.00, 2.00, 2, '94107'),
		('QuickShip', 'overnight', 30.00, 3.00, 1, '94107');
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

func newStore(pool *pgxpool.Pool) *core.Store {
	return core.NewStore(pool)
}
