package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob %s: %v", pattern, err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly one migration matching %s, got %d", pattern, len(matches))
	}
	raw, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read %s: %v", matches[0], err)
	}
	return string(raw)
}

func TestCartMigrationConstraints(t *testing.T) {
	content := readMigration(t, "*_create_carts.sql")

	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS cart_records",
		"CREATE TABLE IF NOT EXISTS cart_lines",
		"CHECK (status IN ('active', 'converted'))",
		"CHECK (total >= 0)",
		"CHECK (quantity >= 1)",
		"REFERENCES cart_records(id) ON DELETE CASCADE",
		"idx_cart_lines_cart_product ON cart_lines(cart_id, product_id)",
		"ux_cart_records_owner_active",
		"DROP TABLE IF EXISTS cart_lines",
		"DROP TABLE IF EXISTS cart_records",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("cart migration missing %q", want)
		}
	}
}

func TestCheckoutSessionMigrationStates(t *testing.T) {
	content := readMigration(t, "*_create_checkout_sessions.sql")

	for _, state := range []string{
		"'awaiting_address'", "'awaiting_payment_method'", "'online_payment_pending'",
		"'cash_confirmed'", "'verifying'", "'completed'", "'failed'",
	} {
		if !strings.Contains(content, state) {
			t.Errorf("checkout session migration missing state %s", state)
		}
	}
	if !strings.Contains(content, "frozen_breakdown jsonb") {
		t.Error("checkout session migration missing frozen_breakdown jsonb column")
	}
	if !strings.Contains(content, "idx_checkout_sessions_gateway_order") {
		t.Error("checkout session migration missing gateway order index")
	}
}

func TestOrderMigrationConstraints(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")

	for _, want := range []string{
		"order_number text NOT NULL UNIQUE",
		"address jsonb NOT NULL",
		"CHECK (total >= 0)",
		"REFERENCES orders(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS order_line_items",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("order migration missing %q", want)
		}
	}
}

func TestOutboxMigrationStatuses(t *testing.T) {
	content := readMigration(t, "*_create_outbox_events.sql")

	if !strings.Contains(content, "CHECK (status IN ('pending', 'published', 'failed'))") {
		t.Error("outbox migration missing status check constraint")
	}
	if !strings.Contains(content, "idx_outbox_events_status ON outbox_events(status, created_at)") {
		t.Error("outbox migration missing status index")
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("migrations dir failed validation: %v", err)
	}
}
