// File: cmd/setup/main.go
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"wisestudent-purchase/internal/config"
	"wisestudent-purchase/internal/domain/model"
	"wisestudent-purchase/internal/infra/db/postgres"

	"github.com/jackc/pgx/v4/pgxpool"
)

// Sets up a clean, predictable database state for local development and
// manual end-to-end testing: schema plus the standard price list.
func main() {
	ctx := context.Background()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	wipe := flag.Bool("wipe", false, "truncate all purchase data before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 5)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer pool.Close()

	log.Println("--- Purchase Service Setup ---")

	log.Println("[1/3] Applying schema...")
	applySchema(ctx, pool)

	if *wipe {
		log.Println("[2/3] Wiping existing purchase data...")
		_, err = pool.Exec(ctx, `
		TRUNCATE
			purchase_intents, payment_orders, activation_records,
			intent_transitions, plans
		RESTART IDENTITY CASCADE;
	`)
		if err != nil {
			log.Fatalf("failed to truncate tables: %v", err)
		}
	} else {
		log.Println("[2/3] Keeping existing data (pass -wipe to truncate)")
	}

	log.Println("[3/3] Seeding the price list...")
	seedPlans(ctx, pool)

	log.Println("--- Setup Complete ---")
}

func applySchema(ctx context.Context, pool *pgxpool.Pool) {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS plans (
			code          TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			price_paise   BIGINT NOT NULL,
			duration_days INT NOT NULL DEFAULT 0,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS purchase_intents (
			id                 TEXT PRIMARY KEY,
			target_type        TEXT NOT NULL,
			target_ref         TEXT NOT NULL,
			amount             BIGINT NOT NULL,
			mode               TEXT NOT NULL,
			state              TEXT NOT NULL,
			seq                BIGINT NOT NULL DEFAULT 0,
			created_at         TIMESTAMPTZ NOT NULL,
			last_transition_at TIMESTAMPTZ NOT NULL
		);`,
		// One open purchase per target. Terminal intents fall out of the
		// index, so a target frees up the moment its intent settles.
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_intents_open_target
			ON purchase_intents (target_type, target_ref)
			WHERE state NOT IN ('ACTIVATED', 'FAILED', 'CANCELLED');`,
		`CREATE INDEX IF NOT EXISTS ix_intents_state_transition
			ON purchase_intents (state, last_transition_at);`,
		`CREATE TABLE IF NOT EXISTS payment_orders (
			order_id           TEXT PRIMARY KEY,
			intent_id          TEXT NOT NULL UNIQUE REFERENCES purchase_intents(id),
			amount             BIGINT NOT NULL,
			currency           TEXT NOT NULL,
			status             TEXT NOT NULL,
			gateway_credential TEXT NOT NULL DEFAULT '',
			created_at         TIMESTAMPTZ NOT NULL,
			updated_at         TIMESTAMPTZ NOT NULL
		);`,
		// Primary key doubles as the exactly-once barrier: the first
		// confirmation inserts, every later one conflicts away.
		`CREATE TABLE IF NOT EXISTS activation_records (
			intent_id    TEXT PRIMARY KEY REFERENCES purchase_intents(id),
			confirmed_by TEXT NOT NULL,
			confirmed_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS intent_transitions (
			id         TEXT PRIMARY KEY,
			intent_id  TEXT NOT NULL REFERENCES purchase_intents(id),
			seq        BIGINT NOT NULL,
			from_state TEXT NOT NULL,
			to_state   TEXT NOT NULL,
			event      TEXT NOT NULL,
			at         TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS ix_transitions_intent
			ON intent_transitions (intent_id, seq);`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			log.Fatalf("schema statement failed: %v\n%s", err, s)
		}
	}
}

func seedPlans(ctx context.Context, pool *pgxpool.Pool) {
	repo := postgres.NewPlanRepo(pool)
	now := time.Now()

	plans := []*model.Plan{
		{Code: "P1", Name: "Annual Premium", PricePaise: 499900, DurationDays: 365, CreatedAt: now},
		{Code: "P6M", Name: "Half-Year Premium", PricePaise: 299900, DurationDays: 183, CreatedAt: now},
		{Code: "TRIAL", Name: "Trial", PricePaise: 0, DurationDays: 14, CreatedAt: now},
		// Flat fees for the paid account actions, keyed by target type.
		{Code: "account-link", Name: "Link Child Account", PricePaise: 9900, CreatedAt: now},
		{Code: "account-create", Name: "Create Child Account", PricePaise: 9900, CreatedAt: now},
	}
	for _, p := range plans {
		if err := repo.Upsert(ctx, p); err != nil {
			log.Fatalf("failed to seed plan %s: %v", p.Code, err)
		}
		log.Printf("seeded plan %s (%d paise)", p.Code, p.PricePaise)
	}
}
