package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"unifield-backend/internal/config"
	"unifield-backend/migrations"
)

const seedFile = "003_seed_retailers.sql"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file")
	withUsers := flag.Bool("users", false, "also delete every user (the admin is bootstrapped again on next start)")
	flag.Parse()

	fmt.Println("========================================")
	fmt.Println("   Reset UniField Database")
	fmt.Println("========================================")
	fmt.Println()
	fmt.Println("⚠️  WARNING: This will DELETE ALL RETAIL DATA!")
	fmt.Println()
	fmt.Println("This will:")
	fmt.Println("  - Empty every entity table and restart its ids")
	fmt.Println("  - Clear the login and action history")
	if *withUsers {
		fmt.Println("  - Delete all users")
	}
	fmt.Println("  - Restore the sample retailers")
	fmt.Println()
	fmt.Print("Type 'yes' to confirm: ")

	var confirm string
	fmt.Scanln(&confirm)

	if confirm != "yes" {
		fmt.Println("Reset cancelled.")
		return
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}
	defer pool.Close()

	fmt.Println()
	fmt.Println("🔄 Resetting database...")

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v\n", err)
	}
	defer tx.Rollback(ctx)

	logs := []string{"action_logs", "login_logs"}
	if *withUsers {
		logs = append(logs, "users")
	}
	for _, table := range logs {
		if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+pgx.Identifier{table}.Sanitize()+" RESTART IDENTITY CASCADE"); err != nil {
			log.Fatalf("Failed to truncate %s: %v\n", table, err)
		}
		fmt.Printf("  ✓ Cleared %s\n", table)
	}

	// Entity tables are only referenced with ON DELETE SET NULL, so a plain
	// DELETE keeps users linked to nothing rather than removing them.
	for _, table := range cfg.Server.Tables {
		if _, err := tx.Exec(ctx, "DELETE FROM "+pgx.Identifier{table}.Sanitize()); err != nil {
			log.Fatalf("Failed to clear %s: %v\n", table, err)
		}
		if _, err := tx.Exec(ctx, "SELECT setval(pg_get_serial_sequence($1, 'id'), 1, false)", table); err != nil {
			log.Printf("Warning: Failed to reset id sequence of %s: %v\n", table, err)
		}
		fmt.Printf("  ✓ Cleared %s\n", table)
	}

	seed, err := migrations.FS.ReadFile(seedFile)
	if err != nil {
		log.Fatalf("Failed to read %s: %v\n", seedFile, err)
	}
	if _, err := tx.Exec(ctx, string(seed)); err != nil {
		log.Fatalf("Failed to seed retailers: %v\n", err)
	}
	fmt.Println("  ✓ Restored sample retailers")

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit transaction: %v\n", err)
	}

	fmt.Println()
	fmt.Println("✅ Database reset successful!")
	if *withUsers {
		fmt.Println()
		fmt.Println("Set ADMIN_EMAIL and ADMIN_PASSWORD before the next server start")
		fmt.Println("to create a new admin.")
	}
}
