package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/sudo-init-do/govconnect/internal/config"
	"github.com/sudo-init-do/govconnect/internal/db"
)

func main() {
	email := flag.String("email", "", "Email of the user to promote to admin")
	flag.Parse()

	if *email == "" {
		log.Fatalf("usage: go run ./cmd/adminutil/promote_admin -email user@example.com")
	}

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		log.Fatalf("promote_admin needs DB_DRIVER=postgres, got %q", cfg.Database.Driver)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database.DSN(), 1)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer pool.Close()

	ct, err := pool.Exec(ctx, `UPDATE users SET role = 'admin' WHERE email = $1`, *email)
	if err != nil {
		log.Fatalf("failed to promote user to admin: %v", err)
	}
	if ct.RowsAffected() == 0 {
		log.Fatalf("no user found with email: %s", *email)
	}

	fmt.Printf("User %s promoted to admin.\n", *email)
}
