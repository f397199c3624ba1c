package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/sudo-init-do/govconnect/internal/config"
	"github.com/sudo-init-do/govconnect/internal/domain"
	"github.com/sudo-init-do/govconnect/internal/utils"
)

// issue_token mints a bearer token for local testing.
// Usage:
//
//	go run ./cmd/adminutil/issue_token -user <uuid> -role vendor
func main() {
	userID := flag.String("user", "", "User id to put in the token")
	role := flag.String("role", "contractor", "contractor, vendor or admin")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	if *userID == "" {
		log.Fatalf("usage: go run ./cmd/adminutil/issue_token -user <uuid> -role vendor")
	}
	if !domain.Role(*role).Valid() {
		log.Fatalf("unknown role %q", *role)
	}

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	tok, err := utils.IssueToken([]byte(cfg.JWT.Secret), *userID, *role, *ttl)
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}
	fmt.Println(tok)
}
