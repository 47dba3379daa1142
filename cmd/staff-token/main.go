// Command staff-token issues a bearer token for the teacher console.
//
//	go run ./cmd/staff-token -staff t-lee -name "Lee" -ttl 24h
//
// The signing secret comes from JWT_SECRET, the same setting the API reads.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/noah-isme/academy-schedule-api/internal/service"
	"github.com/noah-isme/academy-schedule-api/pkg/config"
)

func main() {
	var (
		staffID string
		name    string
		ttl     time.Duration
	)

	flag.StringVar(&staffID, "staff", "", "Staff identifier (required)")
	flag.StringVar(&name, "name", "", "Display name shown in audit logs")
	flag.DurationVar(&ttl, "ttl", 0, "Token lifetime, defaults to JWT_EXPIRATION")
	flag.Parse()

	if strings.TrimSpace(staffID) == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Env == config.EnvProduction && cfg.JWT.Secret == "dev_secret" {
		log.Fatalf("refusing to sign with the development secret in production")
	}
	if ttl <= 0 {
		ttl = cfg.JWT.Expiration
	}

	token, expires, err := service.NewTokenService(cfg.JWT.Secret, ttl).Issue(staffID, name)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}
	fmt.Fprintf(os.Stderr, "expires %s\n", expires.Format(time.RFC3339))
	fmt.Println(token)
}
