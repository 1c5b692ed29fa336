// Command pwmigrate rewrites any plaintext passwords left in the users
// table as bcrypt hashes. Safe to run repeatedly; already-hashed rows
// are left untouched.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"staffdesk.org/internal/auth"
	"staffdesk.org/internal/store/pg"
)

func main() {
	log.SetFlags(0)
	var (
		dsn  = flag.String("dsn", os.Getenv("DATABASE_URL"), "PostgreSQL DSN")
		cost = flag.Int("cost", auth.DefaultBcryptCost, "bcrypt cost for rewritten hashes")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or DATABASE_URL")
	}

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	svc, err := auth.NewService(store, auth.WithBcryptCost(*cost))
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	migrated, skipped, err := svc.MigratePasswords(ctx)
	if err != nil {
		log.Fatalf("migrate passwords: %v", err)
	}
	log.Printf("done: %d password(s) hashed, %d already hashed", migrated, skipped)
}
