// Command createadmin seeds a superadmin account. Run it once after the
// first deploy:
//
//	createadmin -email ops@example.com -name "Site Admin"
//
// The password comes from the ADMIN_PASSWORD environment variable so it
// never shows up in shell history.
package main

import (
	"context"
	"database/sql"
	"flag"
	"io/fs"
	"log"
	"os"
	"strings"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	marketplace "github.com/workisready/marketplace"
	"github.com/workisready/marketplace/config"
	"github.com/workisready/marketplace/logging"
)

func main() {
	email := flag.String("email", os.Getenv("ADMIN_EMAIL"), "superadmin email")
	name := flag.String("name", "Administrator", "display name")
	flag.Parse()

	password := os.Getenv("ADMIN_PASSWORD")

	if *email == "" || password == "" {
		log.Fatal("createadmin: -email and ADMIN_PASSWORD are required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(logging.Config{Env: cfg.Log.Env, Level: cfg.Log.Level, Service: "createadmin"})
	defer logger.Sync()

	ctx := context.Background()

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.Database.DSN)
	if err != nil {
		log.Fatal(err)
	}

	persistence.RegisterModel((*marketplace.User)(nil))

	client, err := persistence.New(cfg.Database, sqldb, sqlitedialect.New())
	if err != nil {
		log.Fatal(err)
	}

	migrationsFS, err := fs.Sub(marketplace.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		log.Fatal(err)
	}
	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	users := marketplace.NewUsersRepository(client.DB())

	addr := strings.ToLower(strings.TrimSpace(*email))

	if existing, err := users.GetByIdentifier(ctx, addr); err == nil && existing != nil {
		log.Fatalf("createadmin: account %s already exists", addr)
	}

	hash, err := marketplace.HashPassword(password)
	if err != nil {
		log.Fatal(err)
	}

	admin := &marketplace.User{
		ID:              uuid.New(),
		Name:            *name,
		Email:           addr,
		Role:            marketplace.RoleSuperadmin,
		UserType:        marketplace.TypeAdmin,
		PasswordHash:    hash,
		IsEmailVerified: true,
		IsApproved:      true,
	}

	if _, err := users.Create(ctx, admin); err != nil {
		log.Fatal(err)
	}

	logger.Info("superadmin %s created with id %s", addr, admin.ID)
}
