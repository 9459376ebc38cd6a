// Command migrate runs schema operations for campusboard.
//
//	migrate up             apply pending SQL migrations
//	migrate auto           run GORM AutoMigrate over the persistent models
//	migrate status         print the schema plan, pending migrations and missing tables
//	migrate down <version> revert one applied migration
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"campusboard/internal/config"
	"campusboard/internal/database"

	"gorm.io/gorm"
)

var errUsage = errors.New("usage: migrate <up|auto|status|down> [version]")

func main() {
	flag.Parse()
	if err := run(context.Background(), flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{SkipSchema: true})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "up":
		return up(ctx, db)
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		log.Println("auto-migrate complete")
		return nil
	case "status":
		return status(ctx, db, cfg)
	case "down":
		if len(args) < 2 {
			return errUsage
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		migrator, err := database.NewEmbeddedMigrator(db)
		if err != nil {
			return err
		}
		if err := migrator.Down(ctx, version); err != nil {
			return err
		}
		log.Printf("rolled back migration %d", version)
		return nil
	default:
		return errUsage
	}
}

func up(ctx context.Context, db *gorm.DB) error {
	migrator, err := database.NewEmbeddedMigrator(db)
	if err != nil {
		return err
	}
	applied, err := migrator.Up(ctx)
	if err != nil {
		return err
	}
	log.Printf("%d migrations applied", applied)
	return nil
}

func status(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	st, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return err
	}
	log.Printf("mode=%s env=%s run_sql=%t auto_migrate=%t applied=%v",
		st.Mode, st.Environment, st.RunSQL, st.AutoMigrate, st.AppliedVersions)
	for _, id := range st.Pending {
		log.Printf("pending: %s", id)
	}
	for _, table := range st.MissingTables {
		log.Printf("missing table: %s", table)
	}
	return nil
}
