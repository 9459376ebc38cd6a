package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"campusboard/internal/config"
	"campusboard/internal/middleware"

	"gorm.io/gorm"
)

// Schema modes accepted in DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaPlan says which schema steps a process runs on connect.
type SchemaPlan struct {
	Mode        string `json:"mode"`
	RunSQL      bool   `json:"willRunSql"`
	AutoMigrate bool   `json:"willRunAutoMigrate"`
}

// SchemaStatus is the plan plus what the database currently holds.
type SchemaStatus struct {
	SchemaPlan
	Environment     string   `json:"environment"`
	AppliedVersions []int    `json:"appliedVersions"`
	Pending         []string `json:"pendingMigrations"`
	MissingTables   []string `json:"missingTables"`
}

func isProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// PlanSchema resolves DB_SCHEMA_MODE for the environment. Hybrid runs the SQL
// migrations everywhere and AutoMigrate outside production-like
// environments. Auto in production needs an explicit opt-in.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))
	if mode == "" {
		mode = SchemaModeHybrid
	}
	prodLike := isProdLikeEnv(cfg.Env)

	switch mode {
	case SchemaModeSQL:
		return SchemaPlan{Mode: mode, RunSQL: true}, nil
	case SchemaModeAuto:
		if prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return SchemaPlan{}, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		return SchemaPlan{Mode: mode, AutoMigrate: true}, nil
	case SchemaModeHybrid:
		return SchemaPlan{Mode: mode, RunSQL: true, AutoMigrate: !prodLike}, nil
	default:
		return SchemaPlan{}, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}
}

// ApplySchema runs the steps PlanSchema selects.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}

	if plan.RunSQL {
		migrator, err := NewEmbeddedMigrator(db)
		if err != nil {
			return err
		}
		applied, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		if applied > 0 {
			middleware.Logger.InfoContext(ctx, "sql migrations applied", slog.Int("count", applied))
		}
	}

	if plan.AutoMigrate {
		if plan.Mode == SchemaModeAuto && cfg.DBAutoMigrateAllowDestructive {
			middleware.Logger.WarnContext(ctx, "auto-migrating with DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true; review schema diffs before deploying")
		}
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// GetSchemaStatus reports the plan, migration bookkeeping and any
// schema-managed table that does not exist yet.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{
		SchemaPlan:    plan,
		Environment:   cfg.Env,
		Pending:       []string{},
		MissingTables: MissingTables(db.WithContext(ctx)),
	}

	migrator, err := NewEmbeddedMigrator(db)
	if err != nil {
		return nil, err
	}
	if status.AppliedVersions, err = migrator.Applied(ctx); err != nil {
		return nil, err
	}
	pending, err := migrator.Pending(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range pending {
		status.Pending = append(status.Pending, m.ID())
	}
	return status, nil
}

// MissingTables lists the tables of PersistentModels absent from db.
func MissingTables(db *gorm.DB) []string {
	missing := []string{}
	for _, model := range PersistentModels() {
		if db.Migrator().HasTable(model) {
			continue
		}
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			missing = append(missing, fmt.Sprintf("%T", model))
			continue
		}
		missing = append(missing, stmt.Schema.Table)
	}
	return missing
}
