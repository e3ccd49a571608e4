package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"buspass/internal/config"
	"buspass/internal/observability"

	"gorm.io/gorm"
)

// Values for DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaPlan is the decision DB_SCHEMA_MODE and APP_ENV lead to.
type SchemaPlan struct {
	Mode        string
	Environment string
	SQL         bool
	AutoMigrate bool
}

// SchemaReport is a SchemaPlan plus the migration state of the database.
type SchemaReport struct {
	SchemaPlan
	Migrations []MigrationState
}

// Pending returns the migrations that have not been applied.
func (r *SchemaReport) Pending() []Migration {
	var out []Migration
	for _, s := range r.Migrations {
		if s.AppliedAt == nil {
			out = append(out, s.Migration)
		}
	}
	return out
}

func productionLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// PlanSchema decides how the schema is managed. hybrid runs SQL migrations
// everywhere and AutoMigrate only outside production-like environments; auto
// is refused there unless DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE is set.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	plan := SchemaPlan{
		Mode:        strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)),
		Environment: cfg.Env,
	}
	if plan.Mode == "" {
		plan.Mode = SchemaModeHybrid
	}
	prod := productionLike(cfg.Env)

	switch plan.Mode {
	case SchemaModeSQL:
		plan.SQL = true
	case SchemaModeHybrid:
		plan.SQL = true
		plan.AutoMigrate = !prod
	case SchemaModeAuto:
		if prod && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("DB_SCHEMA_MODE=auto is refused in %q unless DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.AutoMigrate = true
	default:
		return plan, fmt.Errorf("unknown DB_SCHEMA_MODE %q", plan.Mode)
	}
	return plan, nil
}

func autoMigrateModels(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(PersistentModels()...)
}

// ApplySchema brings the database up to date according to PlanSchema.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}

	if plan.SQL {
		migrator, err := NewMigrator(db)
		if err != nil {
			return err
		}
		applied, err := migrator.Up(ctx)
		if err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
		observability.GlobalLogger.InfoContext(ctx, "sql migrations checked", slog.Int("applied", applied))
	}

	if plan.AutoMigrate {
		if plan.Mode == SchemaModeAuto && productionLike(plan.Environment) {
			observability.GlobalLogger.WarnContext(ctx, "running AutoMigrate in a production-like environment",
				slog.String("env", plan.Environment))
		}
		if err := autoMigrateModels(ctx, db); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// InspectSchema reports the plan and, when SQL migrations are part of it,
// which of them are applied.
func InspectSchema(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaReport, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	report := &SchemaReport{SchemaPlan: plan}
	if !plan.SQL {
		return report, nil
	}

	migrator, err := NewMigrator(db)
	if err != nil {
		return nil, err
	}
	if report.Migrations, err = migrator.Status(ctx); err != nil {
		return nil, err
	}
	return report, nil
}
