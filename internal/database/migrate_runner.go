package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"buspass/internal/observability"

	"gorm.io/gorm"
)

// migrationLog is one row of migration_logs.
type migrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"not null"`
}

func (migrationLog) TableName() string { return "migration_logs" }

// MigrationState pairs a migration with the time it was applied, if it was.
type MigrationState struct {
	Migration
	AppliedAt *time.Time
}

// Migrator applies and rolls back SQL migrations, recording each in
// migration_logs inside the same transaction as the script.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
	now        func() time.Time
}

// NewMigrator returns a Migrator over the embedded migrations.
func NewMigrator(db *gorm.DB) (*Migrator, error) {
	migs, err := Migrations()
	if err != nil {
		return nil, err
	}
	return newMigrator(db, migs), nil
}

func newMigrator(db *gorm.DB, migs []Migration) *Migrator {
	return &Migrator{db: db, migrations: migs, now: time.Now}
}

func (m *Migrator) ensureLogTable(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(&migrationLog{}); err != nil {
		return fmt.Errorf("prepare migration_logs: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	var rows []migrationLog
	if err := m.db.WithContext(ctx).Order("version").Find(&rows).Error; err != nil {
		if isMissingTable(err) {
			return map[int]time.Time{}, nil
		}
		return nil, fmt.Errorf("read migration_logs: %w", err)
	}
	out := make(map[int]time.Time, len(rows))
	for _, r := range rows {
		out[r.Version] = r.AppliedAt
	}
	return out, nil
}

func isMissingTable(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such table") ||
		(strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist"))
}

// checkKnown fails when the database has versions this binary does not ship,
// which means it was migrated by a newer build.
func (m *Migrator) checkKnown(applied map[int]time.Time) error {
	known := make(map[int]bool, len(m.migrations))
	for _, mig := range m.migrations {
		known[mig.Version] = true
	}
	var unknown []int
	for v := range applied {
		if !known[v] {
			unknown = append(unknown, v)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Ints(unknown)
	names := make([]string, len(unknown))
	for i, v := range unknown {
		names[i] = fmt.Sprintf("%06d", v)
	}
	return fmt.Errorf("migration_logs has versions this build does not know: %s", strings.Join(names, ", "))
}

// Status lists every migration with its applied time.
func (m *Migrator) Status(ctx context.Context) ([]MigrationState, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.checkKnown(applied); err != nil {
		return nil, err
	}
	out := make([]MigrationState, len(m.migrations))
	for i, mig := range m.migrations {
		out[i] = MigrationState{Migration: mig}
		if at, ok := applied[mig.Version]; ok {
			at := at
			out[i].AppliedAt = &at
		}
	}
	return out, nil
}

// Pending returns the migrations Up would apply.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	states, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, s := range states {
		if s.AppliedAt == nil {
			pending = append(pending, s.Migration)
		}
	}
	return pending, nil
}

// Up applies every pending migration in version order and returns how many
// ran. It stops at the first failure; earlier migrations stay applied.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureLogTable(ctx); err != nil {
		return 0, err
	}
	pending, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}

	for i, mig := range pending {
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mig.Up).Error; err != nil {
				return err
			}
			return tx.Create(&migrationLog{Version: mig.Version, Name: mig.Name, AppliedAt: m.now().UTC()}).Error
		})
		if err != nil {
			return i, fmt.Errorf("apply %s: %w", mig, err)
		}
		observability.GlobalLogger.InfoContext(ctx, "migration applied", slog.String("migration", mig.String()))
	}
	return len(pending), nil
}

// ErrNotLatest is returned by Down for a version that is not the most
// recently applied one.
var ErrNotLatest = errors.New("only the most recently applied migration can be rolled back")

// Down rolls back version, which must be the latest applied migration.
func (m *Migrator) Down(ctx context.Context, version int) error {
	states, err := m.Status(ctx)
	if err != nil {
		return err
	}

	var target *Migration
	latest := 0
	for i := range states {
		if states[i].AppliedAt == nil {
			continue
		}
		latest = states[i].Version
		if states[i].Version == version {
			target = &states[i].Migration
		}
	}
	switch {
	case target == nil:
		return fmt.Errorf("migration %06d is not applied", version)
	case version != latest:
		return fmt.Errorf("%w (latest is %06d)", ErrNotLatest, latest)
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(target.Down).Error; err != nil {
			return err
		}
		return tx.Where("version = ?", version).Delete(&migrationLog{}).Error
	})
	if err != nil {
		return fmt.Errorf("roll back %s: %w", target, err)
	}
	observability.GlobalLogger.InfoContext(ctx, "migration rolled back", slog.String("migration", target.String()))
	return nil
}
