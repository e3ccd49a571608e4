package repository

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"buspass/internal/database"
	"buspass/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupSQLite opens a private in-memory database with the full schema. A single
// connection keeps every goroutine on the same in-memory database.
func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func newRecord(no, name string, createdAt time.Time) *models.ApplicationRecord {
	rec := &models.ApplicationRecord{
		ApplicationNo:       no,
		StudentName:         name,
		Age:                 19,
		PersonalEmail:       "student@example.com",
		RouteStart:          "Central",
		RouteEnd:            "North Campus",
		PhotoRef:            "applications/photo.jpg",
		IdentityProofRef:    "applications/id.pdf",
		InstitutionProofRef: "applications/inst.pdf",
		BonafideRef:         "applications/bonafide.pdf",
		CreatedAt:           createdAt,
	}
	rec.SetInstitution(models.College{Name: "City College", Department: "Physics", Year: "2"})
	return rec
}
