package database

import "buspass/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Operator{},
		&models.ApplicationRecord{},
		&models.SupportQuery{},
	}
}
