package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/caiqy/threatdigest/internal/models"
)

// Migrate creates or updates the pulses and indicators tables. Pulses go
// first so the indicator foreign key has a target.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.Pulse{},
		&models.Indicator{},
	)
}
