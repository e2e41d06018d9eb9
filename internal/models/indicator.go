package models

import (
	"time"

	"gorm.io/datatypes"
)

// Indicator is a single observable (IP, hash, domain, URL, ...) belonging to a pulse.
type Indicator struct {
	ID      int64  `gorm:"primaryKey;autoIncrement:false"`    // OTX indicator identifier.
	PulseID string `gorm:"type:varchar(50);not null;index"`   // Parent pulse.
	Value   string `gorm:"column:indicator;type:text;not null"` // The observable value itself.
	Type    string `gorm:"type:varchar(50);not null;index"`   // Indicator type (IPv4, domain, ...).

	Title        string `gorm:"type:text"` // Optional short title.
	Description  string `gorm:"type:text"` // Optional description.
	AccessReason string `gorm:"type:text"` // Reason recorded for restricted access.

	Created  time.Time // Creation timestamp from the feed.
	IsActive bool      // Active flag.

	AccessType string `gorm:"type:varchar(20);check:chk_indicators_access_type,access_type IN ('public','private','redacted')"` // Visibility class.

	Content string `gorm:"type:text"` // Optional payload content.
	Role    string `gorm:"type:text"` // Role label, empty when the feed sends null.

	Expiration *time.Time `gorm:"index"` // Expiry timestamp, nil when the indicator does not expire.

	AccessGroups datatypes.JSON `gorm:"type:jsonb"`         // Access groups (JSON array of strings).
	Observations int            `gorm:"not null;default:0"` // Observation count.
}
