package models

import (
	"time"

	"gorm.io/datatypes"
)

// Pulse is a top-level threat-intelligence report from the OTX feed.
type Pulse struct {
	ID          string `gorm:"type:varchar(50);primaryKey"` // OTX pulse identifier.
	Name        string `gorm:"type:text;not null"`          // Report title.
	Description string `gorm:"type:text"`                   // Free-form description.
	AuthorName  string `gorm:"type:varchar(100)"`           // Publishing author.
	Public      bool   // Publicly visible flag.
	Revision    int    // Revision counter from the feed.
	Adversary   string `gorm:"type:varchar(100)"` // Attributed adversary, when known.

	Industries datatypes.JSON `gorm:"type:jsonb"` // Targeted industries (JSON array of strings).

	TLP string `gorm:"type:varchar(10);check:chk_pulses_tlp,tlp IN ('white','green','amber','red')"` // Traffic Light Protocol level.

	Tags     datatypes.JSON `gorm:"type:jsonb"` // Tags (JSON array of strings).
	Created  time.Time      `gorm:"index"`      // Creation timestamp from the feed.
	Modified time.Time      // Last modification timestamp from the feed.

	References        datatypes.JSON `gorm:"type:jsonb"` // External references (JSON array of strings).
	TargetedCountries datatypes.JSON `gorm:"type:jsonb"` // Targeted countries (JSON array of strings).

	Indicators []Indicator `gorm:"foreignKey:PulseID;constraint:OnDelete:CASCADE"` // Child indicators, removed with the pulse.
}
