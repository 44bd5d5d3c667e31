package model

import "time"

// Domain maps an inbound hostname to the tenant that owns it. A hostname
// belongs to at most one tenant; management of these rows happens outside the
// resolution core, which only reads them.
type Domain struct {
	ID       uint64 `gorm:"primaryKey"`
	Hostname string `gorm:"size:255;not null;uniqueIndex"`
	Tenant   string `gorm:"size:64;not null;index"`
	// FallbackURL is offered when a code on this domain resolves to a
	// scheduling outcome (expired or not yet active).
	FallbackURL string `gorm:"type:text"`
	FaviconRef  string `gorm:"size:255"`
	// IsDefault marks the platform-reserved default short domain.
	IsDefault bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
