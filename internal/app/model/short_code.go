package model

import "time"

// ShortCode is a single short-link record. Codes are unique per domain, not
// globally, so the same code may exist on two tenants' domains.
type ShortCode struct {
	ID          uint64     `gorm:"primaryKey"`
	DomainID    uint64     `gorm:"not null;uniqueIndex:idx_domain_code"`
	Code        string     `gorm:"size:64;not null;uniqueIndex:idx_domain_code"`
	Destination string     `gorm:"type:text;not null"`
	Tenant      string     `gorm:"size:64;not null;index"`
	Category    string     `gorm:"size:64"`
	Active      bool       `gorm:"not null;default:true"`
	ActiveFrom  *time.Time `gorm:""`
	ActiveUntil *time.Time `gorm:""`
	// CreatedBy is nil for anonymous creations.
	CreatedBy *string `gorm:"size:64"`
	// Clicks is bumped asynchronously by the activity consumer, never on the
	// resolution path itself.
	Clicks    int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
