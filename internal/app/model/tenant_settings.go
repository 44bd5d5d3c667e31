package model

import "time"

// TenantSettings carries per-tenant knobs the resolution and creation cores
// consult. Absent rows fall back to platform defaults.
type TenantSettings struct {
	Tenant string `gorm:"primaryKey;size:64"`
	// DefaultDomain is the tenant's preferred short domain for new links.
	DefaultDomain string `gorm:"size:255"`
	// PermanentRedirects switches resolved links to 301. Off by default since
	// destinations stay editable after creation.
	PermanentRedirects bool `gorm:"not null;default:false"`
	// CaptchaRequired forces bot-protection checks on this tenant's
	// creation flows.
	CaptchaRequired bool `gorm:"not null;default:false"`
	// AnonCreateLimit overrides the platform anonymous-creation threshold
	// when positive.
	AnonCreateLimit int `gorm:"not null;default:0"`
	// CodeLength overrides the generated-code length when positive.
	CodeLength int       `gorm:"not null;default:0"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}
