// Package settings exposes per-tenant configuration to the resolution and
// creation cores through an injected provider, replacing any ambient or
// feature-probed lookups.
package settings

import (
	"context"
	"errors"

	"github.com/shortspace/shortspace/config"
	"github.com/shortspace/shortspace/internal/app/model"
	"gorm.io/gorm"
)

// Settings is the effective configuration for one tenant. Zero values mean
// "platform default"; Effective* helpers resolve them.
type Settings struct {
	DefaultDomain      string
	PermanentRedirects bool
	CaptchaRequired    bool
	AnonCreateLimit    int
	CodeLength         int
}

// Provider yields tenant settings. Implementations must be safe for
// concurrent use.
type Provider interface {
	TenantSettings(ctx context.Context, tenant string) (Settings, error)
}

// Defaults derived from platform config, applied when a tenant has no row or
// leaves a field unset.
type Defaults struct {
	DefaultDomain      string
	PermanentRedirects bool
	AnonCreateLimit    int
	CodeLength         int
}

// DefaultsFromConfig maps platform config onto provider defaults.
func DefaultsFromConfig(cfg *config.Config) Defaults {
	return Defaults{
		DefaultDomain:      cfg.Server.DefaultDomain,
		PermanentRedirects: cfg.ShortCode.PermanentRedirects,
		AnonCreateLimit:    cfg.RateLimit.AnonCreateLimit,
		CodeLength:         cfg.ShortCode.Length,
	}
}

// DBProvider reads tenant settings rows, falling back to platform defaults
// for missing tenants and unset fields.
type DBProvider struct {
	db       *gorm.DB
	defaults Defaults
}

// NewDBProvider returns a GORM-backed Provider.
func NewDBProvider(db *gorm.DB, defaults Defaults) *DBProvider {
	return &DBProvider{db: db, defaults: defaults}
}

func (p *DBProvider) TenantSettings(ctx context.Context, tenant string) (Settings, error) {
	base := Settings{
		DefaultDomain:      p.defaults.DefaultDomain,
		PermanentRedirects: p.defaults.PermanentRedirects,
		AnonCreateLimit:    p.defaults.AnonCreateLimit,
		CodeLength:         p.defaults.CodeLength,
	}
	if tenant == "" {
		return base, nil
	}

	var row model.TenantSettings
	err := p.db.WithContext(ctx).Where("tenant = ?", tenant).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return base, nil
		}
		return Settings{}, err
	}

	if row.DefaultDomain != "" {
		base.DefaultDomain = row.DefaultDomain
	}
	base.PermanentRedirects = base.PermanentRedirects || row.PermanentRedirects
	base.CaptchaRequired = row.CaptchaRequired
	if row.AnonCreateLimit > 0 {
		base.AnonCreateLimit = row.AnonCreateLimit
	}
	if row.CodeLength > 0 {
		base.CodeLength = row.CodeLength
	}
	return base, nil
}

// StaticProvider serves fixed settings for every tenant, used in tests and
// single-tenant deployments.
type StaticProvider struct {
	Settings Settings
}

func (p StaticProvider) TenantSettings(ctx context.Context, tenant string) (Settings, error) {
	return p.Settings, nil
}
