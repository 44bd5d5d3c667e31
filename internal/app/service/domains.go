package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/shortspace/shortspace/internal/app/model"
	"github.com/shortspace/shortspace/internal/app/repository"
	"github.com/shortspace/shortspace/internal/app/settings"
	"go.uber.org/zap"
)

var (
	// ErrNoDomain signals that a hostname maps to no tenant. Callers render
	// a "domain not configured" outcome instead of guessing.
	ErrNoDomain = errors.New("no tenant configured for hostname")
	// ErrForeignDomain signals a request to mint codes on a short domain
	// owned by another tenant.
	ErrForeignDomain = errors.New("domain belongs to another tenant")
)

const (
	domainCachePrefix = "domainmap:"
	domainCacheTTL    = 5 * time.Minute
)

// MappingCache is the small cache surface the domain service needs; the
// destcheck Redis adapter satisfies it.
type MappingCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// DomainService maps inbound hostnames to tenants and exposes the per-tenant
// fallback cascade. Domain mappings are read-mostly and low cardinality, so
// lookups sit behind a short Redis TTL cache.
type DomainService struct {
	repo     repository.DomainRepository
	settings settings.Provider
	cache    MappingCache
	logger   *zap.Logger
}

// NewDomainService builds the domain resolver. cache may be nil to disable
// caching (tests).
func NewDomainService(repo repository.DomainRepository, provider settings.Provider, cache MappingCache, logger *zap.Logger) *DomainService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DomainService{
		repo:     repo,
		settings: provider,
		cache:    cache,
		logger:   logger,
	}
}

// ResolveTenant maps a hostname to its domain record (tenant handle,
// default-domain flag, fallback URL, favicon). Unknown hostnames return
// ErrNoDomain.
func (s *DomainService) ResolveTenant(ctx context.Context, hostname string) (*model.Domain, error) {
	host := NormalizeHostname(hostname)
	if host == "" {
		return nil, ErrNoDomain
	}

	if dom := s.cached(ctx, host); dom != nil {
		return dom, nil
	}

	dom, err := s.repo.GetByHostname(ctx, host)
	if err != nil {
		if errors.Is(err, repository.ErrDomainNotFound) {
			return nil, ErrNoDomain
		}
		return nil, fmt.Errorf("resolve tenant: %w", err)
	}

	s.store(ctx, host, dom)
	return dom, nil
}

// FallbackURL returns the destination offered when a code on one of the
// tenant's domains resolves to a scheduling outcome. The cascade is: the
// tenant's default domain fallback, then the platform default domain
// fallback, then empty.
func (s *DomainService) FallbackURL(ctx context.Context, tenant string) string {
	if dom := s.tenantDefaultDomain(ctx, tenant); dom != nil && dom.FallbackURL != "" {
		return dom.FallbackURL
	}
	if dom, err := s.repo.GetDefault(ctx); err == nil {
		return dom.FallbackURL
	}
	return ""
}

// FaviconRef returns the tenant's favicon asset reference, or "" for the
// platform default.
func (s *DomainService) FaviconRef(ctx context.Context, tenant string) string {
	if dom := s.tenantDefaultDomain(ctx, tenant); dom != nil {
		return dom.FaviconRef
	}
	return ""
}

// TargetDomain picks the short domain for a new link: the explicit request,
// else the tenant's configured default, else the platform default.
func (s *DomainService) TargetDomain(ctx context.Context, tenant, explicit string) (*model.Domain, error) {
	if explicit != "" {
		dom, err := s.ResolveTenant(ctx, explicit)
		if err != nil {
			return nil, err
		}
		// Shared platform domains are open to everyone; a tenant's custom
		// domain only accepts its owner.
		if dom.Tenant != tenant && !dom.IsDefault {
			return nil, ErrForeignDomain
		}
		return dom, nil
	}
	if dom := s.tenantDefaultDomain(ctx, tenant); dom != nil {
		return dom, nil
	}
	dom, err := s.repo.GetDefault(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrDomainNotFound) {
			return nil, ErrNoDomain
		}
		return nil, fmt.Errorf("default domain: %w", err)
	}
	return dom, nil
}

// DomainByID looks a domain mapping up by its row ID.
func (s *DomainService) DomainByID(ctx context.Context, id uint64) (*model.Domain, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *DomainService) tenantDefaultDomain(ctx context.Context, tenant string) *model.Domain {
	if tenant == "" {
		return nil
	}
	ts, err := s.settings.TenantSettings(ctx, tenant)
	if err != nil || ts.DefaultDomain == "" {
		return nil
	}
	dom, err := s.ResolveTenant(ctx, ts.DefaultDomain)
	if err != nil {
		return nil
	}
	// The configured default must still belong to the tenant.
	if dom.Tenant != tenant {
		return nil
	}
	return dom
}

func (s *DomainService) cached(ctx context.Context, host string) *model.Domain {
	if s.cache == nil {
		return nil
	}
	raw, ok, err := s.cache.Get(ctx, domainCachePrefix+host)
	if err != nil {
		s.logger.Warn("domain cache read failed", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var dom model.Domain
	if err := json.Unmarshal(raw, &dom); err != nil {
		return nil
	}
	return &dom
}

func (s *DomainService) store(ctx context.Context, host string, dom *model.Domain) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(dom)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, domainCachePrefix+host, raw, domainCacheTTL); err != nil {
		s.logger.Warn("domain cache write failed", zap.Error(err))
	}
}

// NormalizeHostname lowercases a hostname and strips any port and trailing
// dot, matching how domain mappings are stored.
func NormalizeHostname(hostname string) string {
	host := strings.TrimSpace(strings.ToLower(hostname))
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	return strings.Trim(host, "[]")
}
