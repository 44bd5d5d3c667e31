package repository

import (
	"context"
	"errors"

	"github.com/shortspace/shortspace/internal/app/model"
	"gorm.io/gorm"
)

// DomainRepository defines read access to hostname-to-tenant mappings.
// Domain management happens outside the core; this surface is read-only.
type DomainRepository interface {
	GetByHostname(ctx context.Context, hostname string) (*model.Domain, error)
	// GetDefault returns the platform-reserved default short domain.
	GetDefault(ctx context.Context) (*model.Domain, error)
	GetByID(ctx context.Context, id uint64) (*model.Domain, error)
}

type domainRepository struct {
	db *gorm.DB
}

// NewDomainRepository returns a GORM-backed DomainRepository.
func NewDomainRepository(db *gorm.DB) DomainRepository {
	return &domainRepository{db: db}
}

func (r *domainRepository) GetByHostname(ctx context.Context, hostname string) (*model.Domain, error) {
	var dom model.Domain
	err := r.db.WithContext(ctx).Where("hostname = ?", hostname).First(&dom).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDomainNotFound
		}
		return nil, err
	}
	return &dom, nil
}

func (r *domainRepository) GetDefault(ctx context.Context) (*model.Domain, error) {
	var dom model.Domain
	err := r.db.WithContext(ctx).Where("is_default = ?", true).First(&dom).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDomainNotFound
		}
		return nil, err
	}
	return &dom, nil
}

func (r *domainRepository) GetByID(ctx context.Context, id uint64) (*model.Domain, error) {
	var dom model.Domain
	err := r.db.WithContext(ctx).First(&dom, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDomainNotFound
		}
		return nil, err
	}
	return &dom, nil
}
