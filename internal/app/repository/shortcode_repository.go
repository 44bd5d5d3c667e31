package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shortspace/shortspace/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrCodeNotFound signals that no record matches (domain, code).
	ErrCodeNotFound = errors.New("short code not found")
	// ErrCodeTaken signals a unique-index violation on (domain, code). The
	// index is the single source of truth for "code is free"; callers never
	// pre-check availability.
	ErrCodeTaken = errors.New("short code already taken")
	// ErrDomainNotFound signals that a hostname has no domain mapping.
	ErrDomainNotFound = errors.New("domain not found")
)

// ShortCodeRepository defines the data access contract for short-code
// records.
type ShortCodeRepository interface {
	// Insert performs a conditional insert: exactly one of two racing
	// inserts for the same (domain, code) succeeds, the other gets
	// ErrCodeTaken.
	Insert(ctx context.Context, rec *model.ShortCode) error
	GetByDomainCode(ctx context.Context, domainID uint64, code string) (*model.ShortCode, error)
	ListByTenant(ctx context.Context, tenant string, limit, offset int) ([]model.ShortCode, error)
	// SetActive flips the moderation flag; records are never deleted on the
	// public path.
	SetActive(ctx context.Context, domainID uint64, code string, active bool) error
	AddClicks(ctx context.Context, domainID uint64, code string, n int64) error
	// EachCode streams every (domain, code) pair, used to seed the negative
	// cache at startup.
	EachCode(ctx context.Context, fn func(domainID uint64, code string) error) error
}

type shortCodeRepository struct {
	db *gorm.DB
}

// NewShortCodeRepository returns a GORM-backed ShortCodeRepository.
func NewShortCodeRepository(db *gorm.DB) ShortCodeRepository {
	return &shortCodeRepository{db: db}
}

func (r *shortCodeRepository) Insert(ctx context.Context, rec *model.ShortCode) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrCodeTaken
		}
		return err
	}
	return nil
}

func (r *shortCodeRepository) GetByDomainCode(ctx context.Context, domainID uint64, code string) (*model.ShortCode, error) {
	var rec model.ShortCode
	err := r.db.WithContext(ctx).
		Where("domain_id = ? AND code = ?", domainID, code).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *shortCodeRepository) ListByTenant(ctx context.Context, tenant string, limit, offset int) ([]model.ShortCode, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var result []model.ShortCode
	err := r.db.WithContext(ctx).
		Where("tenant = ?", tenant).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&result).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *shortCodeRepository) SetActive(ctx context.Context, domainID uint64, code string, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&model.ShortCode{}).
		Where("domain_id = ? AND code = ?", domainID, code).
		Update("active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCodeNotFound
	}
	return nil
}

func (r *shortCodeRepository) AddClicks(ctx context.Context, domainID uint64, code string, n int64) error {
	return r.db.WithContext(ctx).
		Model(&model.ShortCode{}).
		Where("domain_id = ? AND code = ?", domainID, code).
		UpdateColumn("clicks", gorm.Expr("clicks + ?", n)).Error
}

func (r *shortCodeRepository) EachCode(ctx context.Context, fn func(domainID uint64, code string) error) error {
	type pair struct {
		DomainID uint64
		Code     string
	}

	var batch []pair
	return r.db.WithContext(ctx).
		Model(&model.ShortCode{}).
		Select("domain_id", "code").
		FindInBatches(&batch, 1000, func(tx *gorm.DB, _ int) error {
			for _, p := range batch {
				if err := fn(p.DomainID, p.Code); err != nil {
					return err
				}
			}
			return nil
		}).Error
}

// isUniqueViolation classifies Postgres duplicate-key failures so insert
// races surface as ErrCodeTaken instead of opaque driver errors.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return true
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
