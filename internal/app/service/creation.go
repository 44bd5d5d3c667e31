package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/shortspace/shortspace/internal/app/captcha"
	"github.com/shortspace/shortspace/internal/app/codefilter"
	"github.com/shortspace/shortspace/internal/app/model"
	"github.com/shortspace/shortspace/internal/app/ratelimit"
	"github.com/shortspace/shortspace/internal/app/repository"
	"github.com/shortspace/shortspace/internal/app/settings"
	"go.uber.org/zap"
)

var (
	// ErrInvalidURL rejects destinations that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("destination is not a valid absolute URL")
	// ErrInvalidAlias rejects aliases outside the allowed character set or
	// colliding with reserved paths.
	ErrInvalidAlias = errors.New("alias is not allowed")
	// ErrRateLimited signals the anonymous-creation threshold was hit.
	ErrRateLimited = errors.New("creation rate limit exceeded")
	// ErrCaptchaFailed signals bot-protection verification failed.
	ErrCaptchaFailed = errors.New("captcha verification failed")
	// ErrAliasTaken signals the requested alias already exists on the domain.
	ErrAliasTaken = errors.New("alias already taken")
	// ErrExhausted signals the generated-code retry budget was spent. With a
	// sane code length this only happens under pathological conditions; the
	// bound turns a retry storm into a defined error.
	ErrExhausted = errors.New("code generation attempts exhausted")
)

// ActionAnonCreate is the rate-limit action name for anonymous creations.
const ActionAnonCreate = "anon_create"

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// reservedAliases collide with routed paths and can never be minted.
var reservedAliases = map[string]bool{
	"api":     true,
	"healthz": true,
	"metrics": true,
	"go":      true,
}

// CreateInput captures one creation request with its full client context, so
// the service reads nothing ambient.
type CreateInput struct {
	DestinationURL string
	Tenant         string
	// Alias is the user-chosen code; empty means generate one.
	Alias    string
	Category string
	// Domain is an explicitly requested short domain hostname.
	Domain       string
	CaptchaToken string
	ClientIP     string
	// CreatedBy is the authenticated identity; empty means anonymous.
	CreatedBy string
}

// CreationService mints short-code records. Each gate short-circuits on
// first failure; uniqueness is enforced solely by the store's unique index.
type CreationService struct {
	codes    repository.ShortCodeRepository
	domains  *DomainService
	settings settings.Provider
	limiter  *ratelimit.Limiter
	captcha  captcha.Verifier
	filter   *codefilter.Filter
	logger   *zap.Logger

	codeLength  int
	maxAttempts int
}

// CreationConfig holds creation-service knobs.
type CreationConfig struct {
	CodeLength  int
	MaxAttempts int
}

// NewCreationService wires the creation pipeline. limiter, captcha and
// filter may be nil; missing gates pass.
func NewCreationService(
	codes repository.ShortCodeRepository,
	domains *DomainService,
	provider settings.Provider,
	limiter *ratelimit.Limiter,
	verifier captcha.Verifier,
	filter *codefilter.Filter,
	cfg CreationConfig,
	logger *zap.Logger,
) *CreationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if verifier == nil {
		verifier = captcha.NopVerifier{}
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = DefaultCodeLength
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &CreationService{
		codes:       codes,
		domains:     domains,
		settings:    provider,
		limiter:     limiter,
		captcha:     verifier,
		filter:      filter,
		logger:      logger,
		codeLength:  cfg.CodeLength,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Create validates, rate-limits and inserts a new short-code record. Racing
// requests for the same code are settled by the store's unique index: one
// insert wins, the rest observe the violation.
func (s *CreationService) Create(ctx context.Context, in CreateInput) (*model.ShortCode, error) {
	dest, err := normalizeDestination(in.DestinationURL)
	if err != nil {
		return nil, err
	}

	if in.Alias != "" {
		if !aliasPattern.MatchString(in.Alias) || reservedAliases[strings.ToLower(in.Alias)] {
			return nil, ErrInvalidAlias
		}
	}

	ts, err := s.settings.TenantSettings(ctx, in.Tenant)
	if err != nil {
		return nil, fmt.Errorf("load tenant settings: %w", err)
	}

	if in.CreatedBy == "" && s.limiter != nil {
		allowed, err := s.limiter.AllowN(ctx, in.ClientIP, ActionAnonCreate, ts.AnonCreateLimit)
		if err != nil {
			// Counter store trouble fails open; losing a few rate-limit
			// slots beats refusing every anonymous creation.
			s.logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
		} else if !allowed {
			return nil, ErrRateLimited
		}
	}

	if ts.CaptchaRequired {
		if err := s.captcha.Verify(ctx, in.CaptchaToken, in.ClientIP); err != nil {
			if errors.Is(err, captcha.ErrVerificationFailed) {
				return nil, ErrCaptchaFailed
			}
			return nil, fmt.Errorf("verify captcha: %w", err)
		}
	}

	dom, err := s.domains.TargetDomain(ctx, in.Tenant, in.Domain)
	if err != nil {
		return nil, fmt.Errorf("resolve target domain: %w", err)
	}

	rec := &model.ShortCode{
		DomainID:    dom.ID,
		Destination: dest,
		Tenant:      in.Tenant,
		Category:    in.Category,
		Active:      true,
	}
	if in.CreatedBy != "" {
		creator := in.CreatedBy
		rec.CreatedBy = &creator
	}

	if in.Alias != "" {
		rec.Code = in.Alias
		if err := s.codes.Insert(ctx, rec); err != nil {
			if errors.Is(err, repository.ErrCodeTaken) {
				return nil, ErrAliasTaken
			}
			return nil, fmt.Errorf("insert alias: %w", err)
		}
	} else {
		if err := s.insertGenerated(ctx, rec, ts.CodeLength); err != nil {
			return nil, err
		}
	}

	if s.filter != nil {
		s.filter.Add(rec.DomainID, rec.Code)
	}
	return rec, nil
}

// insertGenerated retries the conditional insert with fresh random codes
// until it wins or the attempt budget runs out.
func (s *CreationService) insertGenerated(ctx context.Context, rec *model.ShortCode, length int) error {
	if length <= 0 {
		length = s.codeLength
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		code, err := GenerateCode(length)
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}

		rec.Code = code
		err = s.codes.Insert(ctx, rec)
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrCodeTaken) {
			s.logger.Debug("generated code collided, retrying",
				zap.String("code", code), zap.Int("attempt", attempt+1))
			continue
		}
		return fmt.Errorf("insert generated code: %w", err)
	}
	return ErrExhausted
}

// normalizeDestination checks for a well-formed absolute http(s) URL and
// returns it trimmed.
func normalizeDestination(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidURL
	}
	if u.Host == "" {
		return "", ErrInvalidURL
	}
	return u.String(), nil
}
