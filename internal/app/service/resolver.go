package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shortspace/shortspace/internal/app/codefilter"
	"github.com/shortspace/shortspace/internal/app/model"
	"github.com/shortspace/shortspace/internal/app/repository"
)

// Outcome is the terminal classification of a resolution attempt. The string
// values double as metric and diagnostic labels.
type Outcome string

const (
	OutcomeActive       Outcome = "active"
	OutcomeNotFound     Outcome = "not_found"
	OutcomeDisabled     Outcome = "disabled"
	OutcomeNotYetActive Outcome = "not_yet_active"
	OutcomeExpired      Outcome = "expired"
)

// Resolution is the typed result of resolving (domain, code). The resolver
// never renders anything or touches transport; callers decide how each
// outcome maps to a response.
type Resolution struct {
	Outcome Outcome
	// Destination is set only when Outcome is OutcomeActive.
	Destination string
	// Record is the matched row, nil on OutcomeNotFound. Exposed so callers
	// can brand error pages and log activity without a second lookup.
	Record *model.ShortCode
}

// Resolver classifies short-code lookups into exactly one outcome. It is
// stateless per call and safe for unbounded concurrent use.
type Resolver struct {
	codes  repository.ShortCodeRepository
	filter *codefilter.Filter
	now    func() time.Time
}

// NewResolver builds a resolver. filter may be nil, in which case every
// lookup goes to the store.
func NewResolver(codes repository.ShortCodeRepository, filter *codefilter.Filter) *Resolver {
	return &Resolver{
		codes:  codes,
		filter: filter,
		now:    time.Now,
	}
}

// Resolve executes a single point lookup and evaluates the status precedence:
// missing, then disabled, then not-yet-active, then expired, then active.
// Moderation state dominates scheduling state, so a disabled record is never
// reported as expired. The evaluation instant is captured once so a record
// cannot straddle a boundary within one call.
func (r *Resolver) Resolve(ctx context.Context, domainID uint64, code string) (Resolution, error) {
	if r.filter != nil && !r.filter.MayExist(domainID, code) {
		// Definitely absent; skip the store roundtrip.
		return Resolution{Outcome: OutcomeNotFound}, nil
	}

	rec, err := r.codes.GetByDomainCode(ctx, domainID, code)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return Resolution{Outcome: OutcomeNotFound}, nil
		}
		return Resolution{}, fmt.Errorf("resolve short code: %w", err)
	}

	now := r.now()

	switch {
	case !rec.Active:
		return Resolution{Outcome: OutcomeDisabled, Record: rec}, nil
	case rec.ActiveFrom != nil && now.Before(*rec.ActiveFrom):
		return Resolution{Outcome: OutcomeNotYetActive, Record: rec}, nil
	case rec.ActiveUntil != nil && now.After(*rec.ActiveUntil):
		return Resolution{Outcome: OutcomeExpired, Record: rec}, nil
	default:
		return Resolution{
			Outcome:     OutcomeActive,
			Destination: rec.Destination,
			Record:      rec,
		}, nil
	}
}
