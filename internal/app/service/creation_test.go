package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shortspace/shortspace/internal/app/captcha"
	"github.com/shortspace/shortspace/internal/app/model"
	"github.com/shortspace/shortspace/internal/app/ratelimit"
	"github.com/shortspace/shortspace/internal/app/repository"
	"github.com/shortspace/shortspace/internal/app/settings"
)

// memCodeRepository emulates the store's unique (domain, code) index so
// insert races behave like the real conditional insert.
type memCodeRepository struct {
	mu   sync.Mutex
	rows map[string]*model.ShortCode
}

func newMemCodeRepository() *memCodeRepository {
	return &memCodeRepository{rows: make(map[string]*model.ShortCode)}
}

func (m *memCodeRepository) key(domainID uint64, code string) string {
	return fmt.Sprintf("%d/%s", domainID, code)
}

func (m *memCodeRepository) Insert(ctx context.Context, rec *model.ShortCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(rec.DomainID, rec.Code)
	if _, exists := m.rows[k]; exists {
		return repository.ErrCodeTaken
	}
	clone := *rec
	clone.CreatedAt = time.Now()
	m.rows[k] = &clone
	return nil
}

func (m *memCodeRepository) GetByDomainCode(ctx context.Context, domainID uint64, code string) (*model.ShortCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[m.key(domainID, code)]
	if !ok {
		return nil, repository.ErrCodeNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *memCodeRepository) ListByTenant(ctx context.Context, tenant string, limit, offset int) ([]model.ShortCode, error) {
	return nil, nil
}

func (m *memCodeRepository) SetActive(ctx context.Context, domainID uint64, code string, active bool) error {
	return nil
}

func (m *memCodeRepository) AddClicks(ctx context.Context, domainID uint64, code string, n int64) error {
	return nil
}

func (m *memCodeRepository) EachCode(ctx context.Context, fn func(domainID uint64, code string) error) error {
	return nil
}

type mockDomainRepository struct {
	domains map[string]*model.Domain
	def     *model.Domain
}

func (m *mockDomainRepository) GetByHostname(ctx context.Context, hostname string) (*model.Domain, error) {
	if dom, ok := m.domains[hostname]; ok {
		return dom, nil
	}
	return nil, repository.ErrDomainNotFound
}

func (m *mockDomainRepository) GetDefault(ctx context.Context) (*model.Domain, error) {
	if m.def == nil {
		return nil, repository.ErrDomainNotFound
	}
	return m.def, nil
}

func (m *mockDomainRepository) GetByID(ctx context.Context, id uint64) (*model.Domain, error) {
	for _, dom := range m.domains {
		if dom.ID == id {
			return dom, nil
		}
	}
	return nil, repository.ErrDomainNotFound
}

type memCounters struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newMemCounters() *memCounters {
	return &memCounters{counts: make(map[string]int64)}
}

func (m *memCounters) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memCounters) Get(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key], nil
}

func (m *memCounters) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

type rejectingVerifier struct{}

func (rejectingVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	return captcha.ErrVerificationFailed
}

func testFixture(t *testing.T, s settings.Settings) (*CreationService, *memCodeRepository) {
	t.Helper()
	codes := newMemCodeRepository()
	def := &model.Domain{ID: 1, Hostname: "s.example", IsDefault: true, FallbackURL: "https://example.com"}
	domains := NewDomainService(
		&mockDomainRepository{domains: map[string]*model.Domain{"s.example": def}, def: def},
		settings.StaticProvider{Settings: s},
		nil, nil,
	)
	limiter := ratelimit.New(newMemCounters(), ratelimit.Config{
		Threshold: 10,
		Window:    time.Hour,
	}, nil)
	svc := NewCreationService(codes, domains, settings.StaticProvider{Settings: s},
		limiter, captcha.NopVerifier{}, nil,
		CreationConfig{CodeLength: 7, MaxAttempts: 5}, nil)
	return svc, codes
}

func TestCreate_GeneratedCode(t *testing.T) {
	svc, _ := testFixture(t, settings.Settings{CodeLength: 7})

	rec, err := svc.Create(context.Background(), CreateInput{
		DestinationURL: "https://example.org/page",
		Tenant:         "acme",
		ClientIP:       "203.0.113.7",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if len(rec.Code) != 7 {
		t.Fatalf("expected 7-char code, got %q", rec.Code)
	}
	if rec.Destination != "https://example.org/page" {
		t.Fatalf("unexpected destination %q", rec.Destination)
	}
	if rec.CreatedBy != nil {
		t.Fatalf("anonymous creation must leave creator nil")
	}
}

func TestCreate_ReadYourWrite(t *testing.T) {
	svc, codes := testFixture(t, settings.Settings{})

	rec, err := svc.Create(context.Background(), CreateInput{
		DestinationURL: "https://example.org/page",
		Tenant:         "acme",
		ClientIP:       "203.0.113.7",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	res, err := NewResolver(codes, nil).Resolve(context.Background(), rec.DomainID, rec.Code)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if res.Outcome != OutcomeActive {
		t.Fatalf("expected created code to resolve active, got %q", res.Outcome)
	}
	if res.Destination != "https://example.org/page" {
		t.Fatalf("expected destination round-trip, got %q", res.Destination)
	}
}

func TestCreate_InvalidURL(t *testing.T) {
	svc, _ := testFixture(t, settings.Settings{})

	for _, dest := range []string{"", "notaurl", "ftp://example.org/x", "//missing-scheme", "https://"} {
		_, err := svc.Create(context.Background(), CreateInput{DestinationURL: dest})
		if !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("destination %q: expected ErrInvalidURL, got %v", dest, err)
		}
	}
}

func TestCreate_InvalidAlias(t *testing.T) {
	svc, _ := testFixture(t, settings.Settings{})

	for _, alias := range []string{"has space", "sla/sh", "api", "metrics", strings.Repeat("x", 65)} {
		_, err := svc.Create(context.Background(), CreateInput{
			DestinationURL: "https://example.org",
			Alias:          alias,
		})
		if !errors.Is(err, ErrInvalidAlias) {
			t.Fatalf("alias %q: expected ErrInvalidAlias, got %v", alias, err)
		}
	}
}

func TestCreate_AliasTaken(t *testing.T) {
	svc, _ := testFixture(t, settings.Settings{})

	in := CreateInput{
		DestinationURL: "https://example.org/page",
		Alias:          "promo",
	}
	if _, err := svc.Create(context.Background(), in); err != nil {
		t.Fatalf("first create returned error: %v", err)
	}
	_, err := svc.Create(context.Background(), in)
	if !errors.Is(err, ErrAliasTaken) {
		t.Fatalf("expected ErrAliasTaken, got %v", err)
	}
}

func TestCreate_ConcurrentAlias(t *testing.T) {
	svc, _ := testFixture(t, settings.Settings{})

	const n = 8
	results := make(chan error, n)
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < n; i++ {
		go func() {
			start.Wait()
			_, err := svc.Create(context.Background(), CreateInput{
				DestinationURL: "https://example.org/page",
				Alias:          "promo",
			})
			results <- err
		}()
	}
	start.Done()

	var successes, taken int
	for i := 0; i < n; i++ {
		err := <-results
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrAliasTaken):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || taken != n-1 {
		t.Fatalf("expected 1 success and %d ErrAliasTaken, got %d/%d", n-1, successes, taken)
	}
}

func TestCreate_RateLimited(t *testing.T) {
	svc, _ := testFixture(t, settings.Settings{AnonCreateLimit: 10})

	for i := 0; i < 10; i++ {
		_, err := svc.Create(context.Background(), CreateInput{
			DestinationURL: "https://example.org/page",
			ClientIP:       "203.0.113.7",
		})
		if err != nil {
			t.Fatalf("creation %d returned error: %v", i+1, err)
		}
	}

	_, err := svc.Create(context.Background(), CreateInput{
		DestinationURL: "https://example.org/page",
		ClientIP:       "203.0.113.7",
	})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on 11th creation, got %v", err)
	}

	// A different client is unaffected.
	if _, err := svc.Create(context.Background(), CreateInput{
		DestinationURL: "https://example.org/page",
		ClientIP:       "198.51.100.1",
	}); err != nil {
		t.Fatalf("other client rejected: %v", err)
	}
}

func TestCreate_AuthenticatedSkipsRateLimit(t *testing.T) {
	svc, _ := testFixture(t, settings.Settings{AnonCreateLimit: 1})

	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), CreateInput{
			DestinationURL: "https://example.org/page",
			ClientIP:       "203.0.113.7",
			CreatedBy:      "user-42",
		})
		if err != nil {
			t.Fatalf("authenticated creation %d rejected: %v", i+1, err)
		}
	}
}

func TestCreate_CaptchaFailed(t *testing.T) {
	codes := newMemCodeRepository()
	def := &model.Domain{ID: 1, Hostname: "s.example", IsDefault: true}
	s := settings.Settings{CaptchaRequired: true}
	domains := NewDomainService(
		&mockDomainRepository{domains: map[string]*model.Domain{"s.example": def}, def: def},
		settings.StaticProvider{Settings: s}, nil, nil,
	)
	svc := NewCreationService(codes, domains, settings.StaticProvider{Settings: s},
		nil, rejectingVerifier{}, nil, CreationConfig{}, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		DestinationURL: "https://example.org/page",
		CaptchaToken:   "bad-token",
	})
	if !errors.Is(err, ErrCaptchaFailed) {
		t.Fatalf("expected ErrCaptchaFailed, got %v", err)
	}
}

func TestCreate_Exhausted(t *testing.T) {
	codes := &mockCodeRepository{
		insertFn: func(ctx context.Context, rec *model.ShortCode) error {
			return repository.ErrCodeTaken
		},
	}
	def := &model.Domain{ID: 1, Hostname: "s.example", IsDefault: true}
	domains := NewDomainService(
		&mockDomainRepository{domains: map[string]*model.Domain{"s.example": def}, def: def},
		settings.StaticProvider{}, nil, nil,
	)
	svc := NewCreationService(codes, domains, settings.StaticProvider{},
		nil, captcha.NopVerifier{}, nil, CreationConfig{MaxAttempts: 3}, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		DestinationURL: "https://example.org/page",
		CreatedBy:      "user-42",
	})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}
