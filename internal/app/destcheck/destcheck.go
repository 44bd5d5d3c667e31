// Package destcheck probes destination URLs for reachability. Verdicts are
// advisory: a dead destination never blocks resolution, it only drives a
// warning interstitial in the rendering layer.
package destcheck

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Verdict is a cached reachability result.
type Verdict struct {
	Reachable bool      `json:"reachable"`
	CheckedAt time.Time `json:"checked_at"`
}

// Cache stores verdicts keyed by URL hash. *redis.Client is adapted below;
// tests substitute a map-backed fake.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Checker performs header-only probes with its own short timeout so a
// hanging destination cannot stall a rendering path.
type Checker struct {
	client *http.Client
	cache  Cache
	logger *zap.Logger
	ttl    time.Duration
}

// Config holds probe settings.
type Config struct {
	ProbeTimeout time.Duration
	CacheTTL     time.Duration
}

// New builds a checker. The probe client never follows more than a handful
// of redirects and sends no body.
func New(cache Cache, cfg Config, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Checker{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		cache:  cache,
		logger: logger,
		ttl:    ttl,
	}
}

// Validate returns the cached verdict for url when fresh, otherwise probes
// and refreshes the cache. Probe failures yield an unreachable verdict, not
// an error; only cache transport failures surface as errors.
func (c *Checker) Validate(ctx context.Context, url string) (Verdict, error) {
	key := cacheKey(url)

	if raw, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("destination cache read failed", zap.Error(err))
	} else if ok {
		var v Verdict
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		// Unparseable entry: fall through and re-probe.
	}

	v := Verdict{
		Reachable: c.probe(ctx, url),
		CheckedAt: time.Now(),
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return v, nil
	}
	if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.Warn("destination cache write failed", zap.Error(err))
	}
	return v, nil
}

func (c *Checker) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", "shortspace-destcheck/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("destination probe failed",
			zap.String("url", url), zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	// Some servers reject HEAD outright; treat 405 as reachable rather than
	// punishing the link.
	if resp.StatusCode == http.StatusMethodNotAllowed {
		return true
	}
	return resp.StatusCode < 500
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(url)))
	return "destcheck:" + hex.EncodeToString(sum[:16])
}

// RedisCache adapts *redis.Client to the Cache interface.
type RedisCache struct {
	Client *redis.Client
}

func (r RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := r.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (r RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.Client.Set(ctx, key, value, ttl).Err()
}
