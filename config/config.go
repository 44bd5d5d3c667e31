package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	ShortCode ShortCodeConfig `mapstructure:"shortcode"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	DestCheck DestCheckConfig `mapstructure:"destcheck"`
	Captcha   CaptchaConfig   `mapstructure:"captcha"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// DefaultDomain is the system-wide short domain used when neither the
	// request nor the tenant names one.
	DefaultDomain string `mapstructure:"default_domain"`
	// RedirectSecret signs continue-anyway tokens.
	RedirectSecret string `mapstructure:"redirect_secret"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Port     int    `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type PrometheusConfig struct {
	Port int `mapstructure:"port"`
}

type ShortCodeConfig struct {
	// Length of generated codes; user aliases may be longer.
	Length int `mapstructure:"length"`
	// MaxAttempts bounds the insert-retry loop on generated-code collisions.
	MaxAttempts int `mapstructure:"max_attempts"`
	// PermanentRedirects switches resolved links from 302 to 301.
	PermanentRedirects bool `mapstructure:"permanent_redirects"`
}

type RateLimitConfig struct {
	// AnonCreateLimit caps anonymous creations per client per window.
	AnonCreateLimit int           `mapstructure:"anon_create_limit"`
	Window          time.Duration `mapstructure:"window"`
}

type DestCheckConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

type CaptchaConfig struct {
	// Provider selects the verifier: "" or "none" disables, "http" posts
	// tokens to VerifyURL.
	Provider  string `mapstructure:"provider"`
	Secret    string `mapstructure:"secret"`
	VerifyURL string `mapstructure:"verify_url"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.default_domain", "s.example")

	v.SetDefault("shortcode.length", 7)
	v.SetDefault("shortcode.max_attempts", 5)
	v.SetDefault("shortcode.permanent_redirects", false)

	v.SetDefault("ratelimit.anon_create_limit", 10)
	v.SetDefault("ratelimit.window", time.Hour)

	v.SetDefault("destcheck.enabled", true)
	v.SetDefault("destcheck.probe_timeout", 3*time.Second)
	v.SetDefault("destcheck.cache_ttl", 6*time.Hour)
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.addr", "SERVER_ADDR")
	v.BindEnv("server.default_domain", "DEFAULT_DOMAIN")
	v.BindEnv("server.redirect_secret", "REDIRECT_SECRET")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")

	// Captcha
	v.BindEnv("captcha.provider", "CAPTCHA_PROVIDER")
	v.BindEnv("captcha.secret", "CAPTCHA_SECRET")
	v.BindEnv("captcha.verify_url", "CAPTCHA_VERIFY_URL")
}
