package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type rawConfig struct {
	Environment         string        `env:"GAMEGATE_ENVIRONMENT"`
	Port                string        `env:"PORT" envDefault:"8080"`
	BackendAPIURL       string        `env:"BACKEND_API_URL"`
	BackendAPIToken     string        `env:"BACKEND_API_TOKEN"`
	SocketURL           string        `env:"SOCKET_URL"`
	RedisAddr           string        `env:"REDIS_ADDR"`
	RedisChannelPrefix  string        `env:"REDIS_CHANNEL_PREFIX" envDefault:"gamegate:events:"`
	SentryDSN           string        `env:"SENTRY_DSN"`
	DBDSN               string        `env:"DB_DSN"`
	AllowedOrigins      []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	ReloadDebounce      time.Duration `env:"RELOAD_DEBOUNCE" envDefault:"750ms"`
	ReplayTimeout       time.Duration `env:"REPLAY_TIMEOUT" envDefault:"10s"`
	SessionIdleTTL      time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	EntitlementCacheTTL time.Duration `env:"ENTITLEMENT_CACHE_TTL" envDefault:"1m"`
}

type Config struct {
	port                string
	backendAPIURL       string
	backendAPIToken     string
	socketURL           string
	redisAddr           string
	redisChannelPrefix  string
	sentryDSN           string
	dbDSN               string
	allowedOrigins      []string
	reloadDebounce      time.Duration
	replayTimeout       time.Duration
	sessionIdleTTL      time.Duration
	entitlementCacheTTL time.Duration
	env                 environment
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) BackendAPIURL() string {
	return c.backendAPIURL
}

func (c *Config) BackendAPIToken() string {
	return c.backendAPIToken
}

func (c *Config) SocketURL() string {
	return c.socketURL
}

func (c *Config) RedisAddr() string {
	return c.redisAddr
}

func (c *Config) RedisChannelPrefix() string {
	return c.redisChannelPrefix
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) DBDSN() string {
	return c.dbDSN
}

// AllowedOrigins are domain suffixes, like "example.com"
func (c *Config) AllowedOrigins() []string {
	return c.allowedOrigins
}

func (c *Config) ReloadDebounce() time.Duration {
	return c.reloadDebounce
}

func (c *Config) ReplayTimeout() time.Duration {
	return c.replayTimeout
}

func (c *Config) SessionIdleTTL() time.Duration {
	return c.sessionIdleTTL
}

func (c *Config) EntitlementCacheTTL() time.Duration {
	return c.entitlementCacheTTL
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, port: %s, backendAPIURL: %s, socketURL: %s, redisAddr: %s, reloadDebounce: %s, replayTimeout: %s, ...}",
		string(c.env), c.port, c.backendAPIURL, c.socketURL, c.redisAddr, c.reloadDebounce, c.replayTimeout,
	)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var raw rawConfig
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	var environ environment
	switch raw.Environment {
	case "":
		return missingKey("GAMEGATE_ENVIRONMENT")
	case "production":
		environ = production
	case "staging":
		environ = staging
	case "development":
		environ = development
	default:
		return Config{}, fmt.Errorf("%w: GAMEGATE_ENVIRONMENT (%s)", ErrInvalidValue, raw.Environment)
	}

	durations := []struct {
		key   string
		value time.Duration
	}{
		{"RELOAD_DEBOUNCE", raw.ReloadDebounce},
		{"REPLAY_TIMEOUT", raw.ReplayTimeout},
		{"SESSION_IDLE_TTL", raw.SessionIdleTTL},
		{"ENTITLEMENT_CACHE_TTL", raw.EntitlementCacheTTL},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return Config{}, fmt.Errorf("%w: %s must be positive (%s)", ErrInvalidValue, d.key, d.value)
		}
	}

	allowedOrigins := make([]string, 0, len(raw.AllowedOrigins))
	for _, origin := range raw.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins = append(allowedOrigins, origin)
		}
	}

	if environ == production || environ == staging {
		if raw.BackendAPIURL == "" {
			return missingKey("BACKEND_API_URL")
		}
		if raw.BackendAPIToken == "" {
			return missingKey("BACKEND_API_TOKEN")
		}
		if raw.SocketURL == "" && raw.RedisAddr == "" {
			return missingKey("SOCKET_URL or REDIS_ADDR")
		}
		if raw.SentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
		if raw.DBDSN == "" {
			return missingKey("DB_DSN")
		}
	}

	return Config{
		port:                raw.Port,
		backendAPIURL:       raw.BackendAPIURL,
		backendAPIToken:     raw.BackendAPIToken,
		socketURL:           raw.SocketURL,
		redisAddr:           raw.RedisAddr,
		redisChannelPrefix:  raw.RedisChannelPrefix,
		sentryDSN:           raw.SentryDSN,
		dbDSN:               raw.DBDSN,
		allowedOrigins:      allowedOrigins,
		reloadDebounce:      raw.ReloadDebounce,
		replayTimeout:       raw.ReplayTimeout,
		sessionIdleTTL:      raw.SessionIdleTTL,
		entitlementCacheTTL: raw.EntitlementCacheTTL,
		env:                 environ,
	}, nil
}
