package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Session store backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type Config struct {
	HTTPAddr string `env:"SMART_ACCESS_HTTP_ADDR" envDefault:":8080"`

	Env       string `env:"SMART_ACCESS_ENV" envDefault:"dev"` // "dev" | "prod"
	DBPath    string `env:"SMART_ACCESS_DB_PATH" envDefault:"./data/smart-access.db"`
	SeedFile  string `env:"SMART_ACCESS_SEED_FILE"` // dev only; empty = built-in fixture
	LogLevel  string `env:"SMART_ACCESS_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"SMART_ACCESS_LOG_FORMAT" envDefault:"json"`

	// Access tokens handed out at the end of a login flow.
	JWTSecret string        `env:"SMART_ACCESS_JWT_SECRET"`
	TokenTTL  time.Duration `env:"SMART_ACCESS_TOKEN_TTL" envDefault:"1h"`

	// Key that opens enrolled biometric templates.
	TemplateKeyPath string `env:"SMART_ACCESS_TEMPLATE_KEY_PATH"`

	// Biometric inference service.
	VerifierAddr    string        `env:"SMART_ACCESS_VERIFIER_ADDR" envDefault:"localhost:50051"`
	VerifierTimeout time.Duration `env:"SMART_ACCESS_VERIFIER_TIMEOUT" envDefault:"15s"`
	ChallengeURL    string        `env:"SMART_ACCESS_CHALLENGE_URL"` // empty = local corpus

	// Stage limits and lockout.
	FaceTimeout      time.Duration `env:"SMART_ACCESS_FACE_TIMEOUT" envDefault:"20s"`
	VoiceTimeout     time.Duration `env:"SMART_ACCESS_VOICE_TIMEOUT" envDefault:"30s"`
	LockoutThreshold int           `env:"SMART_ACCESS_LOCKOUT_THRESHOLD" envDefault:"3"`

	// Room relocking.
	UnlockGrace    time.Duration `env:"SMART_ACCESS_UNLOCK_GRACE" envDefault:"30s"`
	ReaperInterval time.Duration `env:"SMART_ACCESS_REAPER_INTERVAL" envDefault:"5s"`

	// Ephemeral sessions.
	SessionStore string        `env:"SMART_ACCESS_SESSION_STORE" envDefault:"memory"`
	RedisAddr    string        `env:"SMART_ACCESS_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPrefix  string        `env:"SMART_ACCESS_REDIS_PREFIX"`
	SessionTTL   time.Duration `env:"SMART_ACCESS_SESSION_TTL" envDefault:"2m"`

	// Door bus.  An empty broker disables publishing.
	MQTTBroker      string `env:"SMART_ACCESS_MQTT_BROKER"`
	MQTTClientID    string `env:"SMART_ACCESS_MQTT_CLIENT_ID" envDefault:"smart-access-server"`
	MQTTUsername    string `env:"SMART_ACCESS_MQTT_USERNAME"`
	MQTTPassword    string `env:"SMART_ACCESS_MQTT_PASSWORD"`
	MQTTTopicPrefix string `env:"SMART_ACCESS_MQTT_TOPIC_PREFIX" envDefault:"smart-access"`

	// Per-client limit on the unauthenticated auth endpoints.
	AuthRatePerMinute int `env:"SMART_ACCESS_AUTH_RATE_PER_MINUTE" envDefault:"30"`
	AuthRateBurst     int `env:"SMART_ACCESS_AUTH_RATE_BURST" envDefault:"10"`
}

// FromEnv loads the configuration from SMART_ACCESS_* variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Env != "dev" && cfg.Env != "prod" {
		// fail-soft: treat unknown as dev
		cfg.Env = "dev"
	}
	cfg.SessionStore = strings.ToLower(strings.TrimSpace(cfg.SessionStore))

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsDev() bool { return c.Env == "dev" }

func (c Config) validate() error {
	var errs []error
	switch c.SessionStore {
	case SessionStoreMemory, SessionStoreRedis:
	default:
		errs = append(errs, fmt.Errorf("SMART_ACCESS_SESSION_STORE: unknown backend %q", c.SessionStore))
	}
	if !c.IsDev() && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("SMART_ACCESS_JWT_SECRET: at least 32 bytes required in prod"))
	}
	if !c.IsDev() && c.TemplateKeyPath == "" {
		errs = append(errs, errors.New("SMART_ACCESS_TEMPLATE_KEY_PATH: required in prod"))
	}
	if c.LockoutThreshold < 1 {
		errs = append(errs, errors.New("SMART_ACCESS_LOCKOUT_THRESHOLD: must be positive"))
	}
	if floor := c.FaceTimeout + c.VoiceTimeout; c.SessionTTL < floor {
		errs = append(errs, fmt.Errorf("SMART_ACCESS_SESSION_TTL: must be at least %s", floor))
	}
	return errors.Join(errs...)
}
