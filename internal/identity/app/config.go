package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is populated from the environment. Every field has a usable
// default so the service boots with nothing set; the seed admin fields
// are the only ones an operator will usually want to provide.
type Config struct {
	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Port                int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`

	Issuer         string `env:"IDENTITY_ISSUER" envDefault:"identity"`
	DatabaseFile   string `env:"IDENTITY_DATABASE_FILE" envDefault:"identity.db"`
	PepperFile     string `env:"IDENTITY_PEPPER_FILE" envDefault:"pepper"`
	SigningKeyFile string `env:"IDENTITY_SIGNING_KEY_FILE" envDefault:"signing.key"`

	AccessTokenTTL       time.Duration `env:"IDENTITY_ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL      time.Duration `env:"IDENTITY_REFRESH_TOKEN_TTL" envDefault:"168h"`
	VerifyTokenTTL       time.Duration `env:"IDENTITY_VERIFY_TOKEN_TTL" envDefault:"24h"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`

	// Seed admin account, provisioned on first boot when both email and
	// password are present.
	SeedAdminName     string `env:"IDENTITY_ADMIN_NAME" envDefault:"Admin"`
	SeedAdminEmail    string `env:"IDENTITY_ADMIN_EMAIL"`
	SeedAdminPassword string `env:"IDENTITY_ADMIN_PASSWORD"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
