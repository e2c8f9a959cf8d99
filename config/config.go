// Package config loads server settings: built-in defaults, then an optional
// TOML file, then COURT_* environment variables. Command-line flags are
// applied last by cmd/server.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix for environment overrides, e.g. COURT_DB_PATH.
const EnvPrefix = "COURT"

type Config struct {
	HTTPAddr    string        `toml:"http_addr" envconfig:"HTTP_ADDR"`
	DBPath      string        `toml:"db_path" envconfig:"DB_PATH"`
	JWTSecret   string        `toml:"jwt_secret" envconfig:"JWT_SECRET"`
	TokenTTL    Duration      `toml:"token_ttl" envconfig:"TOKEN_TTL"`
	CORSOrigins []string      `toml:"cors_origins" envconfig:"CORS_ORIGINS"`
	Scenarios   bool          `toml:"scenarios" envconfig:"SCENARIOS"`
	AMQP        AMQP          `toml:"amqp" envconfig:"AMQP"`
	Audit       Audit         `toml:"audit" envconfig:"AUDIT"`
	Shutdown    time.Duration `toml:"-" ignored:"true"`
}

// AMQP configures the event publisher. An empty URL disables it.
type AMQP struct {
	URL      string `toml:"url" envconfig:"URL"`
	Exchange string `toml:"exchange" envconfig:"EXCHANGE"`
}

// Audit configures the periodic ledger reconciliation.
type Audit struct {
	Enabled  bool     `toml:"enabled" envconfig:"ENABLED"`
	Interval Duration `toml:"interval" envconfig:"INTERVAL"`
}

// Duration decodes "15m" style strings from both TOML and the environment.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Default() Config {
	return Config{
		HTTPAddr:    ":8080",
		DBPath:      "./data/court.db",
		TokenTTL:    Duration{24 * time.Hour},
		CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		AMQP:        AMQP{Exchange: "court.events"},
		Audit:       Audit{Enabled: true, Interval: Duration{15 * time.Minute}},
		Shutdown:    10 * time.Second,
	}
}

// Load reads path (if non-empty) over the defaults, then applies the
// environment. A missing file at path is an error; an empty path skips it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("environment: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings needed to serve.
func (c Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("jwt_secret must be at least 16 characters (COURT_JWT_SECRET)"))
	}
	if c.TokenTTL.Duration <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if c.Audit.Enabled && c.Audit.Interval.Duration < time.Second {
		errs = append(errs, errors.New("audit.interval must be at least 1s"))
	}
	if c.AMQP.URL != "" && c.AMQP.Exchange == "" {
		errs = append(errs, errors.New("amqp.exchange is required when amqp.url is set"))
	}
	return errors.Join(errs...)
}
