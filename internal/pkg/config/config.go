package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/V4T54L/classroll/internal/usecase"
)

// Config holds all application configuration.
type Config struct {
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr           string        `env:"HTTP_ADDR" envDefault:":8080"`
	AdminAddr          string        `env:"ADMIN_ADDR" envDefault:":9091"`
	PostgresURL        string        `env:"POSTGRES_URL,required,notEmpty"`
	RedisAddr          string        `env:"REDIS_ADDR"` // empty keeps registry tokens in process memory
	JWTSecret          string        `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer          string        `env:"JWT_ISSUER"`
	Timezone           string        `env:"TIMEZONE" envDefault:"America/Sao_Paulo"`
	MaxBodyBytes       int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"` // 1MB
	TenantCacheTTL     time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`
	MigrateOnStart     bool          `env:"MIGRATE_ON_START" envDefault:"false"`
	PIIRedactionFields string        `env:"PII_REDACTION_FIELDS" envDefault:"outAutenticacao,Senha,password,inSenha,outEmail,outCPF,outNumRG"`

	Registry RegistryConfig
}

// RegistryConfig tunes the remote registry client and carries the
// process-wide credentials used when a tenant has no override.
type RegistryConfig struct {
	Timeout       time.Duration `env:"REGISTRY_TIMEOUT" envDefault:"30s"`
	TokenValidity time.Duration `env:"REGISTRY_TOKEN_VALIDITY" envDefault:"30m"`
	RefreshBuffer time.Duration `env:"REGISTRY_REFRESH_BUFFER" envDefault:"5m"`
	RateLimit     float64       `env:"REGISTRY_RATE_LIMIT" envDefault:"0"` // requests per second, 0 disables
	RateBurst     int           `env:"REGISTRY_RATE_BURST" envDefault:"10"`

	BaseURL             string `env:"SED_BASE_URL"`
	Username            string `env:"SED_USERNAME"`
	Password            string `env:"SED_PASSWORD"`
	DistrictCode        string `env:"SED_DISTRICT_CODE"`
	MunicipalityCode    string `env:"SED_MUNICIPALITY_CODE"`
	NetworkTypeCode     string `env:"SED_NETWORK_TYPE_CODE"`
	TeachingNetworkCode string `env:"SED_TEACHING_NETWORK_CODE"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Registry.TokenValidity <= c.Registry.RefreshBuffer {
		return fmt.Errorf("REGISTRY_TOKEN_VALIDITY (%s) must exceed REGISTRY_REFRESH_BUFFER (%s)", c.Registry.TokenValidity, c.Registry.RefreshBuffer)
	}
	if c.Registry.RateLimit < 0 {
		return fmt.Errorf("REGISTRY_RATE_LIMIT must not be negative")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location loads the time zone that decides which day is today.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// RedactionFields splits PII_REDACTION_FIELDS, dropping blanks.
func (c *Config) RedactionFields() []string {
	var fields []string
	for _, f := range strings.Split(c.PIIRedactionFields, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// RegistryDefaults returns the process-wide registry credentials.
func (c *Config) RegistryDefaults() usecase.RegistryDefaults {
	r := c.Registry
	return usecase.RegistryDefaults{
		BaseURL:             r.BaseURL,
		Username:            r.Username,
		Password:            r.Password,
		DistrictCode:        r.DistrictCode,
		MunicipalityCode:    r.MunicipalityCode,
		NetworkTypeCode:     r.NetworkTypeCode,
		TeachingNetworkCode: r.TeachingNetworkCode,
	}
}

// MigrationConfig is the subset of Config needed to run schema migrations.
type MigrationConfig struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	PostgresURL string `env:"POSTGRES_URL,required,notEmpty"`
}

// LoadMigration reads only what the migration tool needs.
func LoadMigration() (*MigrationConfig, error) {
	_ = godotenv.Load()

	cfg := &MigrationConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
