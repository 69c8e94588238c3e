package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	RosterSource    string        `mapstructure:"ROSTER_SOURCE"`
	RosterPath      string        `mapstructure:"ROSTER_PATH"`
	RosterTable     string        `mapstructure:"ROSTER_TABLE"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	APIKeys         []string      `mapstructure:"API_KEYS"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	BodyLimit       string        `mapstructure:"BODY_LIMIT"`
	S3Region        string        `mapstructure:"S3_REGION"`
	S3Endpoint      string        `mapstructure:"S3_ENDPOINT"`
	S3PathStyle     bool          `mapstructure:"S3_PATH_STYLE"`
}

var rosterSources = map[string]bool{"embedded": true, "file": true, "sqlite": true, "s3": true, "postgres": true}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "5002")
	v.SetDefault("ENV", "development")
	v.SetDefault("ROSTER_SOURCE", "embedded")
	v.SetDefault("ROSTER_TABLE", "patients")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("API_KEYS", "")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("BODY_LIMIT", "64K")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_PATH_STYLE", false)

	for _, key := range []string{
		"PORT", "ENV", "ROSTER_SOURCE", "ROSTER_PATH", "ROSTER_TABLE",
		"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
		"API_KEYS", "SHUTDOWN_TIMEOUT", "BODY_LIMIT",
		"S3_REGION", "S3_ENDPOINT", "S3_PATH_STYLE",
	} {
		v.BindEnv(key)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Comma separated env values arrive as a single element.
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.APIKeys = splitList(v.GetString("API_KEYS"))
	cfg.RosterSource = strings.ToLower(strings.TrimSpace(cfg.RosterSource))

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// APIKeysEnabled reports whether state-changing requests must carry an X-API-Key.
func (c *Config) APIKeysEnabled() bool {
	return len(c.APIKeys) > 0
}

// UsesDatabase reports whether startup needs a Postgres pool.
func (c *Config) UsesDatabase() bool {
	return c.RosterSource == "postgres"
}

// Validate checks that the configuration names a usable roster source and,
// in production, that the API is protected by at least one key.
func (c *Config) Validate() error {
	if !rosterSources[c.RosterSource] {
		return fmt.Errorf("ROSTER_SOURCE must be one of embedded, file, sqlite, s3, postgres, got %q", c.RosterSource)
	}
	if (c.RosterSource == "file" || c.RosterSource == "sqlite" || c.RosterSource == "s3") && c.RosterPath == "" {
		return fmt.Errorf("ROSTER_PATH is required when ROSTER_SOURCE is %q", c.RosterSource)
	}
	if c.RosterSource == "sqlite" && c.RosterTable == "" {
		return fmt.Errorf("ROSTER_TABLE must not be empty")
	}
	if c.RosterSource == "postgres" {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when ROSTER_SOURCE is \"postgres\"")
		}
		if c.RosterTable == "" {
			return fmt.Errorf("ROSTER_TABLE must not be empty")
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
	}
	if c.IsProduction() && !c.APIKeysEnabled() {
		return fmt.Errorf("API_KEYS is required in production")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}
