// Package config loads the server configuration.
//
// SOURCES, lowest to highest precedence:
//  1. Default() compiled-in values
//  2. an optional YAML file (--config or ACME_CONFIG)
//  3. environment variables, after loading an optional .env file
//  4. command-line flags, but only the ones actually passed
//
// Each layer only overrides what it sets, so a YAML file can hold the
// shared settings and an environment variable can still replace the secret.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	minSecretLength = 16
)

type Config struct {
	Port     int            `yaml:"port"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	GitHub   GitHubConfig   `yaml:"github"`
	CORS     CORSConfig     `yaml:"cors"`
	Seed     SeedConfig     `yaml:"seed"`
	Log      LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`    // "sqlite" or "postgres"
	Path     string `yaml:"path"`      // SQLite file
	URL      string `yaml:"url"`       // PostgreSQL connection string
	MaxConns int32  `yaml:"max_conns"` // PostgreSQL pool size; 0 keeps the pgx default
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	BcryptCost int           `yaml:"bcrypt_cost"`
}

// GitHubConfig enables GitHub sign-in when ClientID and ClientSecret are set.
type GitHubConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CallbackURL  string `yaml:"callback_url"`
}

func (g GitHubConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type SeedConfig struct {
	Skills    []string `yaml:"skills"`
	DemoUsers bool     `yaml:"demo_users"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
}

// Default returns the compiled-in configuration. JWTSecret is left empty:
// there is no safe default, and Validate rejects it.
func Default() *Config {
	return &Config{
		Port: 8080,
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "data/acme.db",
		},
		Auth: AuthConfig{
			TokenTTL:   time.Hour,
			BcryptCost: 12,
		},
		Seed: SeedConfig{
			Skills: []string{"foo", "bar", "bazz", "quq", "fip"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from args (os.Args[1:]) and the process
// environment. It returns pflag.ErrHelp when --help was requested; the
// usage text has then already been printed.
func Load(args []string) (*Config, error) {
	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	envFile, _ := flags.GetString("env-file")
	if err := loadDotEnv(envFile); err != nil {
		return nil, err
	}

	cfg := Default()

	configPath, _ := flags.GetString("config")
	if configPath == "" {
		configPath = os.Getenv("ACME_CONFIG")
	}
	if configPath != "" {
		if err := cfg.loadYAML(configPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.applyFlags(flags); err != nil {
		return nil, err
	}

	cfg.fillDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("config: database path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown database driver %q (want %q or %q)",
			c.Database.Driver, DriverSQLite, DriverPostgres)
	}
	if c.Database.MaxConns < 0 {
		return errors.New("config: database max_conns must not be negative")
	}

	if len(c.Auth.JWTSecret) < minSecretLength {
		return fmt.Errorf("config: JWT_SECRET must be at least %d characters", minSecretLength)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("config: token TTL must be positive")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("config: bcrypt cost %d outside [%d, %d]",
			c.Auth.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	if (c.GitHub.ClientID == "") != (c.GitHub.ClientSecret == "") {
		return errors.New("config: GitHub sign-in needs both client id and client secret")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}

	return nil
}

func (c *Config) fillDerived() {
	if c.GitHub.Enabled() && c.GitHub.CallbackURL == "" {
		c.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", c.Port)
	}
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: loading %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields whose variable is set and non-empty.
func (c *Config) applyEnv(getenv func(string) string) error {
	var errs []error

	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s=%q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s=%q is not a boolean", key, v))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s=%q is not a duration", key, v))
				return
			}
			*dst = d
		}
	}
	list := func(key string, dst *[]string) {
		if v := getenv(key); v != "" {
			*dst = splitList(v)
		}
	}

	integer("PORT", &c.Port)
	str("DB_DRIVER", &c.Database.Driver)
	str("DB_PATH", &c.Database.Path)
	str("DATABASE_URL", &c.Database.URL)
	if v := getenv("DB_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: DB_MAX_CONNS=%q is not an integer", v))
		} else {
			c.Database.MaxConns = int32(n)
		}
	}
	str("JWT_SECRET", &c.Auth.JWTSecret)
	duration("TOKEN_TTL", &c.Auth.TokenTTL)
	integer("BCRYPT_COST", &c.Auth.BcryptCost)
	str("GITHUB_CLIENT_ID", &c.GitHub.ClientID)
	str("GITHUB_CLIENT_SECRET", &c.GitHub.ClientSecret)
	str("GITHUB_CALLBACK_URL", &c.GitHub.CallbackURL)
	list("CORS_ALLOWED_ORIGINS", &c.CORS.AllowedOrigins)
	list("SEED_SKILLS", &c.Seed.Skills)
	boolean("SEED_DEMO_USERS", &c.Seed.DemoUsers)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	return errors.Join(errs...)
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("acme-skills", pflag.ContinueOnError)
	flags.String("config", "", "path to a YAML config file (env ACME_CONFIG)")
	flags.String("env-file", ".env", "dotenv file to load before reading the environment")
	flags.Int("port", 0, "HTTP listen port (env PORT)")
	flags.String("db-driver", "", "database driver: sqlite or postgres (env DB_DRIVER)")
	flags.String("db-path", "", "SQLite database file (env DB_PATH)")
	flags.String("database-url", "", "PostgreSQL connection string (env DATABASE_URL)")
	flags.String("jwt-secret", "", "HMAC secret for tokens, at least 16 characters (env JWT_SECRET)")
	flags.Duration("token-ttl", 0, "token lifetime (env TOKEN_TTL)")
	flags.Int("bcrypt-cost", 0, "bcrypt cost factor (env BCRYPT_COST)")
	flags.StringSlice("cors-origins", nil, "allowed CORS origins (env CORS_ALLOWED_ORIGINS)")
	flags.Bool("seed-demo-users", false, "create the demo accounts on startup (env SEED_DEMO_USERS)")
	flags.String("log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	flags.String("log-format", "", "text or json (env LOG_FORMAT)")
	return flags
}

// applyFlags copies only the flags that were set on the command line, so
// an unset flag's zero default never clobbers a value from a lower layer.
func (c *Config) applyFlags(flags *pflag.FlagSet) error {
	var err error
	get := func(name string, apply func() error) {
		if err == nil && flags.Changed(name) {
			err = apply()
		}
	}

	get("port", func() (e error) { c.Port, e = flags.GetInt("port"); return })
	get("db-driver", func() (e error) { c.Database.Driver, e = flags.GetString("db-driver"); return })
	get("db-path", func() (e error) { c.Database.Path, e = flags.GetString("db-path"); return })
	get("database-url", func() (e error) { c.Database.URL, e = flags.GetString("database-url"); return })
	get("jwt-secret", func() (e error) { c.Auth.JWTSecret, e = flags.GetString("jwt-secret"); return })
	get("token-ttl", func() (e error) { c.Auth.TokenTTL, e = flags.GetDuration("token-ttl"); return })
	get("bcrypt-cost", func() (e error) { c.Auth.BcryptCost, e = flags.GetInt("bcrypt-cost"); return })
	get("cors-origins", func() (e error) { c.CORS.AllowedOrigins, e = flags.GetStringSlice("cors-origins"); return })
	get("seed-demo-users", func() (e error) { c.Seed.DemoUsers, e = flags.GetBool("seed-demo-users"); return })
	get("log-level", func() (e error) { c.Log.Level, e = flags.GetString("log-level"); return })
	get("log-format", func() (e error) { c.Log.Format, e = flags.GetString("log-format"); return })

	if err != nil {
		return fmt.Errorf("config: reading flags: %w", err)
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
