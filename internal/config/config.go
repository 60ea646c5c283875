// Package config loads server settings from flags, environment variables
// and an optional .env file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	SessionBackendPostgres = "postgres"
	SessionBackendRedis    = "redis"
)

type Config struct {
	ListenAddr string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	SessionBackend string
	SessionSecret  string
	SessionTTL     time.Duration
	RedisURL       string
	CookieSecure   bool

	BcryptCost int
	LogLevel   string
}

// Load reads the server configuration. args are the command line arguments
// without the program name.
func Load(args []string) (*Config, error) {
	return load(args, true)
}

// LoadDatabase reads the configuration for tools that only talk to the
// database; session settings are not validated.
func LoadDatabase(args []string) (*Config, error) {
	return load(args, false)
}

func load(args []string, server bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	flags := pflag.NewFlagSet("pollsite", pflag.ContinueOnError)
	flags.String("listen-addr", "0.0.0.0:8080", "Address the HTTP server listens on.")
	flags.String("postgres-host", "localhost", "Database host.")
	flags.String("postgres-port", "5432", "Database port.")
	flags.String("postgres-user", "", "Database user.")
	flags.String("postgres-password", "", "Database password.")
	flags.String("postgres-db", "", "Database name.")
	flags.String("postgres-sslmode", "disable", "Database sslmode.")
	flags.String("session-backend", SessionBackendPostgres, "Where sessions are stored: postgres or redis.")
	flags.String("session-secret", "", "Key signing session cookies (prefer env).")
	flags.Duration("session-ttl", 14*24*time.Hour, "Session lifetime.")
	flags.String("redis-url", "redis://localhost:6379/0", "Redis URL, used with the redis session backend.")
	flags.Bool("cookie-secure", true, "Mark the session cookie Secure.")
	flags.Int("bcrypt-cost", 0, "bcrypt cost for passwords and access codes, 0 for the library default.")
	flags.String("log-level", "info", "Log level.")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return nil, bindErr
	}
	v.AllowEmptyEnv(false)
	v.AutomaticEnv()

	cfg := &Config{
		ListenAddr:       v.GetString("listen_addr"),
		PostgresHost:     v.GetString("postgres_host"),
		PostgresPort:     v.GetString("postgres_port"),
		PostgresUser:     v.GetString("postgres_user"),
		PostgresPassword: v.GetString("postgres_password"),
		PostgresDB:       v.GetString("postgres_db"),
		PostgresSSLMode:  v.GetString("postgres_sslmode"),
		SessionBackend:   strings.ToLower(v.GetString("session_backend")),
		SessionSecret:    v.GetString("session_secret"),
		SessionTTL:       v.GetDuration("session_ttl"),
		RedisURL:         v.GetString("redis_url"),
		CookieSecure:     v.GetBool("cookie_secure"),
		BcryptCost:       v.GetInt("bcrypt_cost"),
		LogLevel:         v.GetString("log_level"),
	}

	if err := cfg.validate(server); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate(server bool) error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if !server {
		return nil
	}

	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET required")
	}
	if len(c.SessionSecret) < 32 {
		return errors.New("SESSION_SECRET must be at least 32 characters")
	}
	switch c.SessionBackend {
	case SessionBackendPostgres:
	case SessionBackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL required with the redis session backend")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.SessionBackend)
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	return nil
}

func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     c.PostgresHost + ":" + c.PostgresPort,
		Path:     "/" + c.PostgresDB,
		RawQuery: "sslmode=" + url.QueryEscape(c.PostgresSSLMode),
	}
	return u.String()
}

// NewLogger builds the application logger. level must already be valid.
func NewLogger(level string) *log.Logger {
	logger := log.New()
	if l, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(l)
	}
	logger.SetFormatter(&nested.Formatter{
		HideKeys:    true,
		FieldsOrder: []string{"component", "category"},
	})
	return logger
}
