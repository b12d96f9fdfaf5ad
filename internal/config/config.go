package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider exposes configuration through getters so components depend on
// an interface rather than the concrete struct. Tests embed it in small mocks.
type Provider interface {
	GetDBURL() string
	GetDBNs() string
	GetDBDb() string
	GetDBUser() string
	GetDBPass() string
	GetDBAccess() string
	GetDBQueryTimeout() time.Duration
	GetDBExecuteTimeout() time.Duration
	GetMessagePageSize() int
	GetAvatarDir() string
	GetAvatarBaseURL() string
	GetAvatarMaxBytes() int64
	GetServerAddr() string
	GetSessionSecret() string
	GetHomeDir() string
}

// Config holds all configuration for the application.
type Config struct {
	DBUrl            string
	DBNs             string
	DBDb             string
	DBUser           string
	DBPass           string
	DBAccess         string
	DBQueryTimeout   time.Duration
	DBExecuteTimeout time.Duration

	MessagePageSize int

	AvatarDir      string
	AvatarBaseURL  string
	AvatarMaxBytes int64

	ServerAddr    string
	SessionSecret string
	HomeDir       string
}

// Defaults applied when the environment leaves a value unset.
const (
	DefaultQueryTimeout    = 5 * time.Second
	DefaultExecuteTimeout  = 10 * time.Second
	DefaultMessagePageSize = 100
	DefaultAvatarMaxBytes  = 5 * 1024 * 1024
	DefaultServerAddr      = ":8080"
	DefaultDBAccess        = "account"
)

var _ Provider = (*Config)(nil)

// New loads configuration from a .env file (if present) and environment variables.
// It does not validate; call Validate before connecting.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() *Config {
	home := os.Getenv("CHORUS_HOME")
	if home == "" {
		if userHome, err := os.UserHomeDir(); err == nil {
			home = filepath.Join(userHome, ".chorus")
		} else {
			home = ".chorus"
		}
	}

	return &Config{
		DBUrl:            os.Getenv("SURREAL_URL"),
		DBNs:             os.Getenv("SURREAL_NS"),
		DBDb:             os.Getenv("SURREAL_DB"),
		DBUser:           os.Getenv("SURREAL_USER"),
		DBPass:           os.Getenv("SURREAL_PASS"),
		DBAccess:         envOr("SURREAL_ACCESS", DefaultDBAccess),
		DBQueryTimeout:   envDuration("DB_QUERY_TIMEOUT", DefaultQueryTimeout),
		DBExecuteTimeout: envDuration("DB_EXECUTE_TIMEOUT", DefaultExecuteTimeout),
		MessagePageSize:  envInt("MESSAGE_PAGE_SIZE", DefaultMessagePageSize),
		AvatarDir:        envOr("AVATAR_DIR", filepath.Join(home, "avatars")),
		AvatarBaseURL:    strings.TrimRight(envOr("AVATAR_BASE_URL", "/avatars"), "/"),
		AvatarMaxBytes:   int64(envInt("AVATAR_MAX_BYTES", DefaultAvatarMaxBytes)),
		ServerAddr:       envOr("SERVER_ADDR", DefaultServerAddr),
		SessionSecret:    os.Getenv("SESSION_SECRET"),
		HomeDir:          home,
	}
}

// Validate reports every required setting that is missing.
func (c *Config) Validate() error {
	var errs []error
	if c.DBUrl == "" {
		errs = append(errs, errors.New("SURREAL_URL is required"))
	}
	if c.DBNs == "" {
		errs = append(errs, errors.New("SURREAL_NS is required"))
	}
	if c.DBDb == "" {
		errs = append(errs, errors.New("SURREAL_DB is required"))
	}
	if c.DBQueryTimeout <= 0 {
		errs = append(errs, errors.New("DB_QUERY_TIMEOUT must be a positive duration"))
	}
	if c.DBExecuteTimeout <= 0 {
		errs = append(errs, errors.New("DB_EXECUTE_TIMEOUT must be a positive duration"))
	}
	if c.MessagePageSize <= 0 {
		errs = append(errs, fmt.Errorf("MESSAGE_PAGE_SIZE must be positive, got %d", c.MessagePageSize))
	}
	return errors.Join(errs...)
}

func (c *Config) GetDBURL() string { return c.DBUrl }
func (c *Config) GetDBNs() string { return c.DBNs }
func (c *Config) GetDBDb() string { return c.DBDb }
func (c *Config) GetDBUser() string { return c.DBUser }
func (c *Config) GetDBPass() string { return c.DBPass }
func (c *Config) GetDBAccess() string { return c.DBAccess }
func (c *Config) GetDBQueryTimeout() time.Duration { return c.DBQueryTimeout }
func (c *Config) GetDBExecuteTimeout() time.Duration { return c.DBExecuteTimeout }
func (c *Config) GetMessagePageSize() int { return c.MessagePageSize }
func (c *Config) GetAvatarDir() string { return c.AvatarDir }
func (c *Config) GetAvatarBaseURL() string { return c.AvatarBaseURL }
func (c *Config) GetAvatarMaxBytes() int64 { return c.AvatarMaxBytes }
func (c *Config) GetServerAddr() string { return c.ServerAddr }
func (c *Config) GetSessionSecret() string { return c.SessionSecret }
func (c *Config) GetHomeDir() string { return c.HomeDir }

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

// envDuration accepts Go duration strings ("5s") or bare seconds ("5").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("Invalid duration in environment, using default", "key", key, "value", v, "default", fallback)
	return fallback
}
