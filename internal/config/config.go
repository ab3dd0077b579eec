package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"sellerchat/internal/models"
)

// Mode selects which settings Validate insists on.
type Mode int

const (
	ModeClient Mode = iota
	ModeServer
)

type Config struct {
	BaseURL       string        `yaml:"base_url"`
	MemberID      int64         `yaml:"member_id"`
	MemberName    string        `yaml:"member_name"`
	Token         string        `yaml:"token"`
	TimeLayout    string        `yaml:"time_layout"`
	RoomsCacheTTL time.Duration `yaml:"rooms_cache_ttl"`
	HTTPTimeout   time.Duration `yaml:"http_timeout"`
	LogLevel      string        `yaml:"log_level"`
	ServerAddr    string        `yaml:"server_addr"`
	AdminAddr     string        `yaml:"admin_addr"`
	DBFile        string        `yaml:"db_file"`
}

func Default() *Config {
	return &Config{
		BaseURL:       "http://localhost:8080",
		TimeLayout:    "2006-01-02 15:04",
		RoomsCacheTTL: 30 * time.Second,
		HTTPTimeout:   10 * time.Second,
		LogLevel:      "warn",
		ServerAddr:    ":8080",
		AdminAddr:     "localhost:8081",
		DBFile:        "sellerchat.db",
	}
}

// RegisterFlags adds the configuration flags to fs. Flags override the
// config file and the environment.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", getEnv("SELLERCHAT_CONFIG", ""), "path to a YAML config file")
	fs.String("base-url", "", "chat backend base URL")
	fs.Int64("member-id", 0, "signed-in member id")
	fs.String("member-name", "", "signed-in member name")
	fs.String("token", "", "bearer token for the chat backend")
	fs.String("time-layout", "", "timestamp layout used when rendering messages")
	fs.Duration("rooms-cache-ttl", 0, "how long a fetched room list is reused")
	fs.Duration("http-timeout", 0, "timeout for REST calls")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.String("server-addr", "", "listen address of the development backend")
	fs.String("admin-addr", "", "listen address of the development backend admin API")
	fs.String("db-file", "", "bbolt file of the development backend")
}

// Load builds the configuration from defaults, the optional YAML file named
// by --config, SELLERCHAT_* environment variables and finally flags set on fs.
func Load(fs *pflag.FlagSet, mode Mode) (*Config, error) {
	cfg := Default()

	path, err := fs.GetString("config")
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.loadFlags(fs); err != nil {
		return nil, err
	}

	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.BaseURL = getEnv("SELLERCHAT_BASE_URL", c.BaseURL)
	c.MemberName = getEnv("SELLERCHAT_MEMBER_NAME", c.MemberName)
	c.Token = getEnv("SELLERCHAT_TOKEN", c.Token)
	c.TimeLayout = getEnv("SELLERCHAT_TIME_LAYOUT", c.TimeLayout)
	c.LogLevel = getEnv("SELLERCHAT_LOG_LEVEL", c.LogLevel)
	c.ServerAddr = getEnv("SELLERCHAT_SERVER_ADDR", c.ServerAddr)
	c.AdminAddr = getEnv("SELLERCHAT_ADMIN_ADDR", c.AdminAddr)
	c.DBFile = getEnv("SELLERCHAT_DB", c.DBFile)

	var err error
	if c.MemberID, err = strconv.ParseInt(getEnv("SELLERCHAT_MEMBER_ID", strconv.FormatInt(c.MemberID, 10)), 10, 64); err != nil {
		return fmt.Errorf("SELLERCHAT_MEMBER_ID: %w", err)
	}
	if c.RoomsCacheTTL, err = time.ParseDuration(getEnv("SELLERCHAT_ROOMS_CACHE_TTL", c.RoomsCacheTTL.String())); err != nil {
		return fmt.Errorf("SELLERCHAT_ROOMS_CACHE_TTL: %w", err)
	}
	if c.HTTPTimeout, err = time.ParseDuration(getEnv("SELLERCHAT_HTTP_TIMEOUT", c.HTTPTimeout.String())); err != nil {
		return fmt.Errorf("SELLERCHAT_HTTP_TIMEOUT: %w", err)
	}
	return nil
}

func (c *Config) loadFlags(fs *pflag.FlagSet) error {
	var errs []error
	str := func(name string, dst *string) {
		if fs.Changed(name) {
			v, err := fs.GetString(name)
			errs = append(errs, err)
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if fs.Changed(name) {
			v, err := fs.GetDuration(name)
			errs = append(errs, err)
			*dst = v
		}
	}

	str("base-url", &c.BaseURL)
	str("member-name", &c.MemberName)
	str("token", &c.Token)
	str("time-layout", &c.TimeLayout)
	str("log-level", &c.LogLevel)
	str("server-addr", &c.ServerAddr)
	str("admin-addr", &c.AdminAddr)
	str("db-file", &c.DBFile)
	dur("rooms-cache-ttl", &c.RoomsCacheTTL)
	dur("http-timeout", &c.HTTPTimeout)
	if fs.Changed("member-id") {
		v, err := fs.GetInt64("member-id")
		errs = append(errs, err)
		c.MemberID = v
	}
	return errors.Join(errs...)
}

func (c *Config) Validate(mode Mode) error {
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.MemberID < 0 {
		return fmt.Errorf("member id must not be negative")
	}

	switch mode {
	case ModeClient:
		if c.BaseURL == "" {
			return fmt.Errorf("base_url is required")
		}
		if c.RoomsCacheTTL < 0 {
			return fmt.Errorf("rooms_cache_ttl must not be negative")
		}
		if c.HTTPTimeout <= 0 {
			return fmt.Errorf("http_timeout must be greater than 0")
		}
	case ModeServer:
		if c.ServerAddr == "" {
			return fmt.Errorf("server_addr is required")
		}
		if c.DBFile == "" {
			return fmt.Errorf("db_file is required")
		}
	}
	return nil
}

// Identity is the signed-in member. It is zero when either part is missing.
func (c *Config) Identity() models.Identity {
	return models.Identity{MemberID: c.MemberID, Name: c.MemberName}
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
