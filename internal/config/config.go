package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"eventcal/internal/model"
)

// EnvPrefix is the prefix of environment overrides, e.g. EVENTCAL_LISTEN or
// EVENTCAL_NOTIFICATION_ROBOT_URL. Keys are derived from field names only;
// unprefixed variables (PATH, LANGUAGE) are never read.
const EnvPrefix = "EVENTCAL"

// DefaultPath is where the CLI looks for the config file.
const DefaultPath = "/etc/eventcal/config.yaml"

const (
	defaultListen   = "127.0.0.1:8080"
	defaultDataDir  = "/var/lib/eventcal"
	defaultInterval = 60 * time.Second
	defaultTimeout  = 10 * time.Second
	sqliteFileName  = "eventcal.db"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Driver is "file" (one JSON file per key) or "sqlite".
	Driver string `yaml:"driver" json:"driver"`
	// Path is a directory for "file" and a database file (or its directory)
	// for "sqlite".
	Path string `yaml:"path" json:"path"`
}

// ReminderConfig tunes the reminder runner.
type ReminderConfig struct {
	// Interval between reminder cycles. Values below one second are raised
	// to one second by the scheduler.
	Interval time.Duration `yaml:"interval" json:"interval"`
	// Timeout bounds a single webhook delivery.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// NotificationConfig seeds the delivery settings on first run. Once settings
// have been saved through the API, the stored values win.
type NotificationConfig struct {
	Method   string `yaml:"method" json:"method"`
	RobotURL string `yaml:"robot_url" json:"robot_url" split_words:"true"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone calendar dates are anchored in. Empty or
	// "Local" means the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is passed to clients as a display hint: "sunday" (default)
	// or "monday". The month grid itself always starts on Sunday.
	WeekStart string `yaml:"week_start" json:"week_start" split_words:"true"`

	// Language of reminder messages: "en-US" (default) or "zh-CN".
	Language string `yaml:"language" json:"language"`

	// LogLevel is DEBUG, INFO or ERROR.
	LogLevel string `yaml:"log_level" json:"log_level" split_words:"true"`

	Storage      StorageConfig      `yaml:"storage" json:"storage"`
	Reminder     ReminderConfig     `yaml:"reminder" json:"reminder"`
	Notification NotificationConfig `yaml:"notification" json:"notification"`

	// BasicAuth, if set with both fields, enables HTTP Basic Authentication
	// on all endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty" split_words:"true"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:    defaultListen,
		Timezone:  "Local",
		WeekStart: "sunday",
		Language:  "en-US",
		LogLevel:  "INFO",
		Storage: StorageConfig{
			Driver: "file",
			Path:   defaultDataDir,
		},
		Reminder: ReminderConfig{
			Interval: defaultInterval,
			Timeout:  defaultTimeout,
		},
		Notification: NotificationConfig{
			Method: string(model.NotificationNone),
		},
	}
}

// Normalize fills in missing/zero values with defaults so partially-filled
// configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	switch strings.ToLower(c.WeekStart) {
	case "monday":
		c.WeekStart = "monday"
	default:
		c.WeekStart = "sunday"
	}
	if c.Language != "zh-CN" {
		c.Language = "en-US"
	}
	c.LogLevel = strings.ToUpper(c.LogLevel)
	switch c.LogLevel {
	case "DEBUG", "INFO", "ERROR":
	default:
		c.LogLevel = "INFO"
	}

	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = defaultDataDir
	}

	if c.Reminder.Interval <= 0 {
		c.Reminder.Interval = defaultInterval
	}
	if c.Reminder.Interval < time.Second {
		c.Reminder.Interval = time.Second
	}
	if c.Reminder.Timeout <= 0 {
		c.Reminder.Timeout = defaultTimeout
	}

	c.Notification.Method = strings.ToUpper(c.Notification.Method)
	if c.Notification.Method != string(model.NotificationWeCom) {
		c.Notification.Method = string(model.NotificationNone)
	}

	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// StoragePath returns the path to hand to the storage driver. For sqlite a
// directory path gets the default database file name appended.
func (c *Config) StoragePath() string {
	if c.Storage.Driver == "sqlite" && filepath.Ext(c.Storage.Path) == "" {
		return filepath.Join(c.Storage.Path, sqliteFileName)
	}
	return c.Storage.Path
}

// SeedSettings converts the notification block into delivery settings.
func (c *Config) SeedSettings() model.Settings {
	return model.Settings{
		NotificationMethod:   model.NotificationMethod(c.Notification.Method),
		NotificationRobotURL: c.Notification.RobotURL,
	}
}

// ApplyEnv overrides fields from EVENTCAL_* environment variables. Variables
// that are not set leave the current value alone.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to process environment variables: %w", err)
	}
	c.Normalize()
	return nil
}

// Load loads configuration from the given YAML path, then applies
// environment overrides.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg, err := loadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".eventcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
