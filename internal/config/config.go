package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cthexam/internal/atomicfile"
	"cthexam/internal/examapi"
)

// Defaults.
const (
	DefaultEndpoint       = examapi.DefaultEndpoint
	DefaultListen         = "127.0.0.1:8080"
	DefaultRefresh        = "0 */6 * * *"
	DefaultRequestTimeout = 30
	DefaultLogLevel       = "info"
)

// Environment variables that override file values.
const (
	EnvEndpoint = "CTHEXAM_ENDPOINT"
	EnvListen   = "CTHEXAM_LISTEN"
	EnvLogLevel = "CTHEXAM_LOG_LEVEL"
	EnvRefresh  = "CTHEXAM_REFRESH"
	EnvTimeout  = "CTHEXAM_REQUEST_TIMEOUT_SECONDS"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Endpoint is the exam search API URL.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Listen is the HTTP listen address used by -listen mode.
	Listen string `yaml:"listen" json:"listen"`

	// Refresh is a cron-style schedule (e.g. "0 */6 * * *") for -watch mode.
	Refresh string `yaml:"refresh" json:"refresh"`

	// Output is the iCalendar file written by -watch mode.
	Output string `yaml:"output" json:"output"`

	// RequestTimeoutSeconds bounds each search call made by the CLI,
	// server and refresher.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`

	LogLevel string `yaml:"log_level" json:"log_level"`
	NoColor  bool   `yaml:"no_color" json:"no_color"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:              DefaultEndpoint,
		Listen:                DefaultListen,
		Refresh:               DefaultRefresh,
		Output:                "exams.ics",
		RequestTimeoutSeconds: DefaultRequestTimeout,
		LogLevel:              DefaultLogLevel,
	}
}

// DefaultPath returns the per-user config file location, e.g.
// ~/.config/cthexam/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "cthexam.yaml"
	}
	return filepath.Join(dir, "cthexam", "config.yaml")
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Refresh == "" {
		c.Refresh = DefaultRefresh
	}
	if c.Output == "" {
		c.Output = "exams.ics"
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = DefaultRequestTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	// Empty credentials disable auth.
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		c.BasicAuth = nil
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - A missing file yields the defaults; nothing is written.
//   - An existing file is unmarshalled and normalized.
//   - Environment overrides apply last, after loading an optional .env file
//     from the working directory.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	// .env is optional.
	_ = godotenv.Load()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	cfg.Normalize()
	return cfg, nil
}

// ApplyEnv overrides fields from CTHEXAM_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvEndpoint); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvRefresh); v != "" {
		c.Refresh = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New(EnvTimeout + ": " + err.Error())
		}
		c.RequestTimeoutSeconds = n
	}
	return nil
}

// Save writes the given configuration to path atomically with 0600
// permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(path, data, 0o600)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
