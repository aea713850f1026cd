package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/melinda/pkg/melinda"
)

// Config holds the connection settings the CLI needs to talk to Melinda.
type Config struct {
	Path              string
	BaseURL           string
	Username          string
	Password          string
	Cataloger         string
	UserAgent         string
	PollInterval      time.Duration
	Timeout           time.Duration
	RequestsPerSecond float64
}

const (
	defaultConfigPath   = "~/.config/melinda/config.toml"
	defaultPollInterval = melinda.DefaultPollInterval
	defaultTimeout      = time.Minute
)

// Environment variables that override values from the config file.
const (
	EnvBaseURL   = "MELINDA_BASE_URL"
	EnvUsername  = "MELINDA_USERNAME"
	EnvPassword  = "MELINDA_PASSWORD"
	EnvCataloger = "MELINDA_CATALOGER"
)

type fileConfig struct {
	BaseURL           string  `toml:"base_url"`
	Username          string  `toml:"username"`
	Password          string  `toml:"password"`
	Cataloger         string  `toml:"cataloger"`
	UserAgent         string  `toml:"user_agent"`
	PollInterval      string  `toml:"poll_interval"`
	Timeout           string  `toml:"timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Load reads the config file at path (or the default location), falling back
// to defaults when the file is missing, then applies environment overrides.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{Path: resolved, PollInterval: defaultPollInterval, Timeout: defaultTimeout}

	raw, err := readFile(resolved)
	if err != nil {
		return Config{}, err
	}

	cfg.BaseURL = strings.TrimSpace(raw.BaseURL)
	cfg.Username = strings.TrimSpace(raw.Username)
	cfg.Password = raw.Password
	cfg.Cataloger = strings.TrimSpace(raw.Cataloger)
	cfg.UserAgent = strings.TrimSpace(raw.UserAgent)
	cfg.RequestsPerSecond = raw.RequestsPerSecond

	if cfg.PollInterval, err = parseDuration("poll_interval", raw.PollInterval, defaultPollInterval); err != nil {
		return Config{}, err
	}
	if cfg.Timeout, err = parseDuration("timeout", raw.Timeout, defaultTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RequestsPerSecond < 0 {
		return Config{}, fmt.Errorf("parse config: requests_per_second must not be negative")
	}

	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

func readFile(path string) (fileConfig, error) {
	var raw fileConfig

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return raw, nil
		}
		return raw, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return raw, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return raw, fmt.Errorf("parse config: %w", err)
	}
	return raw, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string, trim bool) {
		v, ok := lookup(key)
		if !ok {
			return
		}
		if trim {
			v = strings.TrimSpace(v)
		}
		if v != "" {
			*dst = v
		}
	}
	set(&c.BaseURL, EnvBaseURL, true)
	set(&c.Username, EnvUsername, true)
	set(&c.Password, EnvPassword, false)
	set(&c.Cataloger, EnvCataloger, true)
}

// Client returns the library configuration.
func (c Config) Client() melinda.Config {
	return melinda.Config{
		BaseURL:   c.BaseURL,
		Username:  c.Username,
		Password:  c.Password,
		Cataloger: c.Cataloger,
		UserAgent: c.UserAgent,
	}
}

// ClientOptions returns the executor options implied by the config.
func (c Config) ClientOptions() []melinda.Option {
	var opts []melinda.Option
	if c.Timeout > 0 {
		opts = append(opts, melinda.WithTimeout(c.Timeout))
	}
	if c.RequestsPerSecond > 0 {
		opts = append(opts, melinda.WithRateLimit(c.RequestsPerSecond, 1))
	}
	return opts
}

// Validate reports the first setting that prevents building a client.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.BaseURL) == "":
		return fmt.Errorf("base url is not configured (set base_url in %s or %s)", c.Path, EnvBaseURL)
	case c.Username == "":
		return fmt.Errorf("username is not configured (set username in %s or %s)", c.Path, EnvUsername)
	}
	return nil
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse config: %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("parse config: %s must not be negative", field)
	}
	return d, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
