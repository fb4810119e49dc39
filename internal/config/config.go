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

	"github.com/five82/evalwatch/internal/lmeval"
)

// Config captures everything evalwatch needs to reach the backend.
type Config struct {
	APIURL         string
	Mode           lmeval.DeploymentMode
	DevIdentity    string
	Namespace      string
	CollectionPoll time.Duration
	ItemPoll       time.Duration
	LogFile        string
	LogLevel       string
}

const (
	defaultConfigPath     = "~/.config/evalwatch/config.toml"
	defaultLogFile        = "~/.local/state/evalwatch/evalwatch.log"
	defaultDevIdentity    = "user@example.com"
	defaultLogLevel       = "info"
	defaultCollectionPoll = 5 * time.Second
	defaultItemPoll       = 3 * time.Second
)

// Environment overrides, applied after the config file.
const (
	EnvAPIURL      = "EVALWATCH_API_URL"
	EnvMode        = "EVALWATCH_MODE"
	EnvDevIdentity = "EVALWATCH_DEV_IDENTITY"
	EnvNamespace   = "EVALWATCH_NAMESPACE"
	EnvLogLevel    = "EVALWATCH_LOG_LEVEL"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIURL:         lmeval.DefaultBaseURL,
		Mode:           lmeval.ModeStandalone,
		DevIdentity:    defaultDevIdentity,
		CollectionPoll: defaultCollectionPoll,
		ItemPoll:       defaultItemPoll,
		LogFile:        mustExpand(defaultLogFile),
		LogLevel:       defaultLogLevel,
	}
}

// Load reads the config file at path (or the default location), then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.merge(bytes); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) merge(data []byte) error {
	var raw struct {
		APIURL         string `toml:"api_url"`
		DeploymentMode string `toml:"deployment_mode"`
		DevIdentity    string `toml:"dev_identity"`
		Namespace      string `toml:"namespace"`
		CollectionPoll string `toml:"collection_poll"`
		ItemPoll       string `toml:"item_poll"`
		LogFile        string `toml:"log_file"`
		LogLevel       string `toml:"log_level"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIURL); v != "" {
		c.APIURL = v
	}
	if strings.TrimSpace(raw.DeploymentMode) != "" {
		mode, err := lmeval.ParseDeploymentMode(raw.DeploymentMode)
		if err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
		c.Mode = mode
	}
	if v := strings.TrimSpace(raw.DevIdentity); v != "" {
		c.DevIdentity = v
	}
	c.Namespace = strings.TrimSpace(raw.Namespace)

	var err error
	if c.CollectionPoll, err = parseInterval("collection_poll", raw.CollectionPoll, c.CollectionPoll); err != nil {
		return err
	}
	if c.ItemPoll, err = parseInterval("item_poll", raw.ItemPoll, c.ItemPoll); err != nil {
		return err
	}

	if v := strings.TrimSpace(raw.LogFile); v != "" {
		c.LogFile = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		c.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMode)); v != "" {
		mode, err := lmeval.ParseDeploymentMode(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMode, err)
		}
		c.Mode = mode
	}
	if v := strings.TrimSpace(os.Getenv(EnvDevIdentity)); v != "" {
		c.DevIdentity = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvNamespace)); v != "" {
		c.Namespace = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	return nil
}

// ClientOptions maps the config onto client options.
func (c Config) ClientOptions() lmeval.Options {
	return lmeval.Options{
		BaseURL:  c.APIURL,
		Mode:     c.Mode,
		Identity: c.DevIdentity,
	}
}

func parseInterval(key, value string, fallback time.Duration) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse config: %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("parse config: %s must be positive", key)
	}
	return d, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ExpandPath resolves "~" and relative paths to an absolute path.
func ExpandPath(path string) (string, error) {
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
