package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/storekit/internal/store"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "storekit.toml"

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "STOREKIT_"

// Config is the CLI configuration.
type Config struct {
	Log    LogConfig    `toml:"log" envPrefix:"LOG_"`
	Store  StoreConfig  `toml:"store" envPrefix:"STORE_"`
	Script ScriptConfig `toml:"script" envPrefix:"SCRIPT_"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	// Level is debug, info, warn, error or fatal.
	Level string `toml:"level" env:"LEVEL"`
	// Format is text, json or logfmt.
	Format string `toml:"format" env:"FORMAT"`
	// Timestamps adds a timestamp to every line.
	Timestamps bool `toml:"timestamps" env:"TIMESTAMPS"`
}

// StoreConfig configures every store the CLI creates.
type StoreConfig struct {
	RecoverFromPanic bool   `toml:"recover_from_panic" env:"RECOVER_FROM_PANIC"`
	Metrics          bool   `toml:"metrics" env:"METRICS"`
	Unobserved       string `toml:"unobserved" env:"UNOBSERVED"`
}

// ScriptConfig configures Lua-scripted stores.
type ScriptConfig struct {
	Timeout Duration `toml:"timeout" env:"TIMEOUT"`
}

// Duration is a time.Duration read from strings like "1.5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			RecoverFromPanic: true,
			Unobserved:       string(store.UnobservedLog),
		},
		Script: ScriptConfig{
			Timeout: Duration{5 * time.Second},
		},
	}
}

// Load resolves the configuration from defaults, the file at path and the
// process environment. An empty path reads DefaultPath if it exists.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, nil)
}

// LoadWithEnv is Load with an explicit environment. A nil environ reads the
// process environment.
func LoadWithEnv(path string, environ map[string]string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decodeTOML(path, data, &cfg); err != nil {
			return Config{}, err
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	case errors.Is(err, fs.ErrNotExist):
		return Config{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	default:
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := parseEnv(&cfg, environ); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes TOML data over the defaults without consulting the
// environment.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := decodeTOML("<data>", data, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeTOML(source string, data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return perr
	}
	return nil
}

// parseEnv overlays STOREKIT_* variables onto cfg.
func parseEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks every enumerated setting.
func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return &ValidationError{Path: "log.level", Value: c.Log.Level, Message: err.Error()}
	}
	switch c.Log.Format {
	case "text", "json", "logfmt":
	default:
		return &ValidationError{Path: "log.format", Value: c.Log.Format, Message: "must be text, json or logfmt"}
	}
	if _, err := store.ParseUnobservedPolicy(c.Store.Unobserved); err != nil {
		return &ValidationError{Path: "store.unobserved", Value: c.Store.Unobserved, Message: err.Error()}
	}
	if c.Script.Timeout.Duration <= 0 {
		return &ValidationError{Path: "script.timeout", Value: c.Script.Timeout, Message: "must be positive"}
	}
	return nil
}

// ForStore returns the store configuration the settings describe.
func (c Config) ForStore() store.Config {
	policy, err := store.ParseUnobservedPolicy(c.Store.Unobserved)
	if err != nil {
		policy = store.UnobservedLog
	}
	cfg := store.DefaultConfig().
		WithPanicRecovery(c.Store.RecoverFromPanic).
		WithUnobservedPolicy(policy)
	if c.Store.Metrics {
		cfg = cfg.WithMetrics()
	}
	return cfg
}
