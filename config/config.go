// Package config loads samaya settings from TOML.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/vinayprograms/samaya/logging"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendNATS   = "nats"
)

// Duration is a time.Duration written as a string such as "5s" or "24h".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the full configuration.
type Config struct {
	Timer  TimerConfig  `toml:"timer"`
	Store  StoreConfig  `toml:"store"`
	Notify NotifyConfig `toml:"notify"`
	Log    LogConfig    `toml:"log"`
}

// TimerConfig holds timing settings.
type TimerConfig struct {
	TickInterval  Duration `toml:"tick_interval"`
	MaxAway       Duration `toml:"max_away"`
	FlushInterval Duration `toml:"flush_interval"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend  string `toml:"backend" validate:"oneof=memory file nats"`
	Path     string `toml:"path" validate:"required_if=Backend file"`
	MaxBytes int64  `toml:"max_bytes" validate:"gte=0"` // zero means unlimited
	NATSURL  string `toml:"nats_url" validate:"required_if=Backend nats"`
	Bucket   string `toml:"bucket" validate:"required_if=Backend nats"`
}

// NotifyConfig selects the change-notification hub.
type NotifyConfig struct {
	Backend string `toml:"backend" validate:"oneof=memory nats"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultPath is where the file backend keeps state unless configured.
func DefaultPath() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, ".local", "share", "samaya", "state.json")
	}
	return "samaya-state.json"
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Timer: TimerConfig{
			TickInterval:  Duration{time.Second},
			MaxAway:       Duration{24 * time.Hour},
			FlushInterval: Duration{5 * time.Second},
		},
		Store: StoreConfig{
			Backend: BackendFile,
			Path:    DefaultPath(),
			NATSURL: "nats://127.0.0.1:4222",
			Bucket:  "samaya",
		},
		Notify: NotifyConfig{Backend: BackendMemory},
		Log:    LogConfig{Level: "info"},
	}
}

var validate = newValidator()

// newValidator reports fields by their TOML names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Timer.TickInterval.Duration <= 0 {
		return fmt.Errorf("timer.tick_interval must be positive")
	}
	if c.Timer.MaxAway.Duration <= 0 {
		return fmt.Errorf("timer.max_away must be positive")
	}
	if c.Timer.FlushInterval.Duration <= 0 {
		return fmt.Errorf("timer.flush_interval must be positive")
	}
	if err := validate.Struct(c); err != nil {
		return describe(err)
	}
	if c.Notify.Backend == BackendNATS && c.Store.NATSURL == "" {
		return fmt.Errorf("store.nats_url required for the nats notify backend")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// describe turns the first validator failure into a config-file message.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "oneof":
		return fmt.Errorf("unknown %s %q (want one of: %s)", field, fe.Value(), fe.Param())
	case "required_if":
		return fmt.Errorf("%s required for this backend", field)
	case "gte":
		return fmt.Errorf("%s must not be negative", field)
	default:
		return fmt.Errorf("%s: failed %s", field, fe.Tag())
	}
}

// StandardPaths returns the config file locations in order of priority.
func StandardPaths() []string {
	paths := []string{"samaya.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "samaya", "samaya.toml"))
	}
	return paths
}

// Load reads the first config file found in StandardPaths. With no file it
// returns Default and an empty path.
func Load() (*Config, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			cfg, err := LoadFile(path)
			return cfg, path, err
		}
	}
	return Default(), "", nil
}

// LoadFile reads path over the defaults. Unknown keys are an error.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Store.Path = expandHome(cfg.Store.Path)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
