// Package config loads kasactl's configuration file with viper and turns it
// into client options and an outlet set.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/zberg/go-kasaplug/pkg/kasa"
	"github.com/zberg/go-kasaplug/pkg/psu"
)

const (
	appName   = "kasactl"
	EnvPrefix = "KASACTL"
)

// ErrNoMainOutlet is returned when a command needs the configured system
// but main.address is empty.
var ErrNoMainOutlet = errors.New("no main outlet configured (set main.address)")

// File is the configuration file layout.
type File struct {
	Port           int           `mapstructure:"port"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect-timeout"`
	Main           Outlet        `mapstructure:"main"`
	Outlets        []Outlet      `mapstructure:"outlets"`
	Server         Server        `mapstructure:"server"`
}

// Outlet is one configured outlet. Name is ignored for main.
type Outlet struct {
	Name    string `mapstructure:"name" yaml:"name,omitempty"`
	Address string `mapstructure:"address" yaml:"address"`
	Plug    int    `mapstructure:"plug" yaml:"plug"`
	Enabled bool   `mapstructure:"enabled" yaml:"enabled,omitempty"`
}

// Server configures the HTTP adapter.
type Server struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// SetDefaults registers every key with its default so environment
// variables can override keys absent from the file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", kasa.DefaultPort)
	v.SetDefault("timeout", 2*time.Second)
	v.SetDefault("connect-timeout", 5*time.Second)
	v.SetDefault("main.address", "")
	v.SetDefault("main.plug", 0)
	v.SetDefault("outlets", []any{})
	v.SetDefault("server.listen", ":8080")
}

// DefaultPath returns $XDG_CONFIG_HOME/kasactl/config.yaml, falling back to
// $HOME/.config.
func DefaultPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, appName, "config.yaml"), nil
}

// ReadInConfig points v at path (or the default location when empty),
// enables KASACTL_* environment overrides and reads the file. A missing
// file at the default location is not an error.
func ReadInConfig(v *viper.Viper, path string) error {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		var err error
		if path, err = DefaultPath(); err != nil {
			return err
		}
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && (errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil
		}
		return fmt.Errorf("failed to load config file: %w", err)
	}
	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (File, error) {
	var f File
	if err := v.Unmarshal(&f); err != nil {
		return File{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks ranges and the outlet set.
func (f File) Validate() error {
	if f.Port < 1 || f.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", f.Port)
	}
	if f.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if f.ConnectTimeout <= 0 {
		return errors.New("connect-timeout must be positive")
	}
	return f.outletConfig().Validate()
}

// ClientOptions returns the kasa client options described by f.
func (f File) ClientOptions(logger logr.Logger) []kasa.ClientOption {
	return []kasa.ClientOption{
		kasa.WithPort(f.Port),
		kasa.WithRequestTimeout(f.Timeout),
		kasa.WithConnectTimeout(f.ConnectTimeout),
		kasa.WithLogger(logger),
	}
}

// PSU returns the outlet set. It fails when no main outlet is configured.
func (f File) PSU() (psu.Config, error) {
	if f.Main.Address == "" {
		return psu.Config{}, ErrNoMainOutlet
	}
	return f.outletConfig(), nil
}

func (f File) outletConfig() psu.Config {
	cfg := psu.Config{
		Main: psu.OutletConfig{Name: psu.MainOutlet, Address: f.Main.Address, Plug: f.Main.Plug, Enabled: true},
	}
	for _, o := range f.Outlets {
		cfg.Outlets = append(cfg.Outlets, psu.OutletConfig(o))
	}
	return cfg
}

// Watch re-reads the file whenever it changes on disk and passes the new
// configuration to apply. Invalid revisions are logged and skipped.
func Watch(v *viper.Viper, logger logr.Logger, apply func(File) error) {
	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("config file changed", "file", e.Name, "op", e.Op.String())
		f, err := Load(v)
		if err != nil {
			logger.Error(err, "ignoring invalid config revision", "file", e.Name)
			return
		}
		if err := apply(f); err != nil {
			logger.Error(err, "failed to apply config revision", "file", e.Name)
		}
	})
	v.WatchConfig()
}

// fileYAML is File as written to disk, with human readable durations.
type fileYAML struct {
	Port           int      `yaml:"port"`
	Timeout        string   `yaml:"timeout"`
	ConnectTimeout string   `yaml:"connect-timeout"`
	Main           Outlet   `yaml:"main"`
	Outlets        []Outlet `yaml:"outlets"`
	Server         Server   `yaml:"server"`
}

// MarshalYAML implements yaml.Marshaler.
func (f File) MarshalYAML() (any, error) {
	return fileYAML{
		Port:           f.Port,
		Timeout:        f.Timeout.String(),
		ConnectTimeout: f.ConnectTimeout.String(),
		Main:           Outlet{Address: f.Main.Address, Plug: f.Main.Plug},
		Outlets:        f.Outlets,
		Server:         f.Server,
	}, nil
}

// Marshal renders f as YAML.
func Marshal(f File) ([]byte, error) {
	return yaml.Marshal(f)
}

// Sample returns an example configuration with one enabled and one
// disabled auxiliary outlet on a power strip.
func Sample() File {
	return File{
		Port:           kasa.DefaultPort,
		Timeout:        2 * time.Second,
		ConnectTimeout: 5 * time.Second,
		Main:           Outlet{Address: "192.168.1.20"},
		Outlets: []Outlet{
			{Name: "light", Address: "192.168.1.21", Plug: 2, Enabled: true},
			{Name: "accessory", Address: "192.168.1.21", Plug: 3},
		},
		Server: Server{Listen: ":8080"},
	}
}

// WriteSample writes Sample to path, creating parent directories. It
// refuses to overwrite an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	data, err := Marshal(Sample())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
