// Package config loads this module's runtime knobs: connect timeout, io
// timeout, lock timeout, max_recv_size override, srq listen address, srq
// program version. Layering is github.com/spf13/viper for precedence and
// file discovery, github.com/mitchellh/mapstructure decode tags for the
// YAML -> struct mapping, gopkg.in/yaml.v3 for the on-disk format.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// LoggingConfig controls internal/logger's Init.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // DEBUG, INFO, WARN, ERROR
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// DiscoveryConfig controls portmapper broadcast discovery.
type DiscoveryConfig struct {
	MulticastAddr string        `mapstructure:"multicast_addr" yaml:"multicast_addr"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// ConnectConfig controls VXI-11 connection and per-call timeouts.
type ConnectConfig struct {
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	IOTimeout           time.Duration `mapstructure:"io_timeout" yaml:"io_timeout"`
	LockTimeout         time.Duration `mapstructure:"lock_timeout" yaml:"lock_timeout"`
	MaxRecvSizeOverride uint32        `mapstructure:"max_recv_size_override" yaml:"max_recv_size_override"`
}

// InterruptConfig controls the host-side SRQ callback server.
type InterruptConfig struct {
	ListenAddr  string `mapstructure:"listen_addr" yaml:"listen_addr"`
	ProgramVers uint32 `mapstructure:"program_vers" yaml:"program_vers"`
}

// MetricsConfig controls the optional Prometheus HTTP exporter.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// Config is the top-level configuration for vxi11ctl and any other
// collaborator that wants a single struct to drive the library from.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
	Connect   ConnectConfig   `mapstructure:"connect" yaml:"connect"`
	Interrupt InterruptConfig `mapstructure:"interrupt" yaml:"interrupt"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// ApplyDefaults returns a Config with every field set to its documented
// default, to be layered under file/env/flag values by Load.
func ApplyDefaults() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
		Discovery: DiscoveryConfig{
			MulticastAddr: "224.0.0.1:111",
			IdleTimeout:   500 * time.Millisecond,
		},
		Connect: ConnectConfig{
			ConnectTimeout: time.Second,
			IOTimeout:      time.Second,
			LockTimeout:    0,
		},
		Interrupt: InterruptConfig{
			ListenAddr:  "0.0.0.0:0",
			ProgramVers: 1,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9090",
		},
	}
}

// Load reads configuration with precedence CLI flags > environment
// variables (VXI11_*) > YAML config file (configPath, optional) > defaults.
// v is the viper instance the caller's cobra command has already bound its
// flags into; Load only adds the env/file/default layers and decodes.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	defaults := ApplyDefaults()
	setDefaults(v, defaults)

	v.SetEnvPrefix("VXI11")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: read %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// setDefaults seeds v with every field of defaults under its mapstructure
// path, so viper's precedence chain has a floor even when no file or env
// var overrides a given key.
func setDefaults(v *viper.Viper, defaults Config) {
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("discovery.multicast_addr", defaults.Discovery.MulticastAddr)
	v.SetDefault("discovery.idle_timeout", defaults.Discovery.IdleTimeout)
	v.SetDefault("connect.connect_timeout", defaults.Connect.ConnectTimeout)
	v.SetDefault("connect.io_timeout", defaults.Connect.IOTimeout)
	v.SetDefault("connect.lock_timeout", defaults.Connect.LockTimeout)
	v.SetDefault("connect.max_recv_size_override", defaults.Connect.MaxRecvSizeOverride)
	v.SetDefault("interrupt.listen_addr", defaults.Interrupt.ListenAddr)
	v.SetDefault("interrupt.program_vers", defaults.Interrupt.ProgramVers)
	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.listen_addr", defaults.Metrics.ListenAddr)
}
