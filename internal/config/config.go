package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTimerSec        = 60
	DefaultConfigModule    = "trunk"
	DefaultApplication     = "qcping"
	DefaultProbeTimeoutSec = 10
	DefaultProbeWorkers    = 1
	DefaultUsername        = "qcping"
	DefaultGroup           = "QC"
	DefaultLogLevel        = "info"
	DefaultLogEncoding     = "console"
	DefaultLogOutput       = "stderr"
	DefaultSampleInitial   = 100
	DefaultSampleAfter     = 100
)

// Sink types.
const (
	SinkLog   = "log"
	SinkCSV   = "csv"
	SinkHTTP  = "http"
	SinkRedis = "redis"
)

// ErrConfiguration marks a configuration that cannot start the monitor.
var ErrConfiguration = errors.New("configuration error")

// Config is the qcping process configuration.
type Config struct {
	Input        string          `yaml:"input"`
	TimerSec     int             `yaml:"timer"`
	Inventory    string          `yaml:"inventory"`
	Bindings     string          `yaml:"bindings,omitempty"`
	ConfigModule string          `yaml:"config_module"`
	Application  string          `yaml:"application"`
	Probe        ProbeConfig     `yaml:"probe"`
	Messaging    MessagingConfig `yaml:"messaging"`
	Sinks        []SinkConfig    `yaml:"sinks,omitempty"`
	Status       StatusConfig    `yaml:"status,omitempty"`
	Log          LogConfig       `yaml:"log"`
}

type ProbeConfig struct {
	TimeoutSec int `yaml:"timeout_sec"`
	Workers    int `yaml:"workers"`
}

type MessagingConfig struct {
	Username string `yaml:"username"`
	Group    string `yaml:"group"`
}

// SinkConfig describes one destination for quality records. Which fields are
// required depends on Type.
type SinkConfig struct {
	Type     string `yaml:"type"`
	Path     string `yaml:"path,omitempty"`
	URL      string `yaml:"url,omitempty"`
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Channel  string `yaml:"channel,omitempty"`
}

type StatusConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

// LogConfig selects level, encoding and destination of the process log.
// Output is "stderr", "stdout" or a file path. Sampling keeps the first
// SampleInitial entries per message and second, then every SampleThereafter-th.
type LogConfig struct {
	Level             string `yaml:"level"`
	Encoding          string `yaml:"encoding"`
	Output            string `yaml:"output,omitempty"`
	Development       bool   `yaml:"development,omitempty"`
	Sampling          bool   `yaml:"sampling,omitempty"`
	SampleInitial     int    `yaml:"sample_initial,omitempty"`
	SampleThereafter  int    `yaml:"sample_thereafter,omitempty"`
	DisableCaller     bool   `yaml:"disable_caller,omitempty"`
	DisableStacktrace bool   `yaml:"disable_stacktrace,omitempty"`
}

// Load reads and parses a YAML config file. Relative paths in the file are
// resolved against the file's directory.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse %s: %v", ErrConfiguration, path, err)
	}

	ApplyDefaults(&cfg)
	ResolvePaths(&cfg, filepath.Dir(path))
	return cfg, nil
}

// Save writes a YAML config file to disk.
func Save(path string, cfg Config) error {
	ApplyDefaults(&cfg)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate reports the first reason cfg cannot be used to start monitoring.
func Validate(cfg Config) error {
	if cfg.Input == "" {
		return fmt.Errorf("%w: no input file given", ErrConfiguration)
	}
	if cfg.Inventory == "" {
		return fmt.Errorf("%w: inventory is required", ErrConfiguration)
	}
	if cfg.TimerSec <= 0 {
		return fmt.Errorf("%w: timer must be positive, got %d", ErrConfiguration, cfg.TimerSec)
	}
	if cfg.Probe.TimeoutSec <= 0 {
		return fmt.Errorf("%w: probe.timeout_sec must be positive", ErrConfiguration)
	}
	for i, s := range cfg.Sinks {
		if err := validateSink(s); err != nil {
			return fmt.Errorf("%w: sinks[%d]: %v", ErrConfiguration, i, err)
		}
	}
	return nil
}

func validateSink(s SinkConfig) error {
	switch s.Type {
	case SinkLog:
		return nil
	case SinkCSV:
		if s.Path == "" {
			return fmt.Errorf("csv sink requires path")
		}
	case SinkHTTP:
		if s.URL == "" {
			return fmt.Errorf("http sink requires url")
		}
	case SinkRedis:
		if s.Addr == "" {
			return fmt.Errorf("redis sink requires addr")
		}
	default:
		return fmt.Errorf("unknown sink type %q", s.Type)
	}
	return nil
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	if cfg.TimerSec == 0 {
		cfg.TimerSec = DefaultTimerSec
	}
	if cfg.Bindings == "" {
		cfg.Bindings = cfg.Inventory
	}
	if cfg.ConfigModule == "" {
		cfg.ConfigModule = DefaultConfigModule
	}
	if cfg.Application == "" {
		cfg.Application = DefaultApplication
	}
	if cfg.Probe.TimeoutSec == 0 {
		cfg.Probe.TimeoutSec = DefaultProbeTimeoutSec
	}
	if cfg.Probe.Workers <= 0 {
		cfg.Probe.Workers = DefaultProbeWorkers
	}
	if cfg.Messaging.Username == "" {
		cfg.Messaging.Username = DefaultUsername
	}
	if cfg.Messaging.Group == "" {
		cfg.Messaging.Group = DefaultGroup
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Encoding == "" {
		cfg.Log.Encoding = DefaultLogEncoding
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = DefaultLogOutput
	}
	for i := range cfg.Sinks {
		if cfg.Sinks[i].Type == SinkRedis && cfg.Sinks[i].Channel == "" {
			cfg.Sinks[i].Channel = cfg.Messaging.Group
		}
	}
}

// ResolvePaths makes the file paths in cfg absolute relative to dir.
func ResolvePaths(cfg *Config, dir string) {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	resolve(&cfg.Input)
	resolve(&cfg.Inventory)
	resolve(&cfg.Bindings)
	for i := range cfg.Sinks {
		if cfg.Sinks[i].Type == SinkCSV {
			resolve(&cfg.Sinks[i].Path)
		}
	}
	if cfg.Log.Output != "stderr" && cfg.Log.Output != "stdout" {
		resolve(&cfg.Log.Output)
	}
}
