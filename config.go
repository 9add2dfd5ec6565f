package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const maxSimulatorQubits = 24

// Config is the runtime configuration of cqrun. It is read from a TOML file,
// or YAML when the file has a .yaml/.yml extension.
type Config struct {
	Log       LogConfig       `toml:"log" yaml:"log"`
	Simulator SimulatorConfig `toml:"simulator" yaml:"simulator"`
	Output    OutputConfig    `toml:"output" yaml:"output"`
	Metrics   MetricsConfig   `toml:"metrics" yaml:"metrics"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

type SimulatorConfig struct {
	// Seed for measurement sampling. Zero picks a time-based seed.
	Seed      uint64 `toml:"seed" yaml:"seed"`
	MaxQubits int    `toml:"max_qubits" yaml:"max_qubits"`
}

type OutputConfig struct {
	Format string `toml:"format" yaml:"format"`
}

type MetricsConfig struct {
	// Address to serve /metrics on. Empty disables the endpoint.
	Address string `toml:"address" yaml:"address"`
}

func DefaultConfig() *Config {
	return &Config{
		Log:       LogConfig{Level: "info", Format: "console"},
		Simulator: SimulatorConfig{MaxQubits: 16},
		Output:    OutputConfig{Format: FormatText},
	}
}

// LoadConfig reads the file at path over the defaults. An empty path returns
// the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
	default:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Errorf("%s: unknown key %q", path, undecoded[0].String())
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return errors.Errorf("unknown log format %q", c.Log.Format)
	}
	switch c.Output.Format {
	case FormatJSON, FormatYAML, FormatText:
	default:
		return errors.Errorf("unknown output format %q", c.Output.Format)
	}
	if c.Simulator.MaxQubits < 1 || c.Simulator.MaxQubits > maxSimulatorQubits {
		return errors.Errorf("simulator.max_qubits must be in [1, %d], got %d",
			maxSimulatorQubits, c.Simulator.MaxQubits)
	}
	return nil
}
