// config.go - Konfiguration eines Execution Contexts
//
// Quellen in aufsteigender Prioritaet:
// - Defaults
// - SYSDS_* Environment-Variablen (envconfig)
// - optionale YAML-Datei (LoadConfig)
package sds

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sysds/sysds/api"
	"github.com/sysds/sysds/envconfig"
)

// ByteSize is a memory size that reads and prints in human units ("4GiB").
type ByteSize uint64

func (b ByteSize) String() string {
	if b == 0 {
		return "unlimited"
	}
	return humanize.IBytes(uint64(b))
}

func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	n, err := humanize.ParseBytes(value.Value)
	if err != nil {
		return fmt.Errorf("memory %q: %w", value.Value, err)
	}
	*b = ByteSize(n)
	return nil
}

func (b ByteSize) MarshalYAML() (any, error) {
	return humanize.IBytes(uint64(b)), nil
}

// Config configures a Context.
type Config struct {
	// Host of a running engine. Empty spawns Runner as a subprocess.
	Host string `yaml:"host" validate:"omitempty,url"`
	// Runner is the engine executable.
	Runner  string   `yaml:"runner"`
	WorkDir string   `yaml:"workdir" validate:"omitempty,dir"`
	Memory  ByteSize `yaml:"memory"`

	StartupTimeout time.Duration `yaml:"startup_timeout" validate:"gte=0"`
	NumParallel    int           `yaml:"num_parallel" validate:"gte=1,lte=64"`

	Compression string `yaml:"compression" validate:"oneof=none zstd"`
	ForceDense  bool   `yaml:"force_dense"`

	// History is the path of a submission journal, empty for none.
	History string `yaml:"history"`
	Verbose bool   `yaml:"verbose"`
	// LogLevel overrides SYSDS_DEBUG for the engine subprocess.
	LogLevel slog.Level `yaml:"log_level"`
}

// ConfigFromEnvironment builds a Config from SYSDS_* variables.
func ConfigFromEnvironment() Config {
	cfg := Config{
		Runner:         envconfig.Runner(),
		WorkDir:        envconfig.WorkDir(),
		Memory:         ByteSize(envconfig.Memory()),
		StartupTimeout: envconfig.StartupTimeout(),
		NumParallel:    int(envconfig.NumParallel()),
		Compression:    envconfig.Compression(),
		ForceDense:     envconfig.ForceDense(),
		History:        envconfig.History(),
		LogLevel:       envconfig.LogLevel(),
	}
	cfg.Verbose = cfg.LogLevel < slog.LevelInfo
	if u := envconfig.Host(); u != nil {
		cfg.Host = u.String()
	}
	return cfg
}

// LoadConfig reads a YAML file over the environment configuration.
func LoadConfig(path string) (Config, error) {
	cfg := ConfigFromEnvironment()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		if fe.Param() != "" {
			msgs[i] = fmt.Sprintf("%s: must satisfy %s=%s, got %v", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
		} else {
			msgs[i] = fmt.Sprintf("%s: must satisfy %s, got %v", fe.Field(), fe.Tag(), fe.Value())
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func (c Config) withDefaults() Config {
	if c.NumParallel == 0 {
		c.NumParallel = 1
	}
	if c.Compression == "" {
		c.Compression = api.CompressionNone
	}
	return c
}
