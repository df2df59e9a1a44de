// Package config loads podgen's configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (PODGEN_*)
//  3. Configuration file (.podgen.yaml)
//  4. Default values (lowest priority)
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/alexhholmes/pod/errors"
)

// DefaultFile is the config file looked up in the working directory
const DefaultFile = ".podgen.yaml"

// Config represents the podgen configuration
type Config struct {
	// PtrSize is the target word size in bytes used to lay out int, uint,
	// uintptr and pointer fields
	PtrSize int `mapstructure:"ptr_size" validate:"oneof=4 8" yaml:"ptr_size"`

	// RelaxedPointers accepts pointer fields as raw addresses.
	// Default: false
	RelaxedPointers bool `mapstructure:"relaxed_pointers" yaml:"relaxed_pointers"`

	// Output is the directory generated files are written to.
	// Empty writes next to each input file.
	Output string `mapstructure:"output" yaml:"output"`

	// Suffix replaces ".go" in the input file name
	// Default: "_pod.go"
	Suffix string `mapstructure:"suffix" validate:"required,endswith=.go" yaml:"suffix"`

	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	// Level is the minimum log level to output
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: console, json
	Format string `mapstructure:"format" validate:"required,oneof=console json" yaml:"format"`
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		PtrSize: 8,
		Suffix:  "_pod.go",
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// flagKeys maps CLI flag names to config keys
var flagKeys = map[string]string{
	"ptr-size":         "ptr_size",
	"relaxed-pointers": "relaxed_pointers",
	"output":           "output",
	"suffix":           "suffix",
	"log-level":        "logging.level",
	"log-format":       "logging.format",
}

// Load loads configuration from file, environment, flags, and defaults.
// An empty configPath looks for DefaultFile in the working directory; a
// missing default file is not an error. flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setupViper(v)

	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}
	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "create config decoder")
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "decode config")
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setupViper registers defaults and environment variable support.
// Environment variables use the PODGEN_ prefix and underscores,
// e.g. PODGEN_RELAXED_POINTERS=true or PODGEN_LOGGING_LEVEL=debug.
func setupViper(v *viper.Viper) {
	d := Default()
	v.SetDefault("ptr_size", d.PtrSize)
	v.SetDefault("relaxed_pointers", d.RelaxedPointers)
	v.SetDefault("output", d.Output)
	v.SetDefault("suffix", d.Suffix)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetEnvPrefix("PODGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "bind flag --"+name)
		}
	}
	return nil
}

func readConfigFile(v *viper.Viper, configPath string) error {
	explicit := configPath != ""
	if !explicit {
		configPath = DefaultFile
	}
	if _, err := os.Stat(configPath); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "configuration file "+configPath)
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read config file "+configPath)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the resolved configuration
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var msgs []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			msgs = append(msgs, err.Error())
		}
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("invalid configuration: %s", strings.Join(msgs, "; ")).
			Cause(err).
			Build()
	}
	return nil
}
