// Package config loads runtime settings.
//
// Settings come from a YAML file, then from an optional .env file, then from
// ECSACT_* environment variables, each layer overriding the previous one:
//
//	runtimeLibraryPaths:
//	  - build/libcore.so
//	  - build/libasync.so
//	useAsyncRunner: true
//	asyncRunnerInterval: 16ms
//	defaultRegistries: [main, preview]
//	logLevel: info
//	metricsAddress: 127.0.0.1:9464
//
// List values in the environment are separated by ';'.
package config

import (
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/ecsact-runtime/errors"
)

// DefaultAsyncRunnerInterval is the runner tick used when none is configured.
const DefaultAsyncRunnerInterval = 16 * time.Millisecond

// Settings configures which runtime libraries are loaded and how the host
// drives them.
type Settings struct {
	// RuntimeLibraryPaths are loaded in order. A later library overrides
	// entry points of an earlier one.
	RuntimeLibraryPaths []string `yaml:"runtimeLibraryPaths" env:"ECSACT_RUNTIME_LIBRARY_PATHS"`

	// UseAsyncRunner flushes async events on every tick.
	UseAsyncRunner bool `yaml:"useAsyncRunner" env:"ECSACT_USE_ASYNC_RUNNER"`

	// AsyncRunnerInterval is the tick period of the async runner.
	AsyncRunnerInterval time.Duration `yaml:"asyncRunnerInterval" env:"ECSACT_ASYNC_RUNNER_INTERVAL"`

	// DefaultRegistries are created by name when the runtime is loaded.
	DefaultRegistries []string `yaml:"defaultRegistries" env:"ECSACT_DEFAULT_REGISTRIES"`

	LogLevel       string `yaml:"logLevel" env:"ECSACT_LOG_LEVEL"`
	MetricsAddress string `yaml:"metricsAddress" env:"ECSACT_METRICS_ADDRESS"`
}

// Default returns settings with every optional field at its default.
func Default() *Settings {
	return &Settings{
		AsyncRunnerInterval: DefaultAsyncRunnerInterval,
		LogLevel:            "info",
	}
}

// Load reads settings from the YAML file at path, applies envFiles and the
// environment, and validates the result. An empty path skips the file;
// missing env files are ignored.
func Load(path string, envFiles ...string) (*Settings, error) {
	s := Default()
	if path != "" {
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindLoadFailure, err, path)
		}
		defer f.Close()
		if err := s.decode(f); err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, path)
		}
	}

	for _, env := range envFiles {
		if err := godotenv.Load(env); err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindLoadFailure, err, env)
		}
	}

	if err := s.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadYAML decodes settings from r over the defaults. Unknown keys are
// rejected.
func LoadYAML(r io.Reader) (*Settings, error) {
	s := Default()
	if err := s.decode(r); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "yaml")
	}
	return s, nil
}

func (s *Settings) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !stderrors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from ECSACT_* environment variables. Unset
// variables leave their field untouched.
func (s *Settings) ApplyEnv() error {
	if err := envdecode.Decode(s); err != nil && !stderrors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "environment")
	}
	return nil
}

// Validate checks the settings for values the runtime cannot use.
func (s *Settings) Validate() error {
	for i, p := range s.RuntimeLibraryPaths {
		if p == "" {
			return invalid("runtimeLibraryPaths[%d] is empty", i)
		}
	}
	seen := make(map[string]bool, len(s.DefaultRegistries))
	for _, name := range s.DefaultRegistries {
		if name == "" {
			return invalid("defaultRegistries contains an empty name")
		}
		if seen[name] {
			return invalid("defaultRegistries lists %q twice", name)
		}
		seen[name] = true
	}
	if s.UseAsyncRunner && s.AsyncRunnerInterval <= 0 {
		return invalid("asyncRunnerInterval must be positive, got %s", s.AsyncRunnerInterval)
	}
	if _, err := s.Level(); err != nil {
		return invalid("logLevel: %v", err)
	}
	if s.MetricsAddress != "" {
		if _, _, err := net.SplitHostPort(s.MetricsAddress); err != nil {
			return invalid("metricsAddress: %v", err)
		}
	}
	return nil
}

// Level returns the parsed log level. An empty level is info.
func (s *Settings) Level() (zapcore.Level, error) {
	if s.LogLevel == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(s.LogLevel)
}

func invalid(format string, args ...any) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Detail(format, args...).
		Build()
}

// String renders the settings as YAML.
func (s *Settings) String() string {
	b, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Sprintf("%+v", *s)
	}
	return string(b)
}
