package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/ecsact-runtime/errors"
)

const sample = `
runtimeLibraryPaths:
  - build/libcore.so
  - build/libasync.so
useAsyncRunner: true
asyncRunnerInterval: 20ms
defaultRegistries: [main, preview]
logLevel: debug
metricsAddress: 127.0.0.1:9464
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	s := Default()
	assert.Equal(t, DefaultAsyncRunnerInterval, s.AsyncRunnerInterval)
	assert.False(t, s.UseAsyncRunner)
	require.NoError(t, s.Validate())

	level, err := s.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, level)
}

func TestLoadYAML(t *testing.T) {
	s, err := LoadYAML(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, []string{"build/libcore.so", "build/libasync.so"}, s.RuntimeLibraryPaths)
	assert.True(t, s.UseAsyncRunner)
	assert.Equal(t, 20*time.Millisecond, s.AsyncRunnerInterval)
	assert.Equal(t, []string{"main", "preview"}, s.DefaultRegistries)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, "127.0.0.1:9464", s.MetricsAddress)
	require.NoError(t, s.Validate())
}

func TestLoadYAMLKeepsDefaults(t *testing.T) {
	s, err := LoadYAML(strings.NewReader("useAsyncRunner: true\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultAsyncRunnerInterval, s.AsyncRunnerInterval)

	s, err = LoadYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestLoadYAMLRejectsUnknownKeys(t *testing.T) {
	_, err := LoadYAML(strings.NewReader("runtimeLibraries: [a]\n"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}

func TestLoadAppliesEnvironment(t *testing.T) {
	path := writeFile(t, "ecsact.yaml", sample)
	t.Setenv("ECSACT_LOG_LEVEL", "warn")
	t.Setenv("ECSACT_DEFAULT_REGISTRIES", "a;b;c")
	t.Setenv("ECSACT_ASYNC_RUNNER_INTERVAL", "5ms")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", s.LogLevel)
	assert.Equal(t, []string{"a", "b", "c"}, s.DefaultRegistries)
	assert.Equal(t, 5*time.Millisecond, s.AsyncRunnerInterval)
	assert.Equal(t, []string{"build/libcore.so", "build/libasync.so"}, s.RuntimeLibraryPaths)
}

func TestLoadReadsEnvFile(t *testing.T) {
	const key = "ECSACT_METRICS_ADDRESS"
	prev, had := os.LookupEnv(key)
	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() {
		if had {
			os.Setenv(key, prev)
		} else {
			os.Unsetenv(key)
		}
	})

	env := writeFile(t, ".env", key+"=0.0.0.0:9000\n")
	s, err := Load("", filepath.Join(t.TempDir(), "missing.env"), env)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", s.MetricsAddress)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindLoadFailure))
}

func TestLoadRejectsBadEnvironment(t *testing.T) {
	t.Setenv("ECSACT_USE_ASYNC_RUNNER", "sometimes")
	_, err := Load("")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
		ok     bool
	}{
		{name: "defaults", modify: func(*Settings) {}, ok: true},
		{name: "empty library path", modify: func(s *Settings) { s.RuntimeLibraryPaths = []string{"a.so", ""} }},
		{name: "empty registry name", modify: func(s *Settings) { s.DefaultRegistries = []string{""} }},
		{name: "duplicate registry", modify: func(s *Settings) { s.DefaultRegistries = []string{"main", "main"} }},
		{name: "runner without interval", modify: func(s *Settings) {
			s.UseAsyncRunner = true
			s.AsyncRunnerInterval = 0
		}},
		{name: "interval unused without runner", modify: func(s *Settings) { s.AsyncRunnerInterval = 0 }, ok: true},
		{name: "bad log level", modify: func(s *Settings) { s.LogLevel = "loud" }},
		{name: "empty log level", modify: func(s *Settings) { s.LogLevel = "" }, ok: true},
		{name: "bad metrics address", modify: func(s *Settings) { s.MetricsAddress = "9464" }},
		{name: "metrics port only", modify: func(s *Settings) { s.MetricsAddress = ":9464" }, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.modify(s)
			err := s.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
		})
	}
}

func TestString(t *testing.T) {
	s := Default()
	s.DefaultRegistries = []string{"main"}
	out := s.String()
	assert.Contains(t, out, "defaultRegistries:")
	assert.Contains(t, out, "main")
}
