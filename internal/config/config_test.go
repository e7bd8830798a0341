package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

var allVars = []string{EnvJournalDriver, EnvJournalPath, EnvJournalDSN, EnvPolicyFile, EnvKeySeed, EnvLogLevel}

// clearEnv unsets every OFFLINEWALLET_* variable for the test and restores
// the previous values afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range allVars {
		t.Setenv(name, "")
		if err := os.Unsetenv(name); err != nil {
			t.Fatalf("failed to unset %s: %v", name, err)
		}
	}
	// keep a stray .env out of the test (t.Chdir equivalent for go1.21)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvJournalDriver, "postgres")
	t.Setenv(EnvJournalDSN, "postgres://wallet@localhost:5432/wallet?sslmode=disable")
	t.Setenv(EnvPolicyFile, "policy.cue")
	t.Setenv(EnvKeySeed, "a-much-longer-test-seed")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.JournalDriver)
	assert.Equal(t, "postgres://wallet@localhost:5432/wallet?sslmode=disable", cfg.JournalDSN)
	assert.Equal(t, "policy.cue", cfg.PolicyFile)
	assert.Equal(t, "a-much-longer-test-seed", cfg.KeySeed)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "wallet.env")
	content := "OFFLINEWALLET_JOURNAL_DRIVER=memory\nOFFLINEWALLET_LOG_LEVEL=warn\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// Already-set variables win over the file.
	t.Setenv(EnvLogLevel, "error")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.JournalDriver)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoad_DotEnvInWorkingDir(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile(".env", []byte("OFFLINEWALLET_JOURNAL_PATH=from-dotenv.db\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.db", cfg.JournalPath)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		contains []string
	}{
		{
			name:     "unknown driver",
			env:      map[string]string{EnvJournalDriver: "redis"},
			contains: []string{EnvJournalDriver, "must be one of"},
		},
		{
			name:     "postgres without dsn",
			env:      map[string]string{EnvJournalDriver: "postgres"},
			contains: []string{EnvJournalDSN, "is required when driver is postgres"},
		},
		{
			name:     "short seed",
			env:      map[string]string{EnvKeySeed: "tiny"},
			contains: []string{EnvKeySeed, "at least 16"},
		},
		{
			name:     "bad log level",
			env:      map[string]string{EnvLogLevel: "verbose"},
			contains: []string{EnvLogLevel},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, err.Error(), s)
			}
		})
	}
}

func TestValidate_ReportsEveryField(t *testing.T) {
	cfg := Config{JournalDriver: "postgres", KeySeed: "tiny", LogLevel: "loud"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, Config{LogLevel: in}.SlogLevel(), "level %q", in)
	}
}
