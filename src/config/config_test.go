package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"API_URL", "API_KEY", APIKeyPathEnvVar, "DEFAULT_LANGUAGE", "TEXT_MODEL",
	"PREMIUM_TEXT_MODEL", "VISION_MODEL", "OCR_MODEL", "USE_PREMIUM",
	"ENABLE_FILE_LOGGING", "HOTKEY_MODIFIERS", "REGION_COMMAND",
	"VISION_TIMEOUT_SEC", "FALLBACK_TIMEOUT_SEC", "STREAM_CONNECT_TIMEOUT_SEC", "LLM_MAX_ATTEMPTS",
}

// isolate clears every key Load reads so the host environment cannot leak in.
func isolate(t *testing.T) LoadOptions {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	return LoadOptions{
		EnvPathOverride:    filepath.Join(dir, ".env"),
		APIKeyPathOverride: filepath.Join(dir, "missing-key"),
	}
}

func TestLoadDefaults(t *testing.T) {
	opts := isolate(t)

	cfg, err := LoadWithOptions(opts)
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, "English", cfg.DefaultLanguage)
	assert.Equal(t, DefaultTextModel, cfg.TextModel)
	assert.Equal(t, DefaultPremiumTextModel, cfg.PremiumTextModel)
	assert.Equal(t, DefaultVisionModel, cfg.VisionModel)
	assert.Equal(t, DefaultOCRModel, cfg.OCRModel)
	assert.False(t, cfg.UsePremium)
	assert.Equal(t, 60*time.Second, cfg.VisionTimeout)
	assert.Equal(t, 120*time.Second, cfg.FallbackTimeout)
	assert.Equal(t, 10*time.Second, cfg.StreamConnectTimeout)
	assert.Equal(t, 1, cfg.MaxAttempts)
	assert.Empty(t, cfg.APIKey)
	assert.Error(t, cfg.Validate())
}

func TestLoadFromDotenvAndEnvPrecedence(t *testing.T) {
	opts := isolate(t)
	require.NoError(t, godotenv.Write(map[string]string{
		"API_KEY":          "from-file",
		"TEXT_MODEL":       "file-model",
		"DEFAULT_LANGUAGE": "German",
		"USE_PREMIUM":      "true",
	}, opts.EnvPathOverride))
	t.Setenv("TEXT_MODEL", "env-model")

	cfg, err := LoadWithOptions(opts)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.APIKey)
	assert.Equal(t, "env-model", cfg.TextModel)
	assert.Equal(t, "German", cfg.DefaultLanguage)
	assert.True(t, cfg.UsePremium)
	assert.Equal(t, opts.EnvPathOverride, cfg.EnvPath)
	assert.NoError(t, cfg.Validate())
}

func TestAPIKeyFileWins(t *testing.T) {
	opts := isolate(t)
	require.NoError(t, os.WriteFile(opts.APIKeyPathOverride, []byte("  secret-from-file \n"), 0o600))
	t.Setenv("API_KEY", "from-env")

	cfg, err := LoadWithOptions(opts)
	require.NoError(t, err)
	assert.Equal(t, "secret-from-file", cfg.APIKey)
	assert.Equal(t, opts.APIKeyPathOverride, cfg.APIKeyPath)
}

func TestInvalidNumbersFallBack(t *testing.T) {
	opts := isolate(t)
	t.Setenv("VISION_TIMEOUT_SEC", "abc")
	t.Setenv("FALLBACK_TIMEOUT_SEC", "-5")
	t.Setenv("LLM_MAX_ATTEMPTS", "3")

	cfg, err := LoadWithOptions(opts)
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.VisionTimeout)
	assert.Equal(t, 120*time.Second, cfg.FallbackTimeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
}

func TestActiveTextModel(t *testing.T) {
	cfg := Config{TextModel: "std", PremiumTextModel: "pro"}
	assert.Equal(t, "std", cfg.ActiveTextModel())
	cfg.UsePremium = true
	assert.Equal(t, "pro", cfg.ActiveTextModel())
	cfg.PremiumTextModel = ""
	assert.Equal(t, "std", cfg.ActiveTextModel())
}

func TestStoreSetPremiumPersists(t *testing.T) {
	opts := isolate(t)
	require.NoError(t, godotenv.Write(map[string]string{"API_KEY": "k", "TEXT_MODEL": "m"}, opts.EnvPathOverride))

	cfg, err := LoadWithOptions(opts)
	require.NoError(t, err)
	store := NewStore(cfg, opts)

	require.NoError(t, store.SetPremium(true))
	assert.True(t, store.Snapshot().UsePremium)

	values, err := godotenv.Read(opts.EnvPathOverride)
	require.NoError(t, err)
	assert.Equal(t, "true", values["USE_PREMIUM"])
	assert.Equal(t, "k", values["API_KEY"])
	assert.Equal(t, "m", values["TEXT_MODEL"])

	reloaded, err := store.Reload()
	require.NoError(t, err)
	assert.True(t, reloaded.UsePremium)
}

func TestSnapshotIsACopy(t *testing.T) {
	store := NewStore(&Config{TextModel: "a"}, LoadOptions{})
	snap := store.Snapshot()
	snap.TextModel = "b"
	assert.Equal(t, "a", store.Snapshot().TextModel)
}

func TestWatchReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("A=1\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 4)
	require.NoError(t, Watch(ctx, path, func() { changed <- struct{}{} }))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("A=2\n"), 0o600))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("expected change notification")
	}
}

func TestWatchRequiresPath(t *testing.T) {
	assert.Error(t, Watch(context.Background(), "", func() {}))
}
