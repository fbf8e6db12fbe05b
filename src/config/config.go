package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIKeyPath = "/run/secrets/api_keys/llm-assistant"
	APIKeyPathEnvVar  = "API_KEY_FILE"
	EnvPathEnvVar     = "LLM_ASSISTANT_ENV"

	DefaultAPIURL           = "https://nano-gpt.com/api/v1/chat/completions"
	DefaultLanguage         = "English"
	DefaultTextModel        = "deepseek-ai/deepseek-v3.2-exp"
	DefaultPremiumTextModel = "gpt-5-chat-latest"
	DefaultVisionModel      = "zai-org/GLM-4.5V-FP8"
	DefaultOCRModel         = "zai-org/GLM-4.5V-FP8"
	DefaultHotkeyModifiers  = "Ctrl+Shift"

	premiumKey = "USE_PREMIUM"
)

type LoadOptions struct {
	APIKeyPathOverride string
	EnvPathOverride    string
}

// Config is a plain value. Runs receive a copy taken when they are created, so
// a reload never changes the parameters of a run that is already in flight.
type Config struct {
	APIURL     string
	APIKey     string
	APIKeyPath string
	// EnvPath is the .env file the values were read from ("" when none was found).
	EnvPath string

	DefaultLanguage  string
	TextModel        string
	PremiumTextModel string
	VisionModel      string
	OCRModel         string
	UsePremium       bool

	EnableFileLogging bool
	HotkeyModifiers   string
	RegionCommand     string

	VisionTimeout        time.Duration
	FallbackTimeout      time.Duration
	StreamConnectTimeout time.Duration
	MaxAttempts          int
}

// ActiveTextModel returns the premium or the standard text model depending on the toggle.
func (c Config) ActiveTextModel() string {
	if c.UsePremium && c.PremiumTextModel != "" {
		return c.PremiumTextModel
	}
	return c.TextModel
}

// Validate reports settings without which no operation can reach the endpoint.
func (c Config) Validate() error {
	var problems []string
	if c.APIURL == "" {
		problems = append(problems, "API_URL is empty")
	}
	if c.APIKey == "" {
		problems = append(problems, fmt.Sprintf("API key missing (checked %s and API_KEY)", c.APIKeyPath))
	}
	if c.TextModel == "" {
		problems = append(problems, "TEXT_MODEL is empty")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order: process environment, then the .env file found by
	// resolveEnvPath, then built-in defaults.
	envPath := resolveEnvPath(opts)
	dotenvValues, err := readDotenvValues(envPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", envPath, err)
	}
	get := func(key string) string {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(dotenvValues[key])
	}

	apiKeyPath := resolveAPIKeyPath(opts, get)

	cfg := &Config{
		APIURL:               withDefault(get("API_URL"), DefaultAPIURL),
		APIKey:               resolveAPIKey(apiKeyPath, get),
		APIKeyPath:           apiKeyPath,
		EnvPath:              envPath,
		DefaultLanguage:      withDefault(get("DEFAULT_LANGUAGE"), DefaultLanguage),
		TextModel:            withDefault(get("TEXT_MODEL"), DefaultTextModel),
		PremiumTextModel:     withDefault(get("PREMIUM_TEXT_MODEL"), DefaultPremiumTextModel),
		VisionModel:          withDefault(get("VISION_MODEL"), DefaultVisionModel),
		OCRModel:             withDefault(get("OCR_MODEL"), DefaultOCRModel),
		UsePremium:           parseBool(get(premiumKey)),
		EnableFileLogging:    parseBool(get("ENABLE_FILE_LOGGING")),
		HotkeyModifiers:      withDefault(get("HOTKEY_MODIFIERS"), DefaultHotkeyModifiers),
		RegionCommand:        get("REGION_COMMAND"),
		VisionTimeout:        seconds(get("VISION_TIMEOUT_SEC"), 60),
		FallbackTimeout:      seconds(get("FALLBACK_TIMEOUT_SEC"), 120),
		StreamConnectTimeout: seconds(get("STREAM_CONNECT_TIMEOUT_SEC"), 10),
		MaxAttempts:          positiveInt(get("LLM_MAX_ATTEMPTS"), 1),
	}

	return cfg, nil
}

// DefaultEnvPath is where the .env lives when none exists next to the executable.
func DefaultEnvPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "llm-assistant", ".env")
}

func resolveEnvPath(opts LoadOptions) string {
	if p := strings.TrimSpace(opts.EnvPathOverride); p != "" {
		return p
	}

	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	if p := DefaultEnvPath(); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

func readDotenvValues(envPath string) (map[string]string, error) {
	if envPath == "" {
		return map[string]string{}, nil
	}

	values, err := godotenv.Read(envPath)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return values, nil
}

func resolveAPIKeyPath(opts LoadOptions, get func(string) string) string {
	keyPath := DefaultAPIKeyPath

	if p := get(APIKeyPathEnvVar); p != "" {
		keyPath = p
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

func resolveAPIKey(keyPath string, get func(string) string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}

	return get("API_KEY")
}

func withDefault(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.ToLower(v))
	return err == nil && b
}

func positiveInt(v string, def int) int {
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return def
}

func seconds(v string, def int) time.Duration {
	return time.Duration(positiveInt(v, def)) * time.Second
}
