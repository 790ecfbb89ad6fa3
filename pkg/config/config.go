package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	envConfigPath        = "SMSROUTER_CONFIG"
	envDotEnvPath        = "SMSROUTER_DOTENV"
	envApps              = "SMSROUTER_APPS"
	envStorePath         = "SMSROUTER_STORE_PATH"
	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	envTelegramAllowFrom = "TELEGRAM_ALLOW_FROM"
)

// envOverrides lists the settings that may come from the environment.
type envOverrides struct {
	TelegramBotToken  string   `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramAllowFrom []string `envconfig:"TELEGRAM_ALLOW_FROM"`
	Apps              []string `envconfig:"SMSROUTER_APPS"`
	StorePath         string   `envconfig:"SMSROUTER_STORE_PATH"`
}

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Apps     []string       `json:"apps"`
	Channels ChannelsConfig `json:"channels"`
	Store    StoreConfig    `json:"store"`
	Bus      BusConfig      `json:"bus,omitempty"`
	Gateway  GatewayConfig  `json:"gateway"`
	Logging  LoggingConfig  `json:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty" validate:"omitempty,oneof=text json"`
	Level     string `json:"level,omitempty" validate:"omitempty,oneof=debug info warn warning error"`
	AddSource bool   `json:"add_source,omitempty"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram  TelegramConfig  `json:"telegram"`
	HTTP      HTTPConfig      `json:"http"`
	WebSocket WebSocketConfig `json:"websocket"`
}

// TelegramConfig configures Telegram channel integration.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token" validate:"required_if=Enabled true"`
	AllowFrom []string `json:"allow_from"`
}

// HTTPConfig configures the HTTP SMS webhook channel.
type HTTPConfig struct {
	Enabled    bool   `json:"enabled"`
	Host       string `json:"host"`
	Port       int    `json:"port" validate:"min=0,max=65535"`
	OutboxSize int    `json:"outbox_size" validate:"min=0"`
}

// WebSocketConfig configures the websocket channel used by browser clients.
type WebSocketConfig struct {
	Enabled        bool     `json:"enabled"`
	Host           string   `json:"host"`
	Port           int      `json:"port" validate:"min=0,max=65535"`
	SendBuffer     int      `json:"send_buffer" validate:"min=0"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// StoreConfig locates the SQLite database used by the registration app.
type StoreConfig struct {
	Path string `json:"path"`
}

// BusConfig sizes the outbound message queue.
type BusConfig struct {
	BufferSize int `json:"buffer_size" validate:"min=0"`
}

// GatewayConfig configures HTTP status server bind settings.
type GatewayConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port" validate:"min=0,max=65535"`
	AllowedOrigins []string `json:"allowed_origins"`
}

var validate = validator.New()

// LoadConfig resolves config.json, unmarshals it, applies environment
// overrides, and validates the result.
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints declared on the config structs.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// loadDotEnv loads variables from a .env file without overriding values that
// are already set. A missing default .env file is not an error.
func loadDotEnv() error {
	path := strings.TrimSpace(os.Getenv(envDotEnvPath))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
// Blank values leave the file setting untouched.
func applyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("read environment overrides: %w", err)
	}

	if token := strings.TrimSpace(env.TelegramBotToken); token != "" {
		cfg.Channels.Telegram.Token = token
	}

	if allowFrom := compact(env.TelegramAllowFrom); len(allowFrom) > 0 {
		cfg.Channels.Telegram.AllowFrom = allowFrom
	}

	if apps := compact(env.Apps); len(apps) > 0 {
		cfg.Apps = apps
	}

	if storePath := strings.TrimSpace(env.StorePath); storePath != "" {
		cfg.Store.Path = storePath
	}

	return nil
}

// compact trims values and drops blanks.
func compact(parts []string) []string {
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is SMSROUTER_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("config.json not found (checked %s and %s)", candidates[0], candidates[1])
}
