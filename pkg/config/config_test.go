package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	return path
}

func isolateEnv(t *testing.T) {
	t.Helper()

	t.Setenv(envDotEnvPath, "")
	t.Setenv(envApps, "")
	t.Setenv(envStorePath, "")
	t.Setenv(envTelegramBotToken, "")
	t.Setenv(envTelegramAllowFrom, "")
	t.Chdir(t.TempDir())
}

func TestLoadConfigFromEnvPath(t *testing.T) {
	isolateEnv(t)

	path := writeConfig(t, `{
	  "apps": ["echo", "registration"],
	  "channels": {
	    "telegram": {},
	    "http": {"enabled": true, "port": 8080},
	    "websocket": {"enabled": true, "port": 8081, "allowed_origins": ["https://example.test"]}
	  },
	  "store": {"path": "data/contacts.db"},
	  "gateway": {"host": "0.0.0.0", "port": 18790},
	  "logging": {"format": "json", "level": "debug", "add_source": true}
	}`)
	t.Setenv(envConfigPath, path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if !reflect.DeepEqual(cfg.Apps, []string{"echo", "registration"}) {
		t.Fatalf("apps = %#v, want [echo registration]", cfg.Apps)
	}
	if !cfg.Channels.HTTP.Enabled || cfg.Channels.HTTP.Port != 8080 {
		t.Fatalf("channels.http = %+v", cfg.Channels.HTTP)
	}
	if !cfg.Channels.WebSocket.Enabled || cfg.Channels.WebSocket.Port != 8081 {
		t.Fatalf("channels.websocket = %+v", cfg.Channels.WebSocket)
	}
	if !reflect.DeepEqual(cfg.Channels.WebSocket.AllowedOrigins, []string{"https://example.test"}) {
		t.Fatalf("channels.websocket.allowed_origins = %#v", cfg.Channels.WebSocket.AllowedOrigins)
	}
	if cfg.Store.Path != "data/contacts.db" {
		t.Fatalf("store.path = %q, want %q", cfg.Store.Path, "data/contacts.db")
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("logging.format = %q, want %q", cfg.Logging.Format, "json")
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging.level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if !cfg.Logging.AddSource {
		t.Fatal("logging.add_source = false, want true")
	}
}

func TestLoadConfigInvalidEnvPath(t *testing.T) {
	isolateEnv(t)
	t.Setenv(envConfigPath, filepath.Join(t.TempDir(), "missing.json"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config path")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	isolateEnv(t)

	path := writeConfig(t, `{"apps": ["echo"], "channels": {"telegram": {"enabled": true}}}`)
	t.Setenv(envConfigPath, path)
	t.Setenv(envTelegramBotToken, "123:abc")
	t.Setenv(envTelegramAllowFrom, " 1, ,2 ")
	t.Setenv(envApps, "ping, sum")
	t.Setenv(envStorePath, "/tmp/contacts.db")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Channels.Telegram.Token != "123:abc" {
		t.Fatalf("telegram.token = %q, want %q", cfg.Channels.Telegram.Token, "123:abc")
	}
	if !reflect.DeepEqual(cfg.Channels.Telegram.AllowFrom, []string{"1", "2"}) {
		t.Fatalf("telegram.allow_from = %#v, want [1 2]", cfg.Channels.Telegram.AllowFrom)
	}
	if !reflect.DeepEqual(cfg.Apps, []string{"ping", "sum"}) {
		t.Fatalf("apps = %#v, want [ping sum]", cfg.Apps)
	}
	if cfg.Store.Path != "/tmp/contacts.db" {
		t.Fatalf("store.path = %q, want %q", cfg.Store.Path, "/tmp/contacts.db")
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	isolateEnv(t)

	dir := t.TempDir()
	dotEnv := filepath.Join(dir, "test.env")
	if err := os.WriteFile(dotEnv, []byte("SMSROUTER_APPS=echo,ping\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv(envDotEnvPath, dotEnv)
	t.Setenv(envConfigPath, writeConfig(t, `{}`))
	// godotenv does not override variables that are already present.
	if err := os.Unsetenv(envApps); err != nil {
		t.Fatalf("unset %s: %v", envApps, err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if !reflect.DeepEqual(cfg.Apps, []string{"echo", "ping"}) {
		t.Fatalf("apps = %#v, want [echo ping]", cfg.Apps)
	}
}

func TestLoadConfigMissingExplicitDotEnv(t *testing.T) {
	isolateEnv(t)
	t.Setenv(envDotEnvPath, filepath.Join(t.TempDir(), "absent.env"))
	t.Setenv(envConfigPath, writeConfig(t, `{}`))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing explicit .env file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "telegram without token", cfg: Config{Channels: ChannelsConfig{Telegram: TelegramConfig{Enabled: true}}}},
		{name: "gateway port out of range", cfg: Config{Gateway: GatewayConfig{Port: 70000}}},
		{name: "unknown log format", cfg: Config{Logging: LoggingConfig{Format: "xml"}}},
		{name: "negative outbox", cfg: Config{Channels: ChannelsConfig{HTTP: HTTPConfig{OutboxSize: -1}}}},
		{name: "websocket port out of range", cfg: Config{Channels: ChannelsConfig{WebSocket: WebSocketConfig{Port: -1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	valid := Config{Channels: ChannelsConfig{Telegram: TelegramConfig{Enabled: true, Token: "t"}}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}
