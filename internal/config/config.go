package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for the agent router.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Server   ServerConfig   `json:"server"`
	Channels ChannelsConfig `json:"channels"`
	Limits   LimitsConfig   `json:"limits"`
	Session  SessionConfig  `json:"session"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"` // debug | info | warn | error
}

type ServerConfig struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Prefix string `json:"prefix"` // mount prefix for all routes
}

type ChannelsConfig struct {
	Slack   SlackConfig   `json:"slack"`
	Discord DiscordConfig `json:"discord"`
	Webhook WebhookConfig `json:"webhook"`
}

type SlackConfig struct {
	Enabled          bool   `json:"enabled"`
	SigningSecret    string `json:"signingSecret"`
	ToleranceSeconds int    `json:"toleranceSeconds,omitempty"` // replay window, default 300
}

type DiscordConfig struct {
	Enabled   bool   `json:"enabled"`
	PublicKey string `json:"publicKey"` // hex-encoded Ed25519 public key
}

type WebhookConfig struct {
	Enabled bool `json:"enabled"`
}

type LimitsConfig struct {
	RequestsPerMinute int   `json:"requestsPerMinute"` // 0 disables rate limiting
	MaxBodyBytes      int64 `json:"maxBodyBytes"`
}

type SessionConfig struct {
	MaxHistory int `json:"maxHistory"` // turns kept per conversation
}

// Defaults returns a config that works without any file: webhook enabled,
// Slack and Discord disabled until their secret material is configured.
func Defaults() *Config {
	return &Config{
		General: GeneralConfig{LogLevel: "info"},
		Server:  ServerConfig{Host: "0.0.0.0", Port: 8080, Prefix: "/agent"},
		Channels: ChannelsConfig{
			Slack:   SlackConfig{ToleranceSeconds: 300},
			Discord: DiscordConfig{},
			Webhook: WebhookConfig{Enabled: true},
		},
		Limits:  LimitsConfig{RequestsPerMinute: 0, MaxBodyBytes: 1 << 20},
		Session: SessionConfig{MaxHistory: 50},
	}
}

// DefaultConfigDir returns the default config directory (~/.agentrouter).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentrouter"
	}
	return filepath.Join(home, ".agentrouter")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := groups[2]
		// ${VAR:-} is a present (empty) default, so check for the
		// separator rather than a non-empty capture.
		hasDefault := strings.Contains(match, ":-")

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if cfg.Server.Prefix != "" && !strings.HasPrefix(cfg.Server.Prefix, "/") {
		errs = append(errs, "server.prefix must start with /")
	}

	if cfg.Channels.Slack.ToleranceSeconds < 0 {
		errs = append(errs, "channels.slack.toleranceSeconds must be >= 0")
	}
	if key := cfg.Channels.Discord.PublicKey; cfg.Channels.Discord.Enabled && key != "" && len(key) != 64 {
		errs = append(errs, "channels.discord.publicKey must be a 64-character hex string")
	}

	if cfg.Limits.RequestsPerMinute < 0 {
		errs = append(errs, "limits.requestsPerMinute must be >= 0")
	}
	if cfg.Limits.MaxBodyBytes < 1024 {
		errs = append(errs, "limits.maxBodyBytes must be >= 1024")
	}
	if cfg.Session.MaxHistory < 1 {
		errs = append(errs, "session.maxHistory must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
