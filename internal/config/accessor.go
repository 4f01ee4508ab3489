package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Accessor methods exposing the parts of the config the channel dispatchers
// consume. *Config satisfies channel.Settings.

func (c *Config) SlackEnabled() bool { return c.Channels.Slack.Enabled }

func (c *Config) SlackSigningSecret() string { return c.Channels.Slack.SigningSecret }

// SlackTolerance returns the configured replay window, defaulting to 300s.
func (c *Config) SlackTolerance() time.Duration {
	if c.Channels.Slack.ToleranceSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.Channels.Slack.ToleranceSeconds) * time.Second
}

func (c *Config) DiscordEnabled() bool { return c.Channels.Discord.Enabled }

func (c *Config) DiscordPublicKey() string { return c.Channels.Discord.PublicKey }

func (c *Config) WebhookEnabled() bool { return c.Channels.Webhook.Enabled }

// GetByPath retrieves a config value by dot-notation path
// (e.g. "channels.slack.enabled"). Used by the config CLI command.
func GetByPath(cfg *Config, path string) (any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	var current any = m
	for _, key := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cannot traverse into %T at %s", current, key)
		}
		val, ok := obj[key]
		if !ok {
			return nil, fmt.Errorf("key not found: %s", path)
		}
		current = val
	}
	return current, nil
}
