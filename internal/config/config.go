// Package config provides process configuration for a parley agent.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Peers maps agent names to their base URLs. It decodes from
// "person_b=http://localhost:10002,person_c=http://localhost:10003".
type Peers map[string]string

// Decode implements envconfig.Decoder.
func (p *Peers) Decode(value string) error {
	out := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, url, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		url = strings.TrimSpace(url)
		if !ok || name == "" || url == "" {
			return fmt.Errorf("invalid peer entry %q, want name=url", pair)
		}
		out[name] = url
	}
	*p = out
	return nil
}

// Config holds everything a single agent process needs. It is built once
// at startup and passed by reference into each component; nothing here is
// mutated after Load returns.
type Config struct {
	AgentName   string `envconfig:"AGENT_NAME" default:"person_a"`
	DisplayName string `envconfig:"DISPLAY_NAME"`
	Description string `envconfig:"DESCRIPTION" default:"Personal scheduling agent"`

	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port int    `envconfig:"PORT" default:"10001"`

	// Peers this agent may contact. Agents with no peers get no
	// orchestration tools and can only answer about their own calendar.
	Peers Peers `envconfig:"PEERS"`

	CalendarPath string `envconfig:"CALENDAR_PATH" default:"./data/calendar.db"`
	SoulPath     string `envconfig:"SOUL_PATH"`
	ContextPath  string `envconfig:"CONTEXT_PATH"`

	OpenAIKey   string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel string `envconfig:"OPENAI_MODEL" default:"gpt-5.2"`

	// CallTimeout bounds one outbound inter-agent call.
	CallTimeout time.Duration `envconfig:"CALL_TIMEOUT" default:"180s"`
	// MaxTurns bounds reasoning-engine invocations per run.
	MaxTurns int `envconfig:"MAX_TURNS" default:"50"`

	// TaskStoreURL selects the relay's task store backend. Empty means
	// in-memory; a redis:// URL selects the Redis backend.
	TaskStoreURL string `envconfig:"TASK_STORE_URL"`
	// NATSURL enables the event mirror when set.
	NATSURL string `envconfig:"NATS_URL"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from PARLEY_-prefixed environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("parley", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = cfg.AgentName
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks that required fields are usable.
func (c *Config) Validate() error {
	if c.AgentName == "" {
		return fmt.Errorf("PARLEY_AGENT_NAME cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PARLEY_PORT out of range: %d", c.Port)
	}
	if c.CalendarPath == "" {
		return fmt.Errorf("PARLEY_CALENDAR_PATH cannot be empty")
	}
	if c.MaxTurns <= 0 {
		return fmt.Errorf("PARLEY_MAX_TURNS must be > 0")
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("PARLEY_CALL_TIMEOUT must be > 0")
	}
	for name, url := range c.Peers {
		if name == c.AgentName {
			return fmt.Errorf("agent cannot be its own peer: %s", name)
		}
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return fmt.Errorf("peer %s has non-HTTP URL %q", name, url)
		}
	}
	return nil
}

// BaseURL is the externally reachable address advertised on the agent card.
func (c *Config) BaseURL() string {
	host := c.Host
	if host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Port)
}
