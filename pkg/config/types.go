package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent fableforge configuration stored as
// config.toml in the .fableforge/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version    int              `toml:"version"`
	Storage    StorageConfig    `toml:"storage"`
	API        APIConfig        `toml:"api"`
	Client     ClientConfig     `toml:"client"`
	Generation GenerationConfig `toml:"generation"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Memory     MemoryConfig     `toml:"memory"`
	Events     EventsConfig     `toml:"events"`
	Speech     SpeechConfig     `toml:"speech"`
	Narrator   NarratorConfig   `toml:"narrator"`
}

// StorageConfig holds conversation store settings.
type StorageConfig struct {
	// SQLitePath is the conversation database path. Empty selects the
	// in-memory store.
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to the running
// API server (e.g. fableforge chat). Values are full URLs.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// GenerationConfig holds generation backend settings.
type GenerationConfig struct {
	// Provider selects the backend: "ollama", "openai", or "assistants".
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`

	// AssistantID is required by the "assistants" provider.
	AssistantID string `toml:"assistant_id,omitempty"`

	// PollIntervalMs is the status check interval for async backends.
	PollIntervalMs uint `toml:"poll_interval_ms,omitempty"`

	// TurnTimeoutS bounds one turn's total generation wait.
	TurnTimeoutS uint `toml:"turn_timeout_s,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// MemoryConfig holds memory index settings.
type MemoryConfig struct {
	// Provider selects the index: "local" or "sqlite".
	Provider string `toml:"provider,omitempty"`

	// SQLitePath is the memory database path for the "sqlite" provider.
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// EventsConfig holds turn event stream settings.
type EventsConfig struct {
	// Provider selects the publisher: "none" or "kafka".
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// SpeechConfig holds text-to-speech enrichment settings.
type SpeechConfig struct {
	Enabled bool   `toml:"enabled,omitempty"`
	Target  string `toml:"target,omitempty"`
	Model   string `toml:"model,omitempty"`
	Voice   string `toml:"voice,omitempty"`
}

// NarratorConfig holds Game Master behavior settings.
type NarratorConfig struct {
	// Preamble is the system rules text recorded as the first turn of
	// every conversation. Empty disables the preamble.
	Preamble string `toml:"preamble,omitempty"`

	// TopK is the number of scenes and facts retrieved per turn.
	TopK uint `toml:"top_k,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"generation.provider": {
		get: func(c *Config) string { return c.Generation.Provider },
		set: func(c *Config, v string) error { c.Generation.Provider = v; return nil },
	},
	"generation.target": {
		get: func(c *Config) string { return c.Generation.Target },
		set: func(c *Config, v string) error { c.Generation.Target = v; return nil },
	},
	"generation.model": {
		get: func(c *Config) string { return c.Generation.Model },
		set: func(c *Config, v string) error { c.Generation.Model = v; return nil },
	},
	"generation.assistant_id": {
		get: func(c *Config) string { return c.Generation.AssistantID },
		set: func(c *Config, v string) error { c.Generation.AssistantID = v; return nil },
	},
	"generation.poll_interval_ms": {
		get: func(c *Config) string { return formatUint(c.Generation.PollIntervalMs) },
		set: func(c *Config, v string) error {
			n, err := parseUint("generation.poll_interval_ms", v)
			if err != nil {
				return err
			}
			c.Generation.PollIntervalMs = n
			return nil
		},
	},
	"generation.turn_timeout_s": {
		get: func(c *Config) string { return formatUint(c.Generation.TurnTimeoutS) },
		set: func(c *Config, v string) error {
			n, err := parseUint("generation.turn_timeout_s", v)
			if err != nil {
				return err
			}
			c.Generation.TurnTimeoutS = n
			return nil
		},
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string { return formatUint(c.Embedding.Dimensions) },
		set: func(c *Config, v string) error {
			n, err := parseUint("embedding.dimensions", v)
			if err != nil {
				return err
			}
			c.Embedding.Dimensions = n
			return nil
		},
	},
	"memory.provider": {
		get: func(c *Config) string { return c.Memory.Provider },
		set: func(c *Config, v string) error { c.Memory.Provider = v; return nil },
	},
	"memory.sqlite_path": {
		get: func(c *Config) string { return c.Memory.SQLitePath },
		set: func(c *Config, v string) error { c.Memory.SQLitePath = v; return nil },
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"speech.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Speech.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for speech.enabled: %w", err)
			}
			c.Speech.Enabled = b
			return nil
		},
	},
	"speech.target": {
		get: func(c *Config) string { return c.Speech.Target },
		set: func(c *Config, v string) error { c.Speech.Target = v; return nil },
	},
	"speech.model": {
		get: func(c *Config) string { return c.Speech.Model },
		set: func(c *Config, v string) error { c.Speech.Model = v; return nil },
	},
	"speech.voice": {
		get: func(c *Config) string { return c.Speech.Voice },
		set: func(c *Config, v string) error { c.Speech.Voice = v; return nil },
	},
	"narrator.preamble": {
		get: func(c *Config) string { return c.Narrator.Preamble },
		set: func(c *Config, v string) error { c.Narrator.Preamble = v; return nil },
	},
	"narrator.top_k": {
		get: func(c *Config) string { return formatUint(c.Narrator.TopK) },
		set: func(c *Config, v string) error {
			n, err := parseUint("narrator.top_k", v)
			if err != nil {
				return err
			}
			c.Narrator.TopK = n
			return nil
		},
	},
}

func formatUint(n uint) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(n), 10)
}

func parseUint(key, v string) (uint, error) {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return uint(n), nil
}
