package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/fableforge/fableforge/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the FABLEFORGE_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (FABLEFORGE_API_LISTEN, FABLEFORGE_GENERATION_MODEL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: FABLEFORGE_API_LISTEN, FABLEFORGE_MEMORY_PROVIDER, etc.
	v.SetEnvPrefix("FABLEFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Client
	v.SetDefault("client.api_target", d.Client.APITarget)

	// Generation
	v.SetDefault("generation.provider", d.Generation.Provider)
	v.SetDefault("generation.target", d.Generation.Target)
	v.SetDefault("generation.model", d.Generation.Model)
	v.SetDefault("generation.assistant_id", d.Generation.AssistantID)
	v.SetDefault("generation.poll_interval_ms", d.Generation.PollIntervalMs)
	v.SetDefault("generation.turn_timeout_s", d.Generation.TurnTimeoutS)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	// Memory
	v.SetDefault("memory.provider", d.Memory.Provider)
	v.SetDefault("memory.sqlite_path", d.Memory.SQLitePath)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// Speech
	v.SetDefault("speech.enabled", d.Speech.Enabled)
	v.SetDefault("speech.target", d.Speech.Target)
	v.SetDefault("speech.model", d.Speech.Model)
	v.SetDefault("speech.voice", d.Speech.Voice)

	// Narrator
	v.SetDefault("narrator.preamble", d.Narrator.Preamble)
	v.SetDefault("narrator.top_k", d.Narrator.TopK)
}
