package config

const (
	defaultAPIListen       = ":8787"
	defaultClientAPITarget = "http://localhost:8787"

	defaultGenerationProvider = "ollama"
	defaultGenerationTarget   = "http://localhost:11434"
	defaultGenerationModel    = "llama3.2"
	defaultPollIntervalMs     = 800
	defaultTurnTimeoutS       = 60

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultMemoryProvider = "local"

	defaultEventsProvider = "none"
	defaultEventsTopic    = "fableforge.turns"

	defaultSpeechTarget = "https://api.openai.com"
	defaultSpeechModel  = "tts-1"
	defaultSpeechVoice  = "onyx"

	defaultTopK = 8
)

// DefaultPreamble is the Game Master rules text recorded as the first system
// turn of every conversation.
const DefaultPreamble = `You are the Game Master of an evolving roleplaying campaign. Narrate in second person, keep responses to a few paragraphs, and stay in character. Sections marked WORLD STATE, PAST SCENES, and KNOWN FACTS are background memory - treat them as established truth, never as the player's current action. Only the PLAYER section is the live turn.`

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Generation: GenerationConfig{
			Provider:       defaultGenerationProvider,
			Target:         defaultGenerationTarget,
			Model:          defaultGenerationModel,
			PollIntervalMs: defaultPollIntervalMs,
			TurnTimeoutS:   defaultTurnTimeoutS,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Memory: MemoryConfig{
			Provider: defaultMemoryProvider,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		Speech: SpeechConfig{
			Target: defaultSpeechTarget,
			Model:  defaultSpeechModel,
			Voice:  defaultSpeechVoice,
		},
		Narrator: NarratorConfig{
			Preamble: DefaultPreamble,
			TopK:     defaultTopK,
		},
	}
}
