// Package servecmder provides the serve command for running the Game Master
// API server.
package servecmder

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fableforge/fableforge/api"
	"github.com/fableforge/fableforge/pkg/config"
	"github.com/fableforge/fableforge/pkg/convo"
	convomem "github.com/fableforge/fableforge/pkg/convo/inmemory"
	convosqlite "github.com/fableforge/fableforge/pkg/convo/sqlite"
	"github.com/fableforge/fableforge/pkg/embeddings"
	embedollama "github.com/fableforge/fableforge/pkg/embeddings/ollama"
	embedopenai "github.com/fableforge/fableforge/pkg/embeddings/openai"
	"github.com/fableforge/fableforge/pkg/engine"
	"github.com/fableforge/fableforge/pkg/engine/updater"
	"github.com/fableforge/fableforge/pkg/eventstream"
	eventkafka "github.com/fableforge/fableforge/pkg/eventstream/kafka"
	eventnop "github.com/fableforge/fableforge/pkg/eventstream/nop"
	"github.com/fableforge/fableforge/pkg/generation"
	genollama "github.com/fableforge/fableforge/pkg/generation/ollama"
	genopenai "github.com/fableforge/fableforge/pkg/generation/openai"
	"github.com/fableforge/fableforge/pkg/logger"
	"github.com/fableforge/fableforge/pkg/memory"
	memlocal "github.com/fableforge/fableforge/pkg/memory/local"
	memsqlitevec "github.com/fableforge/fableforge/pkg/memory/sqlitevec"
	"github.com/fableforge/fableforge/pkg/profile"
	"github.com/fableforge/fableforge/pkg/prompt"
	"github.com/fableforge/fableforge/pkg/session"
	"github.com/fableforge/fableforge/pkg/speech"
)

// serveFlags is the flag registry for the serve command.
var serveFlags = config.FlagSet{
	config.FlagAPIListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "api.listen",
		Description: "Address for the API server to listen on",
	},
	config.FlagSQLite: {
		Name:        "sqlite",
		Shorthand:   "s",
		ViperKey:    "storage.sqlite_path",
		Description: "Path to conversation SQLite database (default: in-memory)",
	},
	config.FlagGenProvider: {
		Name:        "provider",
		ViperKey:    "generation.provider",
		Description: "Generation provider (ollama, openai, assistants)",
	},
	config.FlagGenTarget: {
		Name:        "target",
		ViperKey:    "generation.target",
		Description: "Generation provider URL",
	},
	config.FlagGenModel: {
		Name:        "model",
		Shorthand:   "m",
		ViperKey:    "generation.model",
		Description: "Generation model name",
	},
	config.FlagGenAssistant: {
		Name:        "assistant-id",
		ViperKey:    "generation.assistant_id",
		Description: "Hosted assistant id (assistants provider)",
	},
	config.FlagEmbeddingProv: {
		Name:        "embedding-provider",
		ViperKey:    "embedding.provider",
		Description: "Embedding provider (ollama, openai)",
	},
	config.FlagEmbeddingTgt: {
		Name:        "embedding-target",
		ViperKey:    "embedding.target",
		Description: "Embedding provider URL",
	},
	config.FlagEmbeddingModel: {
		Name:        "embedding-model",
		ViperKey:    "embedding.model",
		Description: "Embedding model name",
	},
	config.FlagEmbeddingDims: {
		Name:        "embedding-dimensions",
		ViperKey:    "embedding.dimensions",
		Description: "Embedding vector dimensions",
	},
	config.FlagMemoryProvider: {
		Name:        "memory-provider",
		ViperKey:    "memory.provider",
		Description: "Memory index provider (local, sqlite)",
	},
	config.FlagMemorySQLite: {
		Name:        "memory-sqlite",
		ViperKey:    "memory.sqlite_path",
		Description: "Path to memory SQLite database",
	},
	config.FlagEventsProvider: {
		Name:        "events-provider",
		ViperKey:    "events.provider",
		Description: "Turn event publisher (none, kafka)",
	},
	config.FlagEventsBrokers: {
		Name:        "events-brokers",
		ViperKey:    "events.brokers",
		Description: "Comma-separated Kafka broker addresses",
	},
	config.FlagEventsTopic: {
		Name:        "events-topic",
		ViperKey:    "events.topic",
		Description: "Kafka topic for turn events",
	},
	config.FlagSpeechEnabled: {
		Name:        "speech",
		ViperKey:    "speech.enabled",
		Description: "Enable the text-to-speech endpoint",
	},
	config.FlagNarratorTopK: {
		Name:        "top-k",
		ViperKey:    "narrator.top_k",
		Description: "Scenes and facts retrieved per turn",
	},
}

// serveFlagKeys lists every registry key serve binds to viper.
var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagSQLite,
	config.FlagGenProvider,
	config.FlagGenTarget,
	config.FlagGenModel,
	config.FlagGenAssistant,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagMemoryProvider,
	config.FlagMemorySQLite,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
	config.FlagSpeechEnabled,
	config.FlagNarratorTopK,
}

type ServeCommander struct {
	listen         string
	sqlitePath     string
	genProvider    string
	genTarget      string
	genModel       string
	assistantID    string
	embedProvider  string
	embedTarget    string
	embedModel     string
	embedDims      uint
	memoryProvider string
	memorySQLite   string
	eventsProvider string
	eventsBrokers  string
	eventsTopic    string
	speechEnabled  bool
	topK           uint
	debug          bool

	cfg    *config.Config
	logger *zap.Logger
}

const serveLongDesc string = `Run the Game Master API server.

The server accepts player messages, composes prompts from campaign memory,
invokes the configured generation provider, and records the exchange back
into memory.

Examples:
  fableforge serve
  fableforge serve --provider ollama --model llama3.2
  fableforge serve --sqlite campaign.db --memory-provider sqlite --memory-sqlite memory.db`

const serveShortDesc string = "Run the Game Master API server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)
			cmder.applyViper(v)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagGenProvider, &cmder.genProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagGenTarget, &cmder.genTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagGenModel, &cmder.genModel)
	config.AddStringFlag(cmd, serveFlags, config.FlagGenAssistant, &cmder.assistantID)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingProv, &cmder.embedProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingTgt, &cmder.embedTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingModel, &cmder.embedModel)
	config.AddUintFlag(cmd, serveFlags, config.FlagEmbeddingDims, &cmder.embedDims)
	config.AddStringFlag(cmd, serveFlags, config.FlagMemoryProvider, &cmder.memoryProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagMemorySQLite, &cmder.memorySQLite)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsTopic, &cmder.eventsTopic)
	config.AddBoolFlag(cmd, serveFlags, config.FlagSpeechEnabled, &cmder.speechEnabled)
	config.AddUintFlag(cmd, serveFlags, config.FlagNarratorTopK, &cmder.topK)

	return cmd
}

// applyViper resolves the effective configuration through viper's precedence
// chain (flag > env > config file > default).
func (c *ServeCommander) applyViper(v *viper.Viper) {
	c.listen = v.GetString("api.listen")
	c.sqlitePath = v.GetString("storage.sqlite_path")
	c.genProvider = v.GetString("generation.provider")
	c.genTarget = v.GetString("generation.target")
	c.genModel = v.GetString("generation.model")
	c.assistantID = v.GetString("generation.assistant_id")
	c.embedProvider = v.GetString("embedding.provider")
	c.embedTarget = v.GetString("embedding.target")
	c.embedModel = v.GetString("embedding.model")
	c.embedDims = v.GetUint("embedding.dimensions")
	c.memoryProvider = v.GetString("memory.provider")
	c.memorySQLite = v.GetString("memory.sqlite_path")
	c.eventsProvider = v.GetString("events.provider")
	c.eventsBrokers = v.GetString("events.brokers")
	c.eventsTopic = v.GetString("events.topic")
	c.speechEnabled = v.GetBool("speech.enabled")
	c.topK = v.GetUint("narrator.top_k")

	cfg := config.NewDefaultConfig()
	cfg.Generation.PollIntervalMs = v.GetUint("generation.poll_interval_ms")
	cfg.Generation.TurnTimeoutS = v.GetUint("generation.turn_timeout_s")
	cfg.Narrator.Preamble = v.GetString("narrator.preamble")
	cfg.Speech.Target = v.GetString("speech.target")
	cfg.Speech.Model = v.GetString("speech.model")
	cfg.Speech.Voice = v.GetString("speech.voice")
	c.cfg = cfg
}

func (c *ServeCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	store, err := c.createStore()
	if err != nil {
		return err
	}
	defer store.Close()

	embedder, err := c.createEmbedder()
	if err != nil {
		return err
	}
	defer embedder.Close()

	index, err := c.createIndex(embedder)
	if err != nil {
		return err
	}
	defer index.Close()

	generator, runner, err := c.createGeneration()
	if err != nil {
		return err
	}
	defer generator.Close()

	pool, err := updater.NewPool(&updater.Config{
		Index:     index,
		Generator: generator,
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating updater pool: %w", err)
	}

	publisher, err := c.createPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	opts := []engine.Option{engine.WithPublisher(publisher)}

	var synth speech.Synthesizer
	if c.speechEnabled {
		synth, err = speech.NewHTTPSynthesizer(speech.Config{
			BaseURL: c.cfg.Speech.Target,
			Model:   c.cfg.Speech.Model,
			Voice:   c.cfg.Speech.Voice,
			APIKey:  os.Getenv("OPENAI_API_KEY"),
		})
		if err != nil {
			return fmt.Errorf("creating synthesizer: %w", err)
		}
		defer synth.Close()
		opts = append(opts, engine.WithSynthesizer(synth))
	}

	composer := prompt.NewComposer(prompt.Config{TopK: int(c.topK)}, index, c.logger)

	eng := engine.New(engine.Config{
		PollInterval: time.Duration(c.cfg.Generation.PollIntervalMs) * time.Millisecond,
		TurnTimeout:  time.Duration(c.cfg.Generation.TurnTimeoutS) * time.Second,
	}, store, composer, runner, pool, c.logger, opts...)

	binder := session.NewBinder(store, profile.NewRegexExtractor(), c.logger)

	server := api.NewServer(api.Config{ListenAddr: c.listen}, eng, binder, synth, c.logger)

	c.logger.Info("starting game master",
		zap.String("listen", c.listen),
		zap.String("generation_provider", c.genProvider),
		zap.String("memory_provider", c.memoryProvider),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		pool.Close()
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	}

	if err := server.Shutdown(); err != nil {
		c.logger.Warn("API server shutdown", zap.Error(err))
	}

	// Drain in-flight memory updates before releasing the index.
	pool.Close()

	return nil
}

func (c *ServeCommander) createStore() (convo.Store, error) {
	if c.sqlitePath != "" {
		store, err := convosqlite.NewStore(convosqlite.Config{
			DBPath:   c.sqlitePath,
			Preamble: c.cfg.Narrator.Preamble,
		}, c.logger)
		if err != nil {
			return nil, fmt.Errorf("creating SQLite conversation store: %w", err)
		}
		c.logger.Info("using SQLite conversation store", zap.String("path", c.sqlitePath))
		return store, nil
	}

	c.logger.Info("using in-memory conversation store")
	return convomem.NewStore(convomem.WithPreamble(c.cfg.Narrator.Preamble)), nil
}

func (c *ServeCommander) createEmbedder() (embeddings.Embedder, error) {
	switch c.embedProvider {
	case "ollama":
		return embedollama.NewEmbedder(embedollama.Config{
			BaseURL: c.embedTarget,
			Model:   c.embedModel,
		})
	case "openai":
		return embedopenai.NewEmbedder(embedopenai.Config{
			BaseURL: c.embedTarget,
			Model:   c.embedModel,
			APIKey:  os.Getenv("OPENAI_API_KEY"),
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q (available: ollama, openai)", c.embedProvider)
	}
}

func (c *ServeCommander) createIndex(embedder embeddings.Embedder) (memory.Index, error) {
	switch c.memoryProvider {
	case "local":
		c.logger.Info("using in-process memory index")
		return memlocal.NewIndex(embedder), nil
	case "sqlite":
		path := c.memorySQLite
		if path == "" {
			path = ":memory:"
		}
		index, err := memsqlitevec.NewIndex(memsqlitevec.Config{
			DBPath:     path,
			Dimensions: c.embedDims,
		}, embedder, c.logger)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite memory index: %w", err)
		}
		c.logger.Info("using sqlite-vec memory index", zap.String("path", path))
		return index, nil
	default:
		return nil, fmt.Errorf("unknown memory provider: %q (available: local, sqlite)", c.memoryProvider)
	}
}

// createGeneration returns the updater's sync generation service alongside
// the engine's runner. For async providers the runner drives a thread
// backend while the sync service still handles memory distillation.
func (c *ServeCommander) createGeneration() (generation.Service, engine.Runner, error) {
	switch c.genProvider {
	case "ollama":
		svc := genollama.NewService(genollama.Config{
			BaseURL: c.genTarget,
			Model:   c.genModel,
		})
		return svc, engine.NewSyncRunner(svc), nil

	case "openai":
		svc, err := genopenai.NewService(genopenai.Config{
			BaseURL: c.genTarget,
			Model:   c.genModel,
			APIKey:  os.Getenv("OPENAI_API_KEY"),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("creating openai generation service: %w", err)
		}
		return svc, engine.NewSyncRunner(svc), nil

	case "assistants":
		apiKey := os.Getenv("OPENAI_API_KEY")
		threads, err := genopenai.NewThreadService(genopenai.Config{
			BaseURL:     c.genTarget,
			APIKey:      apiKey,
			AssistantID: c.assistantID,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("creating assistants thread service: %w", err)
		}

		svc, err := genopenai.NewService(genopenai.Config{
			BaseURL: c.genTarget,
			Model:   c.genModel,
			APIKey:  apiKey,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("creating openai generation service: %w", err)
		}

		pollInterval := time.Duration(c.cfg.Generation.PollIntervalMs) * time.Millisecond
		return svc, engine.NewThreadRunner(threads, pollInterval, c.logger), nil

	default:
		return nil, nil, fmt.Errorf("unknown generation provider: %q (available: ollama, openai, assistants)", c.genProvider)
	}
}

func (c *ServeCommander) createPublisher() (eventstream.Publisher, error) {
	switch c.eventsProvider {
	case "", "none":
		return eventnop.NewPublisher(), nil
	case "kafka":
		if c.eventsBrokers == "" {
			return nil, fmt.Errorf("events.brokers is required for the kafka publisher")
		}
		publisher, err := eventkafka.NewPublisher(eventkafka.Config{
			Brokers: strings.Split(c.eventsBrokers, ","),
			Topic:   c.eventsTopic,
		}, c.logger)
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		c.logger.Info("publishing turn events to kafka",
			zap.String("brokers", c.eventsBrokers),
			zap.String("topic", c.eventsTopic),
		)
		return publisher, nil
	default:
		return nil, fmt.Errorf("unknown events provider: %q (available: none, kafka)", c.eventsProvider)
	}
}
