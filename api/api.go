package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fableforge/fableforge/pkg/engine"
	"github.com/fableforge/fableforge/pkg/session"
	"github.com/fableforge/fableforge/pkg/speech"
)

// Server is the HTTP server for the Game Master turn lifecycle.
type Server struct {
	config Config
	engine *engine.Engine
	binder *session.Binder
	synth  speech.Synthesizer
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The engine and binder are injected to allow sharing with other components
// (e.g., an in-process chat client). A nil synth disables the speech endpoint.
func NewServer(config Config, eng *engine.Engine, binder *session.Binder, synth speech.Synthesizer, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		engine: eng,
		binder: binder,
		synth:  synth,
		logger: logger,
		app:    app,
	}

	app.Get("/health", s.handleHealth)
	app.Get("/api/roll", s.handleRoll)
	app.Post("/api/gm/conversation", s.handleCreateConversation)
	app.Post("/api/gm/message", s.handleSubmitMessage)
	app.Post("/api/gm/run", s.handleRunTurn)
	app.Post("/api/gm/turn", s.handleSubmitTurn)
	app.Post("/api/gm/speech", s.handleSpeech)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
