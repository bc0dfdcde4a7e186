package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fableforge/fableforge/pkg/convo"
	"github.com/fableforge/fableforge/pkg/dice"
	"github.com/fableforge/fableforge/pkg/engine"
)

// ErrorResponse is the JSON error body returned by every failing endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateConversationRequest starts a new conversation for a campaign.
// When SessionKey is set the conversation is bound to it: repeat requests
// with the same key return the same conversation id.
type CreateConversationRequest struct {
	CampaignID string `json:"campaign_id"`
	PlayerID   string `json:"player_id,omitempty"`
	SessionKey string `json:"session_key,omitempty"`
}

// CreateConversationResponse carries the new conversation's id.
type CreateConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

// MessageRequest submits player text to an existing conversation.
type MessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
	SessionKey     string `json:"session_key,omitempty"`
}

// RunRequest runs generation for a conversation's pending user message.
type RunRequest struct {
	ConversationID string `json:"conversation_id"`
}

// ReplyResponse carries the Game Master's reply for a completed turn.
type ReplyResponse struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
}

// SpeechRequest renders text as audio.
type SpeechRequest struct {
	Text string `json:"text"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"ok":      true,
		"service": "fableforge",
	})
}

// handleRoll rolls a die. The sides query parameter defaults to a d20.
func (s *Server) handleRoll(c *fiber.Ctx) error {
	sides := dice.DefaultSides
	if raw := c.Query("sides"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "sides must be a positive integer"})
		}
		sides = parsed
	}

	return c.JSON(dice.Roll(sides))
}

// handleCreateConversation starts a new conversation, optionally bound to a
// session key.
func (s *Server) handleCreateConversation(c *fiber.Ctx) error {
	var req CreateConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if req.CampaignID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "campaign_id is required"})
	}

	var (
		id  string
		err error
	)
	if req.SessionKey != "" {
		id, err = s.binder.Ensure(c.Context(), req.SessionKey, req.CampaignID, req.PlayerID)
	} else {
		id, err = s.engine.CreateConversation(c.Context(), req.CampaignID, req.PlayerID)
	}
	if err != nil {
		s.logger.Error("conversation create failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to create conversation"})
	}

	return c.JSON(CreateConversationResponse{ConversationID: id})
}

// handleSubmitMessage appends a player message without running generation.
func (s *Server) handleSubmitMessage(c *fiber.Ctx) error {
	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if req.ConversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "conversation_id is required"})
	}

	if err := s.engine.SubmitMessage(c.Context(), req.ConversationID, req.Text); err != nil {
		return s.turnError(c, err)
	}

	s.observe(req.SessionKey, req.Text)

	return c.SendStatus(fiber.StatusAccepted)
}

// handleRunTurn runs generation for the conversation's pending user message.
func (s *Server) handleRunTurn(c *fiber.Ctx) error {
	var req RunRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if req.ConversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "conversation_id is required"})
	}

	reply, err := s.engine.RunTurn(c.Context(), req.ConversationID)
	if err != nil {
		return s.turnError(c, err)
	}

	return c.JSON(ReplyResponse{
		ConversationID: req.ConversationID,
		Reply:          reply,
	})
}

// handleSubmitTurn submits the player message and runs generation in one call.
func (s *Server) handleSubmitTurn(c *fiber.Ctx) error {
	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if req.ConversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "conversation_id is required"})
	}

	reply, err := s.engine.SubmitTurn(c.Context(), req.ConversationID, req.Text)
	if err != nil {
		return s.turnError(c, err)
	}

	s.observe(req.SessionKey, req.Text)

	return c.JSON(ReplyResponse{
		ConversationID: req.ConversationID,
		Reply:          reply,
	})
}

// handleSpeech renders text as audio. Returns 503 when speech is not
// configured on this server.
func (s *Server) handleSpeech(c *fiber.Ctx) error {
	if s.synth == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "speech is not configured"})
	}

	var req SpeechRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "text is required"})
	}

	audio, err := s.synth.Speak(c.Context(), req.Text)
	if err != nil {
		s.logger.Error("speech synthesis failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "speech synthesis failed"})
	}

	c.Set(fiber.HeaderContentType, "audio/mpeg")
	return c.Send(audio)
}

// observe feeds player text to the session binder's profile extractor when
// the request carries a session key.
func (s *Server) observe(sessionKey, text string) {
	if sessionKey == "" || s.binder == nil {
		return
	}
	s.binder.Observe(sessionKey, text)
}

// turnError maps engine and store errors onto HTTP statuses.
func (s *Server) turnError(c *fiber.Ctx, err error) error {
	var notFound convo.NotFoundError
	switch {
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: notFound.Error()})

	case errors.Is(err, engine.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})

	case errors.Is(err, engine.ErrTimedOut):
		return c.Status(fiber.StatusGatewayTimeout).JSON(ErrorResponse{Error: err.Error()})

	case errors.Is(err, engine.ErrGenerationFailed):
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})

	default:
		s.logger.Error("turn failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal error"})
	}
}
