// Package openai implements pkg/generation against OpenAI's APIs: a
// synchronous Service over chat completions and an asynchronous
// ThreadService over the hosted assistants API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fableforge/fableforge/pkg/generation"
)

const (
	// DefaultModel is the default chat completions model.
	DefaultModel = "gpt-4o-mini"

	// DefaultBaseURL is the default OpenAI API URL.
	DefaultBaseURL = "https://api.openai.com"

	// assistantsBetaHeader opts requests into the assistants API surface.
	assistantsBetaHeader = "assistants=v2"
)

// Config holds configuration for the OpenAI generation clients.
type Config struct {
	// BaseURL overrides the OpenAI API URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Model is the chat completions model. Defaults to DefaultModel.
	// Ignored by the assistants client, where the hosted assistant
	// carries its own model.
	Model string

	// APIKey is the bearer token for the API. Required.
	APIKey string

	// AssistantID is the hosted assistant driving thread runs. Required
	// for NewThreadService.
	AssistantID string
}

type client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func newClient(cfg Config) client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// do issues an authenticated JSON request and decodes the response into out.
// A nil body sends an empty JSON object; a nil out discards the response.
func (c client) do(ctx context.Context, method, path string, beta bool, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: marshaling request: %v", generation.ErrGeneration, err)
		}
	} else {
		payload = []byte("{}")
	}

	var reader io.Reader
	if method != http.MethodGet {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: creating request: %v", generation.ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if beta {
		req.Header.Set("OpenAI-Beta", assistantsBetaHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: sending request: %v", generation.ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: openai returned status %d: %s", generation.ErrGeneration, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", generation.ErrGeneration, err)
	}

	return nil
}

// --- synchronous chat completions service ---

// Service wraps OpenAI's chat completions API.
type Service struct {
	client
	model string
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewService creates a generation service backed by OpenAI chat completions.
func NewService(cfg Config) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key is required", generation.ErrGeneration)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Service{
		client: newClient(cfg),
		model:  model,
	}, nil
}

// Generate produces text from prompt in a single chat completion call.
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:    s.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}

	var resp chatResponse
	if err := s.do(ctx, http.MethodPost, "/v1/chat/completions", false, reqBody, &resp); err != nil {
		return "", err
	}

	if resp.Error != nil {
		return "", fmt.Errorf("%w: openai error: %s", generation.ErrGeneration, resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", generation.ErrGeneration)
	}

	return resp.Choices[0].Message.Content, nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	return nil
}

// --- asynchronous hosted-assistant thread service ---

// ThreadService wraps OpenAI's hosted assistants API.
type ThreadService struct {
	client
	assistantID string
}

type threadResponse struct {
	ID string `json:"id"`
}

type runRequest struct {
	AssistantID string `json:"assistant_id"`
}

type runResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type messageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageListResponse struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

// NewThreadService creates an assistants-backed thread service.
func NewThreadService(cfg Config) (*ThreadService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key is required", generation.ErrGeneration)
	}
	if cfg.AssistantID == "" {
		return nil, fmt.Errorf("%w: assistant id is required", generation.ErrGeneration)
	}

	return &ThreadService{
		client:      newClient(cfg),
		assistantID: cfg.AssistantID,
	}, nil
}

// CreateThread allocates a server-side thread.
func (s *ThreadService) CreateThread(ctx context.Context) (string, error) {
	var resp threadResponse
	if err := s.do(ctx, http.MethodPost, "/v1/threads", true, nil, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// AddMessage appends a message to the thread.
func (s *ThreadService) AddMessage(ctx context.Context, threadID, role, content string) error {
	return s.do(ctx, http.MethodPost, "/v1/threads/"+threadID+"/messages", true,
		messageRequest{Role: role, Content: content}, nil)
}

// StartRun begins generation against the thread with the configured assistant.
func (s *ThreadService) StartRun(ctx context.Context, threadID string) (string, error) {
	var resp runResponse
	if err := s.do(ctx, http.MethodPost, "/v1/threads/"+threadID+"/runs", true,
		runRequest{AssistantID: s.assistantID}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// RunStatus reports the run's current status.
func (s *ThreadService) RunStatus(ctx context.Context, threadID, runID string) (generation.Status, error) {
	var resp runResponse
	if err := s.do(ctx, http.MethodGet, "/v1/threads/"+threadID+"/runs/"+runID, true, nil, &resp); err != nil {
		return "", err
	}
	return generation.Status(resp.Status), nil
}

// LatestAssistantText returns the newest assistant message's text, joining
// multiple text parts with newlines. Empty when no assistant message exists.
func (s *ThreadService) LatestAssistantText(ctx context.Context, threadID string) (string, error) {
	var resp messageListResponse
	if err := s.do(ctx, http.MethodGet, "/v1/threads/"+threadID+"/messages?order=desc&limit=10", true, nil, &resp); err != nil {
		return "", err
	}

	for _, msg := range resp.Data {
		if msg.Role != "assistant" {
			continue
		}

		var text string
		for _, part := range msg.Content {
			if part.Type != "text" {
				continue
			}
			if text != "" {
				text += "\n"
			}
			text += part.Text.Value
		}
		return text, nil
	}

	return "", nil
}

// Close releases resources held by the service.
func (s *ThreadService) Close() error {
	return nil
}

// Ensure implementations satisfy pkg/generation interfaces
var (
	_ generation.Service       = (*Service)(nil)
	_ generation.ThreadService = (*ThreadService)(nil)
)
