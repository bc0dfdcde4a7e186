// Package ollama implements pkg/generation's Service against Ollama's chat API.
package ollama

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
	// DefaultModel is the default chat model.
	DefaultModel = "llama3.2"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"
)

// Service wraps Ollama's chat API.
type Service struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// Config holds configuration for the Ollama generation service.
type Config struct {
	// BaseURL is the Ollama API URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Model is the chat model to use. Defaults to DefaultModel.
	Model string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// NewService creates a generation service backed by Ollama.
func NewService(cfg Config) *Service {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Service{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Generate produces text from prompt in a single chat call.
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:    s.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: marshaling request: %v", generation.ErrGeneration, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", generation.ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: sending request: %v", generation.ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: ollama returned status %d: %s", generation.ErrGeneration, resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", generation.ErrGeneration, err)
	}

	return chatResp.Message.Content, nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	return nil
}

// Ensure Service implements generation.Service
var _ generation.Service = (*Service)(nil)
