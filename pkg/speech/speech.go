// Package speech provides optional text-to-speech enrichment. Synthesis is
// fire-and-forget relative to the dialogue flow: failures are logged by
// callers and never surface to the turn pipeline.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrSynthesis is returned when the speech backend errors.
var ErrSynthesis = errors.New("speech synthesis failed")

// Synthesizer converts text to an audio byte stream.
type Synthesizer interface {
	// Speak renders text as audio bytes.
	Speak(ctx context.Context, text string) ([]byte, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

const (
	// DefaultModel is the default speech model.
	DefaultModel = "tts-1"

	// DefaultVoice is the default narrator voice.
	DefaultVoice = "onyx"

	// DefaultBaseURL is the default OpenAI API URL.
	DefaultBaseURL = "https://api.openai.com"
)

// Config holds configuration for the HTTP synthesizer.
type Config struct {
	// BaseURL overrides the API URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Model is the speech model. Defaults to DefaultModel.
	Model string

	// Voice is the narrator voice. Defaults to DefaultVoice.
	Voice string

	// APIKey is the bearer token for the API. Required.
	APIKey string
}

// HTTPSynthesizer implements Synthesizer against an OpenAI-style
// /v1/audio/speech endpoint.
type HTTPSynthesizer struct {
	baseURL    string
	model      string
	voice      string
	apiKey     string
	httpClient *http.Client
}

type speechRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

// NewHTTPSynthesizer creates an HTTP-backed synthesizer.
func NewHTTPSynthesizer(cfg Config) (*HTTPSynthesizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrSynthesis)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	voice := cfg.Voice
	if voice == "" {
		voice = DefaultVoice
	}

	return &HTTPSynthesizer{
		baseURL: baseURL,
		model:   model,
		voice:   voice,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// Speak renders text as audio bytes.
func (s *HTTPSynthesizer) Speak(ctx context.Context, text string) ([]byte, error) {
	reqBody := speechRequest{
		Model: s.model,
		Input: text,
		Voice: s.voice,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", ErrSynthesis, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/audio/speech", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrSynthesis, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", ErrSynthesis, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: speech backend returned status %d: %s", ErrSynthesis, resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading audio: %v", ErrSynthesis, err)
	}

	return audio, nil
}

// Close releases resources held by the synthesizer.
func (s *HTTPSynthesizer) Close() error {
	return nil
}

// Ensure HTTPSynthesizer implements Synthesizer
var _ Synthesizer = (*HTTPSynthesizer)(nil)
