// Package elevenlabs adapts the voice tools to the ElevenLabs REST API.
package elevenlabs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"voicecal-mcp/internal/upstream"
)

// DefaultBaseURL is the public ElevenLabs API host.
const DefaultBaseURL = "https://api.elevenlabs.io"

// Client is a minimal ElevenLabs client authenticated with xi-api-key.
type Client struct {
	api *upstream.Client
}

// NewClient returns a client for baseURL authenticated with apiKey.
func NewClient(baseURL, apiKey string, opts ...upstream.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts = append([]upstream.Option{upstream.WithHeader("xi-api-key", apiKey)}, opts...)
	return &Client{api: upstream.New("elevenlabs", baseURL, opts...)}
}

// Voice is the normalized view of an ElevenLabs voice.
type Voice struct {
	VoiceID    string            `json:"voice_id"`
	Name       string            `json:"name"`
	Category   string            `json:"category,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
	PreviewURL string            `json:"preview_url,omitempty"`
}

// Voices lists the voices of the account.
func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	raw, err := c.api.JSON(ctx, upstream.Request{Method: http.MethodGet, Path: "/v1/voices"})
	if err != nil {
		return nil, err
	}
	var body struct {
		Voices *[]Voice `json:"voices"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Voices == nil {
		return nil, fmt.Errorf("elevenlabs voices: %w: expected a \"voices\" array", upstream.ErrUnexpectedShape)
	}
	for i, v := range *body.Voices {
		if v.VoiceID == "" {
			return nil, fmt.Errorf("elevenlabs voices: %w: voice %d has no voice_id", upstream.ErrUnexpectedShape, i)
		}
	}
	return *body.Voices, nil
}

// VoiceSettings tune the synthesized voice.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// SpeechRequest is the text-to-speech payload.
type SpeechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// Speech summarizes a synthesized clip. The audio itself is discarded.
type Speech struct {
	Format string
	Size   int64
}

// Synthesize converts text to speech with voiceID and reports the size of
// the returned audio.
func (c *Client) Synthesize(ctx context.Context, voiceID string, req SpeechRequest) (*Speech, error) {
	resp, err := c.api.Do(ctx, upstream.Request{
		Method: http.MethodPost,
		Path:   "/v1/text-to-speech/" + url.PathEscape(voiceID),
		Body:   req,
		Accept: "audio/mpeg",
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return nil, &upstream.Error{Provider: "elevenlabs", Status: resp.StatusCode, Err: fmt.Errorf("read audio: %w", err)}
	}
	format := "audio/mpeg"
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && mt != "" {
		format = mt
	}
	return &Speech{Format: format, Size: n}, nil
}

// AgentRequest creates a conversational voice agent.
type AgentRequest struct {
	Name           string `json:"name"`
	VoiceID        string `json:"voice_id"`
	SystemPrompt   string `json:"system_prompt"`
	InitialMessage string `json:"initial_message"`
	Knowledge      string `json:"knowledge,omitempty"`
}

// CreateAgent creates an agent and returns the upstream agent object.
func (c *Client) CreateAgent(ctx context.Context, req AgentRequest) (map[string]any, error) {
	raw, err := c.api.JSON(ctx, upstream.Request{Method: http.MethodPost, Path: "/v1/agents", Body: req})
	if err != nil {
		return nil, err
	}
	return upstream.DecodeObject(raw)
}

// CallRequest starts an outbound phone call.
type CallRequest struct {
	AgentID string `json:"agent_id"`
	To      string `json:"to"`
	Purpose string `json:"purpose"`
}

// StartCall places an outbound call and returns the upstream call object.
func (c *Client) StartCall(ctx context.Context, req CallRequest) (map[string]any, error) {
	raw, err := c.api.JSON(ctx, upstream.Request{Method: http.MethodPost, Path: "/v1/call", Body: req})
	if err != nil {
		return nil, err
	}
	return upstream.DecodeObject(raw)
}
