package elevenlabs

import (
	"context"
	"log/slog"

	"voicecal-mcp/internal/mcp"
)

// Defaults applied to generate_speech and make_outbound_call.
const (
	DefaultModelID         = "eleven_multilingual_v2"
	DefaultStability       = 0.5
	DefaultSimilarityBoost = 0.75
	DefaultCallPurpose     = "Scheduled call"
)

// VoicesResult is the payload of list_voices.
type VoicesResult struct {
	Voices  []Voice `json:"voices"`
	Message string  `json:"message"`
}

// SpeechResult is the payload of generate_speech.
type SpeechResult struct {
	Message   string `json:"message"`
	Format    string `json:"format"`
	SizeBytes int64  `json:"size_bytes"`
}

// AgentResult is the payload of create_voice_agent.
type AgentResult struct {
	Agent   map[string]any `json:"agent"`
	Message string         `json:"message"`
}

// CallResult is the payload of make_outbound_call.
type CallResult struct {
	Call    map[string]any `json:"call"`
	Message string         `json:"message"`
}

// Adapter serves the voice tools.
type Adapter struct {
	client *Client
	model  string
	logger *slog.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithDefaultModel overrides the model used when model_id is omitted.
func WithDefaultModel(model string) AdapterOption {
	return func(a *Adapter) {
		if model != "" {
			a.model = model
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(l *slog.Logger) AdapterOption {
	return func(a *Adapter) { a.logger = l }
}

// NewAdapter returns the voice adapter over client.
func NewAdapter(client *Client, opts ...AdapterOption) *Adapter {
	a := &Adapter{client: client, model: DefaultModelID}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Call implements mcp.Adapter.
func (a *Adapter) Call(ctx context.Context, name mcp.ToolName, args mcp.Args) (any, error) {
	switch name {
	case mcp.ListVoices:
		return a.listVoices(ctx)
	case mcp.GenerateSpeech:
		return a.generateSpeech(ctx, args)
	case mcp.CreateVoiceAgent:
		return a.createVoiceAgent(ctx, args)
	case mcp.MakeOutboundCall:
		return a.makeOutboundCall(ctx, args)
	default:
		return nil, mcp.Errorf(mcp.KindUnknownTool, "unknown voice tool: %s", name)
	}
}

func (a *Adapter) listVoices(ctx context.Context) (any, error) {
	voices, err := a.client.Voices(ctx)
	if err != nil {
		return nil, mcp.Wrap(mcp.KindUpstream, err, "failed to list voices")
	}
	return VoicesResult{Voices: voices, Message: "Voices retrieved successfully"}, nil
}

func (a *Adapter) generateSpeech(ctx context.Context, args mcp.Args) (any, error) {
	if err := args.Require("text", "voice_id"); err != nil {
		return nil, err
	}
	stability := args.Float("stability", DefaultStability)
	similarity := args.Float("similarity_boost", DefaultSimilarityBoost)
	if err := unitRange("stability", stability); err != nil {
		return nil, err
	}
	if err := unitRange("similarity_boost", similarity); err != nil {
		return nil, err
	}
	model := args.Get("model_id")
	if model == "" {
		model = a.model
	}

	speech, err := a.client.Synthesize(ctx, args.Get("voice_id"), SpeechRequest{
		Text:    args.Get("text"),
		ModelID: model,
		VoiceSettings: VoiceSettings{
			Stability:       stability,
			SimilarityBoost: similarity,
		},
	})
	if err != nil {
		return nil, mcp.Wrap(mcp.KindUpstream, err, "failed to generate speech")
	}
	a.logger.Debug("speech generated", "voice_id", args.Get("voice_id"), "bytes", speech.Size)
	return SpeechResult{Message: "Audio generated successfully", Format: speech.Format, SizeBytes: speech.Size}, nil
}

func (a *Adapter) createVoiceAgent(ctx context.Context, args mcp.Args) (any, error) {
	if err := args.Require("name", "voice_id", "system_prompt", "initial_message"); err != nil {
		return nil, err
	}
	agent, err := a.client.CreateAgent(ctx, AgentRequest{
		Name:           args.Get("name"),
		VoiceID:        args.Get("voice_id"),
		SystemPrompt:   args.Get("system_prompt"),
		InitialMessage: args.Get("initial_message"),
		Knowledge:      args.Get("knowledge"),
	})
	if err != nil {
		return nil, mcp.Wrap(mcp.KindUpstream, err, "failed to create voice agent")
	}
	return AgentResult{Agent: agent, Message: "Voice agent created successfully"}, nil
}

func (a *Adapter) makeOutboundCall(ctx context.Context, args mcp.Args) (any, error) {
	if err := args.Require("agent_id", "phone_number"); err != nil {
		return nil, err
	}
	purpose := args.Get("purpose")
	if purpose == "" {
		purpose = DefaultCallPurpose
	}
	call, err := a.client.StartCall(ctx, CallRequest{
		AgentID: args.Get("agent_id"),
		To:      args.Get("phone_number"),
		Purpose: purpose,
	})
	if err != nil {
		return nil, mcp.Wrap(mcp.KindUpstream, err, "failed to place call")
	}
	return CallResult{Call: call, Message: "Call started successfully"}, nil
}

func unitRange(key string, v float64) error {
	if v < 0 || v > 1 {
		return mcp.Errorf(mcp.KindValidation, "%s must be between 0 and 1, got %v", key, v)
	}
	return nil
}
