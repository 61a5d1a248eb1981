package mcp

import (
	"fmt"
	"slices"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool describes a tool and its input schema.
type Tool struct {
	Name        ToolName           `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}

var (
	catalog  = buildCatalog()
	resolved = resolveCatalog(catalog)
)

// Catalog returns the tool descriptors in a stable order. The schemas are
// shared and must not be modified.
func Catalog() []Tool { return slices.Clone(catalog) }

// Lookup returns the descriptor for name.
func Lookup(name ToolName) (Tool, bool) {
	for _, t := range catalog {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

func buildCatalog() []Tool {
	defs := map[ToolName]Tool{
		GetAvailableSlots: {
			Description: "Get the open calendar slots for scheduling a meeting",
			InputSchema: object(map[string]*jsonschema.Schema{
				"event_type_id": id("Cal.com event type ID"),
				"start_date":    str("First day to search (YYYY-MM-DD)"),
				"end_date":      str("Last day to search (YYYY-MM-DD)"),
				"timezone":      str(`Attendee time zone (e.g. "America/New_York")`),
			}, "event_type_id"),
		},
		BookMeeting: {
			Description: "Book a meeting in Cal.com",
			InputSchema: object(map[string]*jsonschema.Schema{
				"event_type_id": id("Cal.com event type ID"),
				"start_time":    str("Meeting start time (ISO 8601)"),
				"end_time":      str("Meeting end time (ISO 8601)"),
				"name":          str("Attendee name"),
				"email":         str("Attendee email"),
				"notes":         str("Additional notes for the meeting"),
				"timezone":      str("Attendee time zone"),
			}, "event_type_id", "start_time", "name", "email"),
		},
		GenerateSpeech: {
			Description: "Generate speech from text with ElevenLabs",
			InputSchema: object(map[string]*jsonschema.Schema{
				"text":             str("Text to convert to speech"),
				"voice_id":         str("Voice ID to use"),
				"model_id":         str("Model ID to use (optional)"),
				"stability":        unit("Voice stability (0.0 - 1.0)"),
				"similarity_boost": unit("Similarity boost (0.0 - 1.0)"),
			}, "text", "voice_id"),
		},
		ListVoices: {
			Description: "List the voices available in ElevenLabs",
			InputSchema: object(map[string]*jsonschema.Schema{}),
		},
		CreateVoiceAgent: {
			Description: "Create an ElevenLabs voice agent that can place calls",
			InputSchema: object(map[string]*jsonschema.Schema{
				"name":            str("Voice agent name"),
				"voice_id":        str("Voice ID to use"),
				"system_prompt":   str("System instructions for the agent"),
				"initial_message": str("First message the agent says"),
				"knowledge":       str("Additional knowledge for the agent (optional)"),
			}, "name", "voice_id", "system_prompt", "initial_message"),
		},
		MakeOutboundCall: {
			Description: "Place an outbound call with an ElevenLabs voice agent",
			InputSchema: object(map[string]*jsonschema.Schema{
				"agent_id":     str("Voice agent ID"),
				"phone_number": str("Phone number to call"),
				"purpose":      str("Purpose of the call"),
			}, "agent_id", "phone_number"),
		},
	}

	tools := make([]Tool, 0, len(toolNames))
	for _, name := range toolNames {
		t, ok := defs[name]
		if !ok {
			panic(fmt.Sprintf("mcp: no descriptor for tool %s", name))
		}
		t.Name = name
		tools = append(tools, t)
	}
	return tools
}

func resolveCatalog(tools []Tool) map[ToolName]*jsonschema.Resolved {
	out := make(map[ToolName]*jsonschema.Resolved, len(tools))
	for _, t := range tools {
		rs, err := t.InputSchema.Resolve(&jsonschema.ResolveOptions{})
		if err != nil {
			panic(fmt.Sprintf("mcp: resolve schema for %s: %v", t.Name, err))
		}
		out[t.Name] = rs
	}
	return out
}

// validateArgs checks args against the resolved input schema of name.
// Null values count as absent.
func validateArgs(name ToolName, args Args) error {
	rs, ok := resolved[name]
	if !ok {
		return Errorf(KindUnknownTool, "unknown tool: %s", name)
	}
	instance := make(map[string]any, len(args))
	for k, v := range args {
		if args.Has(k) {
			instance[k] = v
		}
	}
	if err := rs.Validate(instance); err != nil {
		return Wrap(KindValidation, err, fmt.Sprintf("invalid arguments for %s", name))
	}
	return nil
}

func object(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

func str(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

// id accepts an identifier sent either as a string or as a JSON integer.
func id(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Types: []string{"string", "integer"}, Description: description}
}

func unit(description string) *jsonschema.Schema {
	lo, hi := 0.0, 1.0
	return &jsonschema.Schema{Type: "number", Description: description, Minimum: &lo, Maximum: &hi}
}
