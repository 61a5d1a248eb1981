package mcp

import "slices"

// ToolName is the closed set of tools this server exposes. New tools are
// added here, in buildCatalog and in ToolName.Provider.
type ToolName string

const (
	GetAvailableSlots ToolName = "get_available_slots"
	BookMeeting       ToolName = "book_meeting"
	GenerateSpeech    ToolName = "generate_speech"
	ListVoices        ToolName = "list_voices"
	CreateVoiceAgent  ToolName = "create_voice_agent"
	MakeOutboundCall  ToolName = "make_outbound_call"
)

// toolNames fixes the catalog order.
var toolNames = []ToolName{
	GetAvailableSlots,
	BookMeeting,
	GenerateSpeech,
	ListVoices,
	CreateVoiceAgent,
	MakeOutboundCall,
}

// ToolNames returns every known tool name in catalog order.
func ToolNames() []ToolName { return slices.Clone(toolNames) }

// ParseToolName matches s exactly against the known tool names.
func ParseToolName(s string) (ToolName, bool) {
	for _, n := range toolNames {
		if string(n) == s {
			return n, true
		}
	}
	return "", false
}

// Provider identifies the upstream family that serves a tool.
type Provider int

const (
	ProviderUnknown Provider = iota
	ProviderScheduling
	ProviderVoice
)

func (p Provider) String() string {
	switch p {
	case ProviderScheduling:
		return "scheduling"
	case ProviderVoice:
		return "voice"
	default:
		return "unknown"
	}
}

// Provider returns the family that serves n.
func (n ToolName) Provider() Provider {
	switch n {
	case GetAvailableSlots, BookMeeting:
		return ProviderScheduling
	case GenerateSpeech, ListVoices, CreateVoiceAgent, MakeOutboundCall:
		return ProviderVoice
	default:
		return ProviderUnknown
	}
}
