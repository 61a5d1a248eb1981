// Package mcp implements the tool-dispatch protocol: the request and
// response envelopes, the tool catalog and the dispatcher that routes
// tool calls to provider adapters.
package mcp

import "encoding/json"

// RequestType discriminates inbound requests.
type RequestType string

const (
	RequestDiscovery RequestType = "discovery"
	RequestToolCall  RequestType = "tool_call"
)

// ResponseType discriminates outbound envelopes.
type ResponseType string

const (
	ResponseDiscovery     ResponseType = "discovery_response"
	ResponseToolCall      ResponseType = "tool_call_response"
	ResponseToolCallError ResponseType = "tool_call_error"
	ResponseError         ResponseType = "error"
)

// Request is the decoded body of a POST /mcp call.
type Request struct {
	Type     RequestType    `json:"type"`
	ToolName string         `json:"tool_name,omitempty"`
	ToolArgs map[string]any `json:"tool_args,omitempty"`
}

// Content is a single item of a tool call result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Response is the envelope returned for every request. Exactly one of
// Tools, Content or Error is populated, depending on Type.
type Response struct {
	Type    ResponseType `json:"type"`
	Tools   []Tool       `json:"tools,omitempty"`
	Content []Content    `json:"content,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// IsError reports whether r is a tool_call_error or error envelope.
func (r Response) IsError() bool {
	return r.Type == ResponseToolCallError || r.Type == ResponseError
}

// TextResult wraps payload as a tool_call_response whose single text item
// is the JSON encoding of payload.
func TextResult(payload any) Response {
	b, err := json.Marshal(payload)
	if err != nil {
		return ToolCallError("encode tool result: " + err.Error())
	}
	return Response{
		Type:    ResponseToolCall,
		Content: []Content{{Type: "text", Text: string(b)}},
	}
}

// ToolCallError builds a tool_call_error envelope.
func ToolCallError(msg string) Response {
	return Response{Type: ResponseToolCallError, Error: msg}
}

// ProtocolError builds the generic error envelope used for malformed
// top-level requests.
func ProtocolError(msg string) Response {
	return Response{Type: ResponseError, Error: msg}
}
