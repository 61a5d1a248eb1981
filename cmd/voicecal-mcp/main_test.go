package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voicecal-mcp/internal/mcp"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestToolsCommand(t *testing.T) {
	out, _, err := run(t, "tools")
	if err != nil {
		t.Fatalf("tools: %v", err)
	}
	var body struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal([]byte(out), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(body.Tools) != 6 || body.Tools[0].Name != "get_available_slots" {
		t.Fatalf("unexpected catalog %+v", body.Tools)
	}
}

func TestToolsCommandSingleTool(t *testing.T) {
	out, _, err := run(t, "tools", "book_meeting")
	if err != nil {
		t.Fatalf("tools book_meeting: %v", err)
	}
	var tool struct {
		Name        string `json:"name"`
		InputSchema struct {
			Required []string `json:"required"`
		} `json:"inputSchema"`
	}
	if err := json.Unmarshal([]byte(out), &tool); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if tool.Name != "book_meeting" || len(tool.InputSchema.Required) != 4 {
		t.Fatalf("unexpected descriptor %+v", tool)
	}

	if _, _, err := run(t, "tools", "send_fax"); err == nil || err.Error() != "unknown tool: send_fax" {
		t.Fatalf("expected unknown tool error, got %v", err)
	}
}

func TestCallCommand(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/voices" || r.Header.Get("xi-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"voices":[{"voice_id":"v1","name":"Rachel"}]}`))
	}))
	defer upstream.Close()
	t.Setenv("ELEVENLABS_BASE_URL", upstream.URL)
	t.Setenv("ELEVENLABS_API_KEY", "test-key")

	out, _, err := run(t, "call", "list_voices")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	var resp mcp.Response
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Type != mcp.ResponseToolCall || !strings.Contains(resp.Content[0].Text, `"voice_id":"v1"`) {
		t.Fatalf("unexpected envelope %+v", resp)
	}
}

func TestCallCommandErrors(t *testing.T) {
	out, _, err := run(t, "call", "send_fax")
	if err == nil || err.Error() != "unknown tool: send_fax" {
		t.Fatalf("expected unknown tool error, got %v", err)
	}
	if !strings.Contains(out, `"tool_call_error"`) {
		t.Fatalf("envelope should still be printed, got %s", out)
	}

	if _, _, err := run(t, "call", "list_voices", "--args", "[1,2]"); err == nil {
		t.Fatal("expected error for non-object --args")
	}
	if _, _, err := run(t, "call"); err == nil {
		t.Fatal("expected error without a tool name")
	}
}
