package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"voicecal-mcp/internal/mcp"
	"voicecal-mcp/internal/upstream"
)

var audio = bytes.Repeat([]byte{0xff, 0xfb, 0x90, 0x00}, 1024)

type stubElevenLabs struct {
	mu       sync.Mutex
	calls    int
	lastPath string
	lastBody map[string]any
	voices   string
	status   int
}

func (s *stubElevenLabs) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastPath = r.URL.Path
	s.lastBody = nil
	json.NewDecoder(r.Body).Decode(&s.lastBody)

	if r.Header.Get("xi-api-key") != "test-key" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if s.status != 0 {
		w.WriteHeader(s.status)
		io.WriteString(w, `{"detail":"quota exceeded"}`)
		return
	}
	switch {
	case r.URL.Path == "/v1/voices":
		io.WriteString(w, s.voices)
	case strings.HasPrefix(r.URL.Path, "/v1/text-to-speech/"):
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(audio)
	case r.URL.Path == "/v1/agents":
		io.WriteString(w, `{"agent_id":"ag_1"}`)
	case r.URL.Path == "/v1/call":
		io.WriteString(w, `{"call_id":"c_1","status":"queued"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *stubElevenLabs) snapshot() (int, string, map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, s.lastPath, s.lastBody
}

func newTestAdapter(t *testing.T, stub *stubElevenLabs) *Adapter {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAdapter(NewClient(srv.URL, "test-key", upstream.WithLogger(logger)), WithLogger(logger))
}

func TestListVoices(t *testing.T) {
	stub := &stubElevenLabs{voices: `{"voices":[{"voice_id":"v1","name":"Rachel","category":"premade","labels":{"accent":"american"},"samples":null}]}`}
	a := newTestAdapter(t, stub)

	got, err := a.Call(context.Background(), mcp.ListVoices, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := got.(VoicesResult)
	if len(res.Voices) != 1 || res.Voices[0].VoiceID != "v1" || res.Voices[0].Labels["accent"] != "american" {
		t.Fatalf("voices = %+v", res.Voices)
	}

	again, err := a.Call(context.Background(), mcp.ListVoices, nil)
	if err != nil {
		t.Fatal(err)
	}
	if mcp.TextResult(got).Content[0].Text != mcp.TextResult(again).Content[0].Text {
		t.Fatal("identical calls produced different envelopes")
	}
}

func TestListVoicesUnexpectedShape(t *testing.T) {
	for _, body := range []string{`[]`, `{"items":[]}`, `{"voices":{"v1":{}}}`, `{"voices":[{"name":"x"}]}`} {
		a := newTestAdapter(t, &stubElevenLabs{voices: body})
		_, err := a.Call(context.Background(), mcp.ListVoices, nil)
		if mcp.KindOf(err) != mcp.KindUpstream || !strings.Contains(err.Error(), "unexpected upstream shape") {
			t.Errorf("%s: err = %v", body, err)
		}
	}
}

func TestGenerateSpeechReportsSizeOnly(t *testing.T) {
	stub := &stubElevenLabs{}
	a := newTestAdapter(t, stub)

	got, err := a.Call(context.Background(), mcp.GenerateSpeech, mcp.Args{"text": "Hola", "voice_id": "v1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := got.(SpeechResult)
	if res.SizeBytes != int64(len(audio)) || res.Format != "audio/mpeg" {
		t.Fatalf("result = %+v", res)
	}

	_, path, body := stub.snapshot()
	if path != "/v1/text-to-speech/v1" {
		t.Errorf("path = %s", path)
	}
	if body["model_id"] != DefaultModelID {
		t.Errorf("model_id = %v", body["model_id"])
	}
	settings := body["voice_settings"].(map[string]any)
	if settings["stability"] != DefaultStability || settings["similarity_boost"] != DefaultSimilarityBoost {
		t.Errorf("voice_settings = %v", settings)
	}

	env := mcp.TextResult(got)
	if strings.Contains(env.Content[0].Text, string(audio[:4])) {
		t.Fatal("audio bytes leaked into envelope")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(env.Content[0].Text), &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload) != 3 || payload["size_bytes"] != float64(len(audio)) {
		t.Fatalf("payload = %v", payload)
	}
}

func TestGenerateSpeechExplicitSettings(t *testing.T) {
	stub := &stubElevenLabs{}
	a := newTestAdapter(t, stub)
	_, err := a.Call(context.Background(), mcp.GenerateSpeech, mcp.Args{
		"text": "hi", "voice_id": "v1", "model_id": "eleven_turbo_v2", "stability": 0.0, "similarity_boost": 1.0,
	})
	if err != nil {
		t.Fatal(err)
	}
	_, _, body := stub.snapshot()
	settings := body["voice_settings"].(map[string]any)
	if body["model_id"] != "eleven_turbo_v2" || settings["stability"] != 0.0 || settings["similarity_boost"] != 1.0 {
		t.Fatalf("body = %v", body)
	}
}

func TestCreateVoiceAgent(t *testing.T) {
	stub := &stubElevenLabs{}
	a := newTestAdapter(t, stub)
	got, err := a.Call(context.Background(), mcp.CreateVoiceAgent, mcp.Args{
		"name": "Receptionist", "voice_id": "v1", "system_prompt": "Be kind", "initial_message": "Hello",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.(AgentResult).Agent["agent_id"] != "ag_1" {
		t.Fatalf("got %+v", got)
	}
	_, _, body := stub.snapshot()
	if _, ok := body["knowledge"]; ok {
		t.Error("empty knowledge should be omitted")
	}
	if body["system_prompt"] != "Be kind" {
		t.Errorf("body = %v", body)
	}
}

func TestMakeOutboundCallDefaultsPurpose(t *testing.T) {
	stub := &stubElevenLabs{}
	a := newTestAdapter(t, stub)
	got, err := a.Call(context.Background(), mcp.MakeOutboundCall, mcp.Args{"agent_id": "ag_1", "phone_number": "+15551234567"})
	if err != nil {
		t.Fatal(err)
	}
	if got.(CallResult).Call["call_id"] != "c_1" {
		t.Fatalf("got %+v", got)
	}
	_, _, body := stub.snapshot()
	if body["to"] != "+15551234567" || body["purpose"] != DefaultCallPurpose || body["agent_id"] != "ag_1" {
		t.Fatalf("body = %v", body)
	}
}

func TestVoiceValidationHappensBeforeNetwork(t *testing.T) {
	tests := []struct {
		tool mcp.ToolName
		args mcp.Args
	}{
		{mcp.GenerateSpeech, mcp.Args{"voice_id": "v1"}},
		{mcp.GenerateSpeech, mcp.Args{"text": "  ", "voice_id": "v1"}},
		{mcp.GenerateSpeech, mcp.Args{"text": "hi", "voice_id": "v1", "stability": 3.0}},
		{mcp.CreateVoiceAgent, mcp.Args{"name": "a", "voice_id": "v", "system_prompt": "p"}},
		{mcp.MakeOutboundCall, mcp.Args{"agent_id": "ag_1"}},
	}
	for _, tt := range tests {
		stub := &stubElevenLabs{}
		a := newTestAdapter(t, stub)
		_, err := a.Call(context.Background(), tt.tool, tt.args)
		if mcp.KindOf(err) != mcp.KindValidation {
			t.Errorf("%s %v: err = %v", tt.tool, tt.args, err)
		}
		if calls, _, _ := stub.snapshot(); calls != 0 {
			t.Errorf("%s %v: %d network calls", tt.tool, tt.args, calls)
		}
	}
}

func TestUpstreamFailureIsSingleShot(t *testing.T) {
	stub := &stubElevenLabs{status: http.StatusTooManyRequests}
	a := newTestAdapter(t, stub)
	_, err := a.Call(context.Background(), mcp.MakeOutboundCall, mcp.Args{"agent_id": "ag_1", "phone_number": "+1"})
	if mcp.KindOf(err) != mcp.KindUpstream {
		t.Fatalf("err = %v", err)
	}
	want := `failed to place call: elevenlabs request failed with status 429: {"detail":"quota exceeded"}`
	if err.Error() != want {
		t.Errorf("error = %q", err.Error())
	}
	if calls, _, _ := stub.snapshot(); calls != 1 {
		t.Errorf("calls = %d", calls)
	}
}

func TestMakeOutboundCallNullPurposeThroughDispatcher(t *testing.T) {
	stub := &stubElevenLabs{}
	a := newTestAdapter(t, stub)
	d := mcp.NewDispatcher(nil, a, mcp.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	var args map[string]any
	if err := json.Unmarshal([]byte(`{"agent_id":"ag_1","phone_number":"+34600000000","purpose":null}`), &args); err != nil {
		t.Fatal(err)
	}
	resp := d.Handle(context.Background(), mcp.Request{Type: mcp.RequestToolCall, ToolName: string(mcp.MakeOutboundCall), ToolArgs: args})
	if resp.IsError() {
		t.Fatalf("unexpected error %q", resp.Error)
	}
	_, path, body := stub.snapshot()
	if path != "/v1/call" || body["purpose"] != DefaultCallPurpose {
		t.Fatalf("path %s body %v", path, body)
	}
}
