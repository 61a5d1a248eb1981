package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"voicecal-mcp/internal/logbuf"
	"voicecal-mcp/internal/logging"
	"voicecal-mcp/internal/mcp"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

type endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

var endpoints = []endpoint{
	{Path: "/mcp", Method: http.MethodPost, Description: "MCP discovery and tool calls"},
	{Path: "/health", Method: http.MethodGet, Description: "Liveness check"},
	{Path: "/logs", Method: http.MethodGet, Description: "Recent log entries (since, level, limit)"},
	{Path: "/", Method: http.MethodGet, Description: "Server information"},
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "voicecal-mcp",
		"description": "MCP server exposing Cal.com scheduling and ElevenLabs voice tools",
		"endpoints":   endpoints,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMCP always answers 200; failures travel inside the envelope.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	var req mcp.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		s.logger.WarnContext(r.Context(), "undecodable MCP request", "error", err)
		writeJSON(w, http.StatusOK, mcp.ProtocolError("invalid JSON request body"))
		return
	}
	writeJSON(w, http.StatusOK, s.mcp.Handle(r.Context(), req))
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusOK, []logbuf.Entry{})
		return
	}
	q := r.URL.Query()
	f := logbuf.Filter{Limit: defaultLogLimit}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		f.Limit = min(n, maxLogLimit)
	}
	if v := q.Get("level"); v != "" {
		lvl, err := logging.ParseLevel(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		f.MinLevel = lvl
	} else {
		f.MinLevel = slog.LevelDebug
	}
	if v := q.Get("since"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be unix milliseconds"})
			return
		}
		f.Since = time.UnixMilli(ms)
	}

	writeJSON(w, http.StatusOK, s.logs.Query(f))
}
