package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/nxgate/nxgate/pkg/provider/openaicompat"
)

const mockModel = "mock-1"

// toolNamePattern finds advertised tool names in the injected tool list.
var toolNamePattern = regexp.MustCompile(`<tool name="([^"]+)"`)

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("POST /v1/images/generations", handleImages)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req openaicompat.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	text := reply(req.Messages)
	model := req.Model
	if model == "" {
		model = mockModel
	}

	if req.Stream {
		streamReply(w, text)
		return
	}

	writeJSON(w, http.StatusOK, openaicompat.ChatCompletionResponse{
		ID:    "chatcmpl-mock",
		Model: model,
		Choices: []openaicompat.ChatChoice{{
			Index:        0,
			Message:      openaicompat.ChatMessage{Role: "assistant", Content: text},
			FinishReason: "stop",
		}},
	})
}

// reply computes the deterministic answer for a conversation.
func reply(messages []openaicompat.ChatMessage) string {
	var system, user string
	for _, m := range messages {
		switch m.Role {
		case "system":
			system += openaicompat.ContentString(m.Content)
		case "user":
			user = openaicompat.ContentString(m.Content)
		}
	}
	lower := strings.ToLower(user)

	if strings.Contains(lower, "weather") {
		if m := toolNamePattern.FindStringSubmatch(system); m != nil {
			return fmt.Sprintf("FC_USE\nLet me look that up.\n<function_call>\n  <tool>%s</tool>\n  <args>\n    <location>Paris</location>\n  </args>\n</function_call>", m[1])
		}
	}
	if strings.Contains(lower, "think") {
		return "<think>The user wants me to reason first.</think>Here is my answer: " + user
	}
	return "You said: " + user
}

// streamReply sends text as SSE chunks of a few words each.
func streamReply(w http.ResponseWriter, text string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	for _, part := range splitKeep(text, 3) {
		writeChunk(w, openaicompat.ChatChunkDelta{Content: &part}, nil)
		flusher.Flush()
	}
	stop := "stop"
	writeChunk(w, openaicompat.ChatChunkDelta{}, &stop)
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeChunk(w http.ResponseWriter, delta openaicompat.ChatChunkDelta, finish *string) {
	data, _ := json.Marshal(openaicompat.ChatCompletionChunk{
		ID: "chatcmpl-mock",
		Choices: []openaicompat.ChatChunkChoice{{
			Index:        0,
			Delta:        delta,
			FinishReason: finish,
		}},
	})
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// splitKeep cuts text into pieces of n whitespace-separated words while
// keeping the separators, so joining the pieces restores text.
func splitKeep(text string, n int) []string {
	var parts []string
	words := 0
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == ' ' || text[i] == '\n' {
			words++
			if words == n {
				parts = append(parts, text[start:i+1])
				start = i + 1
				words = 0
			}
		}
	}
	if start < len(text) {
		parts = append(parts, text[start:])
	}
	return parts
}

func handleImages(w http.ResponseWriter, r *http.Request) {
	var req openaicompat.ImageGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	slug := strings.ReplaceAll(strings.ToLower(req.Prompt), " ", "-")
	writeJSON(w, http.StatusOK, map[string]any{
		"created": time.Now().Unix(),
		"data":    []map[string]string{{"url": "https://images.mock/" + slug + ".png"}},
	})
}

func handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, openaicompat.ChatModelsResponse{
		Object: "list",
		Data: []openaicompat.ChatModel{
			{ID: mockModel, Object: "model", OwnedBy: "mock"},
			{ID: "mock-think", Object: "model", OwnedBy: "mock"},
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"message": msg, "type": "invalid_request_error"},
	})
}
