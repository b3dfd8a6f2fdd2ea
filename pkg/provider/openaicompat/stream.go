package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/nxgate/nxgate/pkg/api"
	"github.com/nxgate/nxgate/pkg/debug"
	"github.com/nxgate/nxgate/pkg/provider"
)

// maxLineSize bounds a single SSE line. Some upstreams send whole
// paragraphs per event.
const maxLineSize = 1 << 20

// ParseSSEStream reads Chat Completions SSE chunks from body and sends the
// text they carry on ch. It does NOT close ch; the caller does.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	\n
//	data: [DONE]\n
//
// Reasoning deltas are wrapped in <think>...</think> so that downstream
// extraction sees the same shape as inline reasoning. Malformed chunks are
// logged and skipped; a stream in which every chunk was malformed ends with
// an upstream error. Context cancellation stops reading immediately.
func ParseSSEStream(ctx context.Context, body io.Reader, ch chan<- provider.Fragment) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		thinking  bool
		decoded   int
		malformed int
	)
	send := func(text string) bool {
		if text == "" {
			return true
		}
		select {
		case ch <- provider.Fragment{Text: text}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		if payload == "[DONE]" {
			break
		}

		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Warn("skipping malformed SSE chunk",
				"error", err.Error(),
				"data", debug.Truncate(payload, 200),
			)
			malformed++
			continue
		}
		decoded++
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		var out strings.Builder
		if delta.ReasoningContent != nil && *delta.ReasoningContent != "" {
			if !thinking {
				out.WriteString("<think>")
				thinking = true
			}
			out.WriteString(*delta.ReasoningContent)
		}
		if delta.Content != nil && *delta.Content != "" {
			if thinking {
				out.WriteString("</think>")
				thinking = false
			}
			out.WriteString(*delta.Content)
		}
		if !send(out.String()) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return
		}
		select {
		case ch <- provider.Fragment{Err: api.NewUpstreamError(0, "SSE stream read error: "+err.Error())}:
		case <-ctx.Done():
		}
		return
	}

	if decoded == 0 && malformed > 0 {
		select {
		case ch <- provider.Fragment{Err: api.NewUpstreamError(0, "no valid SSE chunks in upstream stream")}:
		case <-ctx.Done():
		}
		return
	}

	if thinking {
		send("</think>")
	}
}
