// Package reasoning separates an inline <think>...</think> segment from the
// visible answer text.
package reasoning

import (
	"regexp"
	"strings"

	"github.com/nxgate/nxgate/pkg/api"
)

var thinkPattern = regexp.MustCompile(`(?is)<think>(.*?)</think>`)

// Extractor splits reasoning from content. The zero value is disabled.
type Extractor struct {
	Enabled bool
}

// New returns an Extractor.
func New(enabled bool) *Extractor {
	return &Extractor{Enabled: enabled}
}

// HasReasoning reports whether content contains a complete think segment.
func HasReasoning(content string) bool {
	return thinkPattern.MatchString(content)
}

// Process splits the first think segment out of content. The returned
// content is the remainder with the segment removed and trimmed; the
// reasoning is the trimmed inner text. Either is nil when empty. When the
// extractor is disabled or no segment is present, content is returned
// unchanged and reasoning is nil.
func (e *Extractor) Process(content string) (*string, *string) {
	if e == nil || !e.Enabled {
		return &content, nil
	}
	loc := thinkPattern.FindStringSubmatchIndex(content)
	if loc == nil {
		return &content, nil
	}

	reasoning := nonEmpty(strings.TrimSpace(content[loc[2]:loc[3]]))
	visible := nonEmpty(strings.TrimSpace(content[:loc[0]] + content[loc[1]:]))
	return visible, reasoning
}

// ProcessResponse applies Process to every choice with non-empty content.
func (e *Extractor) ProcessResponse(resp *api.ChatCompletionResponse) {
	if e == nil || !e.Enabled || resp == nil {
		return
	}
	for i := range resp.Choices {
		msg := &resp.Choices[i].Message
		if msg.Content == nil || *msg.Content == "" {
			continue
		}
		if !HasReasoning(*msg.Content) {
			continue
		}
		msg.Content, msg.ReasoningContent = e.Process(*msg.Content)
	}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
