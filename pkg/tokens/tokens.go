// Package tokens estimates usage figures for normalized responses.
//
// Counting uses the cl100k_base BPE shipped with tiktoken-go-loader, so no
// network access is needed at startup. When the encoding cannot be loaded
// the counter falls back to a character-based estimate.
package tokens

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/nxgate/nxgate/pkg/api"
)

// Encoding is the BPE used for counting.
const Encoding = "cl100k_base"

const (
	// tokensPerMessage covers the role and separators framing each message.
	tokensPerMessage = 3
	// tokensReplyPrimer covers the assistant reply header.
	tokensReplyPrimer = 3
)

var loaderOnce sync.Once

// Counter computes usage for a prompt and a completion.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter loads the encoding. It never fails: a load error is logged and
// the returned counter estimates instead.
func NewCounter() *Counter {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(Encoding)
	if err != nil {
		slog.Warn("token encoding unavailable, using estimates", "encoding", Encoding, "error", err.Error())
		return &Counter{}
	}
	return &Counter{enc: enc}
}

// Count returns usage for the given prompt messages and completion text.
func (c *Counter) Count(prompt []api.ChatMessage, completion string) api.Usage {
	promptTokens := tokensReplyPrimer
	for _, m := range prompt {
		promptTokens += tokensPerMessage + c.Tokens(string(m.Role)) + c.Tokens(m.Content)
	}
	completionTokens := c.Tokens(completion)
	return api.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

// Tokens counts the tokens in text.
func (c *Counter) Tokens(text string) int {
	if text == "" {
		return 0
	}
	if c == nil || c.enc == nil {
		return Estimate(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Estimate approximates a token count as one token per four characters.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
