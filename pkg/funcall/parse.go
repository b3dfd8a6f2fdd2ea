package funcall

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/nxgate/nxgate/pkg/api"
)

var (
	toolPattern = regexp.MustCompile(`<tool>(.*?)</tool>`)
	argsPattern = regexp.MustCompile(`<args>([\s\S]*?)</args>`)
	argPattern  = regexp.MustCompile(`<(\w+)>(.*?)</\w+>`)
)

// Invocation is a function call parsed from model output. Argument values
// are always strings.
type Invocation struct {
	Name string
	Args map[string]string

	// keys holds argument names in first-seen order.
	keys []string
}

// Keys returns the argument names in the order they first appeared.
func (inv *Invocation) Keys() []string {
	return inv.keys
}

// set assigns an argument. A repeated key overwrites the earlier value but
// keeps its original position.
func (inv *Invocation) set(key, value string) {
	if _, ok := inv.Args[key]; !ok {
		inv.keys = append(inv.keys, key)
	}
	inv.Args[key] = value
}

// ParseFunctionCall extracts a function call from text. The parse is
// lenient: the first <tool> element names the call, and every child element
// of the first <args> block becomes an argument. Text outside those tags is
// ignored. It returns false when no <tool> element is present.
func ParseFunctionCall(text string) (*Invocation, bool) {
	m := toolPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}

	inv := &Invocation{
		Name: strings.TrimSpace(m[1]),
		Args: make(map[string]string),
	}

	block := argsPattern.FindStringSubmatch(text)
	if block == nil {
		return inv, true
	}
	for _, arg := range argPattern.FindAllStringSubmatch(block[1], -1) {
		inv.set(arg[1], arg[2])
	}
	return inv, true
}

// ArgumentsJSON encodes the arguments as a JSON object in first-seen key
// order.
func (inv *Invocation) ArgumentsJSON() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range inv.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(&buf, k)
		buf.WriteByte(':')
		writeJSONString(&buf, inv.Args[k])
	}
	buf.WriteByte('}')
	return buf.String()
}

// ToolCall converts the invocation into an OpenAI tool call with the given id.
func (inv *Invocation) ToolCall(id string) api.ToolCall {
	return api.ToolCall{
		ID:   id,
		Type: "function",
		Function: api.FunctionCall{
			Name:      inv.Name,
			Arguments: inv.ArgumentsJSON(),
		},
	}
}

// ApplyToResponse rewrites the first choice of resp into the tool-call form:
// content becomes null, tool_calls holds exactly one call and the finish
// reason is "tool_calls".
func ApplyToResponse(resp *api.ChatCompletionResponse, inv *Invocation) {
	if inv == nil {
		return
	}
	call := inv.ToolCall(api.NewCallID())
	if len(resp.Choices) == 0 {
		resp.Choices = append(resp.Choices, api.Choice{})
	}
	c := &resp.Choices[0]
	c.Message = api.ResponseMessage{
		Role:      api.RoleAssistant,
		ToolCalls: []api.ToolCall{call},
	}
	c.FinishReason = api.FinishReasonToolCalls
}

func writeJSONString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	// Encode appends a newline.
	_ = enc.Encode(s)
	buf.Truncate(buf.Len() - 1)
}
