package funcall

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/nxgate/nxgate/pkg/api"
)

var callID = regexp.MustCompile(`^call_[a-zA-Z0-9]{24}$`)

func lookupTool() api.Tool {
	return api.Tool{
		Type: "function",
		Function: api.FunctionDef{
			Name:        "lookup",
			Description: "d",
			Parameters: api.ToolParameters{
				Properties: api.Properties{{Name: "q", Type: "string"}},
			},
		},
	}
}

func TestBuildToolPromptEmpty(t *testing.T) {
	if got := BuildToolPrompt(nil); got != "" {
		t.Errorf("BuildToolPrompt(nil) = %q, want empty", got)
	}
	if got := BuildToolPrompt([]api.Tool{}); got != "" {
		t.Errorf("BuildToolPrompt([]) = %q, want empty", got)
	}
}

func TestBuildToolPrompt(t *testing.T) {
	noParams := api.Tool{Type: "function", Function: api.FunctionDef{Name: "now", Description: "current time"}}
	multi := api.Tool{Type: "function", Function: api.FunctionDef{
		Name:        "search",
		Description: "web search",
		Parameters: api.ToolParameters{Properties: api.Properties{
			{Name: "query", Type: "string"},
			{Name: "limit", Type: "integer"},
		}},
	}}

	prompt := BuildToolPrompt([]api.Tool{lookupTool(), noParams, multi})

	wants := []string{
		"1. <tool name=\"lookup\" description=\"d\">\n   Parameters: q (string)",
		"2. <tool name=\"now\" description=\"current time\">\n   Parameters: none",
		"3. <tool name=\"search\" description=\"web search\">\n   Parameters: query (string), limit (integer)",
		"\nFC_USE\n",
		"<function_call>",
		"<tool>tool_name</tool>",
	}
	for _, w := range wants {
		if !strings.Contains(prompt, w) {
			t.Errorf("prompt missing %q\n%s", w, prompt)
		}
	}
}

func TestPrepareMessages(t *testing.T) {
	msgs := []api.ChatMessage{{Role: api.RoleUser, Content: "hi"}}

	got, offered := PrepareMessages(msgs, nil)
	if offered {
		t.Error("no tools should not offer tool use")
	}
	if !reflect.DeepEqual(got, msgs) {
		t.Errorf("messages changed without tools: %+v", got)
	}

	got, offered = PrepareMessages(msgs, []api.Tool{lookupTool()})
	if !offered {
		t.Fatal("tools should offer tool use")
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Role != api.RoleSystem || !strings.Contains(got[0].Content, "lookup") {
		t.Errorf("first message = %+v, want system tool prompt", got[0])
	}
	if got[1] != msgs[0] {
		t.Errorf("original message moved: %+v", got[1])
	}
	if len(msgs) != 1 {
		t.Error("input slice was modified")
	}
}

func TestParseFunctionCall(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantOK   bool
		wantName string
		wantArgs string
	}{
		{
			name:     "well formed",
			text:     "FC_USE\nLet me look.\n<function_call><tool>lookup</tool><args><q>cats</q></args></function_call>",
			wantOK:   true,
			wantName: "lookup",
			wantArgs: `{"q":"cats"}`,
		},
		{
			name: "indented block",
			text: `FC_USE
<function_call>
  <tool> search </tool>
  <args>
    <query>go generics</query>
    <limit>5</limit>
  </args>
</function_call>`,
			wantOK:   true,
			wantName: "search",
			wantArgs: `{"query":"go generics","limit":"5"}`,
		},
		{
			name:     "missing args",
			text:     "<tool>now</tool>",
			wantOK:   true,
			wantName: "now",
			wantArgs: `{}`,
		},
		{
			name:     "unterminated args",
			text:     "<tool>now</tool><args><a>1</a>",
			wantOK:   true,
			wantName: "now",
			wantArgs: `{}`,
		},
		{
			name:     "duplicate keys last wins",
			text:     "<tool>t</tool><args><a>1</a><b>2</b><a>3</a></args>",
			wantOK:   true,
			wantName: "t",
			wantArgs: `{"a":"3","b":"2"}`,
		},
		{
			name:     "multiple blocks first wins",
			text:     "<function_call><tool>first</tool><args><x>1</x></args></function_call><function_call><tool>second</tool><args><y>2</y></args></function_call>",
			wantOK:   true,
			wantName: "first",
			wantArgs: `{"x":"1"}`,
		},
		{
			name:     "html characters not escaped",
			text:     "<tool>t</tool><args><expr>a&b</expr></args>",
			wantOK:   true,
			wantName: "t",
			wantArgs: `{"expr":"a&b"}`,
		},
		{
			name:   "no tool element",
			text:   "FC_USE\n<args><q>cats</q></args>",
			wantOK: false,
		},
		{
			name:   "plain text",
			text:   "hello there",
			wantOK: false,
		},
		{
			name:   "tool split across lines is not matched",
			text:   "<tool>look\nup</tool>",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, ok := ParseFunctionCall(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if inv.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", inv.Name, tt.wantName)
			}
			if got := inv.ArgumentsJSON(); got != tt.wantArgs {
				t.Errorf("ArgumentsJSON() = %s, want %s", got, tt.wantArgs)
			}
			var decoded map[string]string
			if err := json.Unmarshal([]byte(inv.ArgumentsJSON()), &decoded); err != nil {
				t.Errorf("arguments are not valid JSON: %v", err)
			}
		})
	}
}

func TestToolCall(t *testing.T) {
	inv, _ := ParseFunctionCall("<tool>lookup</tool><args><q>cats</q></args>")
	call := inv.ToolCall("call_x")
	want := api.ToolCall{
		ID:       "call_x",
		Type:     "function",
		Function: api.FunctionCall{Name: "lookup", Arguments: `{"q":"cats"}`},
	}
	if !reflect.DeepEqual(call, want) {
		t.Errorf("ToolCall = %+v, want %+v", call, want)
	}
}

func TestApplyToResponse(t *testing.T) {
	resp := &api.ChatCompletionResponse{
		Model: "alias",
		Choices: []api.Choice{{
			Index:        0,
			Message:      api.ResponseMessage{Role: api.RoleAssistant, Content: api.StringPtr("FC_USE ...")},
			FinishReason: api.FinishReasonStop,
		}},
	}
	inv, _ := ParseFunctionCall("<tool>lookup</tool><args><q>cats</q></args>")

	ApplyToResponse(resp, inv)

	c := resp.Choices[0]
	if c.Message.Content != nil {
		t.Errorf("content = %q, want nil", *c.Message.Content)
	}
	if c.FinishReason != api.FinishReasonToolCalls {
		t.Errorf("finish_reason = %q", c.FinishReason)
	}
	if len(c.Message.ToolCalls) != 1 {
		t.Fatalf("tool_calls len = %d, want 1", len(c.Message.ToolCalls))
	}
	tc := c.Message.ToolCalls[0]
	if !callID.MatchString(tc.ID) {
		t.Errorf("tool call id %q is not a valid call id", tc.ID)
	}
	if tc.Function.Name != "lookup" || tc.Function.Arguments != `{"q":"cats"}` {
		t.Errorf("function = %+v", tc.Function)
	}
}

func TestApplyToResponseNil(t *testing.T) {
	resp := &api.ChatCompletionResponse{Choices: []api.Choice{{FinishReason: "stop"}}}
	ApplyToResponse(resp, nil)
	if resp.Choices[0].FinishReason != "stop" {
		t.Error("nil invocation should leave response unchanged")
	}
}
