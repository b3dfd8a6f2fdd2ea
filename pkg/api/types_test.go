package api

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

// assertDeepEqual fails the test if got and want are not deeply equal.
func assertDeepEqual(t *testing.T, got, want any) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mismatch\n got: %+v\nwant: %+v", got, want)
	}
}

func TestChatMessageUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ChatMessage
		wantErr bool
	}{
		{
			name:  "string content",
			input: `{"role":"user","content":"hi"}`,
			want:  ChatMessage{Role: RoleUser, Content: "hi"},
		},
		{
			name:  "null content",
			input: `{"role":"assistant","content":null}`,
			want:  ChatMessage{Role: RoleAssistant},
		},
		{
			name:  "missing content",
			input: `{"role":"system"}`,
			want:  ChatMessage{Role: RoleSystem},
		},
		{
			name:  "content parts joined",
			input: `{"role":"user","content":[{"type":"text","text":"a"},{"type":"image_url","image_url":{"url":"x"}},{"type":"text","text":"b"}]}`,
			want:  ChatMessage{Role: RoleUser, Content: "a\nb"},
		},
		{
			name:    "numeric content rejected",
			input:   `{"role":"user","content":42}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ChatMessage
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal error: %v", err)
			}
			assertDeepEqual(t, got, tt.want)
		})
	}
}

func TestPropertiesKeepOrder(t *testing.T) {
	input := `{"type":"object","properties":{"zeta":{"type":"string"},"alpha":{"type":"integer","description":"n"},"mid":{"type":["string","null"]}}}`

	var params ToolParameters
	if err := json.Unmarshal([]byte(input), &params); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	want := Properties{
		{Name: "zeta", Type: "string"},
		{Name: "alpha", Type: "integer", Description: "n"},
		{Name: "mid", Type: "string|null"},
	}
	assertDeepEqual(t, params.Properties, want)

	data, err := json.Marshal(params.Properties)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if !strings.HasPrefix(string(data), `{"zeta":`) {
		t.Errorf("marshal lost order: %s", data)
	}
}

func TestPropertiesRejectsArray(t *testing.T) {
	var p Properties
	if err := json.Unmarshal([]byte(`["a"]`), &p); err == nil {
		t.Error("expected error for array properties")
	}
}

func TestResponseMessageNullContent(t *testing.T) {
	msg := ResponseMessage{
		Role: RoleAssistant,
		ToolCalls: []ToolCall{{
			ID:       "call_1",
			Type:     "function",
			Function: FunctionCall{Name: "lookup", Arguments: `{"q":"cats"}`},
		}},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if string(raw["content"]) != "null" {
		t.Errorf("content = %s, want null", raw["content"])
	}
	if _, ok := raw["reasoning_content"]; ok {
		t.Error("reasoning_content should be omitted when nil")
	}
}

func TestChunkFinishReasonSerialized(t *testing.T) {
	chunk := ChatCompletionChunk{
		ID:     "chatcmpl-1",
		Object: ObjectChatCompletionChunk,
		Model:  "m",
		Choices: []ChunkChoice{{
			Index: 0,
			Delta: ChunkDelta{Content: StringPtr("he")},
		}},
	}
	data, err := json.Marshal(chunk)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"finish_reason":null`) {
		t.Errorf("expected explicit null finish_reason, got %s", s)
	}
	if !strings.Contains(s, `"delta":{"content":"he"}`) {
		t.Errorf("unexpected delta encoding: %s", s)
	}
}

func TestEmptyDeltaEncodesAsObject(t *testing.T) {
	stop := FinishReasonStop
	data, err := json.Marshal(ChunkChoice{FinishReason: &stop})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	want := `{"index":0,"delta":{},"finish_reason":"stop"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestImageRequestMissingFields(t *testing.T) {
	var req ImageRequest
	if err := json.Unmarshal([]byte(`{"prompt":"a cat"}`), &req); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if req.Prompt == nil || *req.Prompt != "a cat" {
		t.Errorf("prompt = %v", req.Prompt)
	}
	if req.Model != nil || req.Size != nil || req.N != nil {
		t.Errorf("expected nil model/size/n, got %+v", req)
	}
}
