package api

import (
	"testing"
)

func intPtr(i int) *int             { return &i }
func float64Ptr(f float64) *float64 { return &f }

// validRequest returns a minimal valid ChatCompletionRequest.
func validRequest() *ChatCompletionRequest {
	return &ChatCompletionRequest{
		Model:    "test-model",
		Messages: []ChatMessage{{Role: RoleUser, Content: "hello"}},
	}
}

func TestValidateChatRequest(t *testing.T) {
	cfg := DefaultValidationConfig()

	tests := []struct {
		name      string
		modify    func(r *ChatCompletionRequest)
		wantErr   bool
		wantParam string
	}{
		{
			name:   "valid request accepted",
			modify: func(r *ChatCompletionRequest) {},
		},
		{
			name:   "empty model accepted",
			modify: func(r *ChatCompletionRequest) { r.Model = "" },
		},
		{
			name:      "empty messages rejected",
			modify:    func(r *ChatCompletionRequest) { r.Messages = nil },
			wantErr:   true,
			wantParam: "messages",
		},
		{
			name: "unknown role rejected",
			modify: func(r *ChatCompletionRequest) {
				r.Messages = append(r.Messages, ChatMessage{Role: "wizard", Content: "x"})
			},
			wantErr:   true,
			wantParam: "messages[1].role",
		},
		{
			name:      "missing role rejected",
			modify:    func(r *ChatCompletionRequest) { r.Messages[0].Role = "" },
			wantErr:   true,
			wantParam: "messages[0].role",
		},
		{
			name: "tool without name rejected",
			modify: func(r *ChatCompletionRequest) {
				r.Tools = []Tool{{Type: "function"}}
			},
			wantErr:   true,
			wantParam: "tools[0].function.name",
		},
		{
			name: "non-function tool rejected",
			modify: func(r *ChatCompletionRequest) {
				r.Tools = []Tool{{Type: "retrieval", Function: FunctionDef{Name: "x"}}}
			},
			wantErr:   true,
			wantParam: "tools[0].type",
		},
		{
			name:      "temperature out of range",
			modify:    func(r *ChatCompletionRequest) { r.Temperature = float64Ptr(2.5) },
			wantErr:   true,
			wantParam: "temperature",
		},
		{
			name:      "top_p out of range",
			modify:    func(r *ChatCompletionRequest) { r.TopP = float64Ptr(-0.1) },
			wantErr:   true,
			wantParam: "top_p",
		},
		{
			name:      "max_tokens zero rejected",
			modify:    func(r *ChatCompletionRequest) { r.MaxTokens = intPtr(0) },
			wantErr:   true,
			wantParam: "max_tokens",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.modify(req)
			apiErr := ValidateChatRequest(req, cfg)
			if !tt.wantErr {
				if apiErr != nil {
					t.Fatalf("unexpected error: %v", apiErr)
				}
				return
			}
			if apiErr == nil {
				t.Fatal("expected error, got nil")
			}
			if apiErr.Code != CodeValidation {
				t.Errorf("code = %q, want %q", apiErr.Code, CodeValidation)
			}
			if apiErr.Param != tt.wantParam {
				t.Errorf("param = %q, want %q", apiErr.Param, tt.wantParam)
			}
		})
	}
}

func TestValidateChatRequestLimits(t *testing.T) {
	cfg := ValidationConfig{MaxMessages: 2, MaxTools: 1}

	req := validRequest()
	req.Messages = make([]ChatMessage, 3)
	for i := range req.Messages {
		req.Messages[i] = ChatMessage{Role: RoleUser, Content: "x"}
	}
	if err := ValidateChatRequest(req, cfg); err == nil || err.Param != "messages" {
		t.Errorf("expected messages limit error, got %v", err)
	}

	req = validRequest()
	req.Tools = []Tool{
		{Type: "function", Function: FunctionDef{Name: "a"}},
		{Type: "function", Function: FunctionDef{Name: "b"}},
	}
	if err := ValidateChatRequest(req, cfg); err == nil || err.Param != "tools" {
		t.Errorf("expected tools limit error, got %v", err)
	}
}

func TestValidateImageRequest(t *testing.T) {
	cfg := DefaultValidationConfig()
	s := func(v string) *string { return &v }

	tests := []struct {
		name      string
		req       ImageRequest
		wantParam string
		wantN     int
	}{
		{
			name:  "defaults n to 1",
			req:   ImageRequest{Prompt: s("cat"), Model: s("flux"), Size: s("1024x1024")},
			wantN: 1,
		},
		{
			name:  "keeps explicit n",
			req:   ImageRequest{Prompt: s("cat"), Model: s("flux"), Size: s("1024x1024"), N: intPtr(3)},
			wantN: 3,
		},
		{
			name:      "missing prompt",
			req:       ImageRequest{Model: s("flux"), Size: s("1024x1024")},
			wantParam: "prompt",
		},
		{
			name:      "missing model",
			req:       ImageRequest{Prompt: s("cat"), Size: s("1024x1024")},
			wantParam: "model",
		},
		{
			name:      "missing size",
			req:       ImageRequest{Prompt: s("cat"), Model: s("flux")},
			wantParam: "size",
		},
		{
			name:      "zero n",
			req:       ImageRequest{Prompt: s("cat"), Model: s("flux"), Size: s("1x1"), N: intPtr(0)},
			wantParam: "n",
		},
		{
			name:      "too many images",
			req:       ImageRequest{Prompt: s("cat"), Model: s("flux"), Size: s("1x1"), N: intPtr(11)},
			wantParam: "n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			apiErr := ValidateImageRequest(&req, cfg)
			if tt.wantParam != "" {
				if apiErr == nil || apiErr.Param != tt.wantParam {
					t.Fatalf("expected error on %q, got %v", tt.wantParam, apiErr)
				}
				return
			}
			if apiErr != nil {
				t.Fatalf("unexpected error: %v", apiErr)
			}
			if *req.N != tt.wantN {
				t.Errorf("n = %d, want %d", *req.N, tt.wantN)
			}
		})
	}
}
