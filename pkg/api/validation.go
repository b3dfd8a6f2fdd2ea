package api

import "fmt"

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxMessages int
	MaxTools    int
	MaxImages   int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxMessages: 1000,
		MaxTools:    128,
		MaxImages:   10,
	}
}

// ValidateChatRequest checks a ChatCompletionRequest. It returns an
// *APIError describing the first failure, or nil if the request is valid.
// The model is not checked here; an empty model is replaced by the
// configured default before routing.
func ValidateChatRequest(req *ChatCompletionRequest, cfg ValidationConfig) *APIError {
	if len(req.Messages) == 0 {
		return NewValidationError("messages", "messages must be a non-empty array")
	}

	if cfg.MaxMessages > 0 && len(req.Messages) > cfg.MaxMessages {
		return NewValidationError("messages",
			fmt.Sprintf("messages exceeds maximum of %d", cfg.MaxMessages))
	}

	for i, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		case "":
			return NewValidationError(fmt.Sprintf("messages[%d].role", i), "role is required")
		default:
			return NewValidationError(fmt.Sprintf("messages[%d].role", i),
				fmt.Sprintf("unsupported role %q", msg.Role))
		}
	}

	if cfg.MaxTools > 0 && len(req.Tools) > cfg.MaxTools {
		return NewValidationError("tools",
			fmt.Sprintf("tools exceeds maximum of %d", cfg.MaxTools))
	}

	for i, tool := range req.Tools {
		if tool.Type != "" && tool.Type != "function" {
			return NewValidationError(fmt.Sprintf("tools[%d].type", i),
				fmt.Sprintf("unsupported tool type %q", tool.Type))
		}
		if tool.Function.Name == "" {
			return NewValidationError(fmt.Sprintf("tools[%d].function.name", i), "function name is required")
		}
	}

	if req.Temperature != nil && (*req.Temperature < 0.0 || *req.Temperature > 2.0) {
		return NewValidationError("temperature", "temperature must be between 0.0 and 2.0")
	}

	if req.TopP != nil && (*req.TopP < 0.0 || *req.TopP > 1.0) {
		return NewValidationError("top_p", "top_p must be between 0.0 and 1.0")
	}

	if req.MaxTokens != nil && *req.MaxTokens <= 0 {
		return NewValidationError("max_tokens", "max_tokens must be positive")
	}

	return nil
}

// ValidateImageRequest checks an ImageRequest and applies the default n=1.
func ValidateImageRequest(req *ImageRequest, cfg ValidationConfig) *APIError {
	if req.Prompt == nil {
		return NewValidationError("prompt", "prompt must be a string")
	}
	if req.Model == nil {
		return NewValidationError("model", "model must be a string")
	}
	if req.Size == nil {
		return NewValidationError("size", "size must be a string")
	}
	if req.N == nil {
		n := 1
		req.N = &n
	}
	if *req.N < 1 {
		return NewValidationError("n", "n must be a number greater than 0")
	}
	if cfg.MaxImages > 0 && *req.N > cfg.MaxImages {
		return NewValidationError("n", fmt.Sprintf("n exceeds maximum of %d", cfg.MaxImages))
	}
	return nil
}
