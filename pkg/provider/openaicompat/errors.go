package openaicompat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nxgate/nxgate/pkg/api"
)

// MapHTTPError converts an upstream response with a non-2xx status code
// into an upstream APIError. The upstream status is kept for client errors
// that the caller can act on (429); everything else becomes 502.
func MapHTTPError(resp *http.Response) *api.APIError {
	message := ExtractErrorMessage(resp.Body)

	status := http.StatusBadGateway
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		status = http.StatusTooManyRequests
		if message == "" {
			message = "upstream rate limit exceeded"
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if message == "" {
			message = "upstream authentication failed"
		}
	case resp.StatusCode == http.StatusNotFound:
		if message == "" {
			message = "upstream resource not found"
		}
	case resp.StatusCode >= http.StatusInternalServerError:
		if message == "" {
			message = fmt.Sprintf("upstream server error (HTTP %d)", resp.StatusCode)
		}
	default:
		if message == "" {
			message = fmt.Sprintf("unexpected upstream error (HTTP %d)", resp.StatusCode)
		}
	}
	return api.NewUpstreamError(status, message)
}

// MapNetworkError converts a network-level error (connection refused,
// timeout, DNS failure) into an upstream APIError.
func MapNetworkError(err error) *api.APIError {
	return api.NewUpstreamError(0, fmt.Sprintf("upstream connection error: %s", err.Error()))
}

// ExtractErrorMessage tries to parse the response body as a
// ChatErrorResponse. Plain-text bodies are returned trimmed.
func ExtractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp ChatErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil {
		return errResp.Error.Message
	}

	return strings.TrimSpace(string(data))
}
