package providers

import (
	"encoding/json"
	"net/http"

	llmerrors "github.com/ahrav/bizcase/internal/llm/errors"
)

// parseProviderError converts a non-2xx provider response into a
// ProviderError, extracting structured detail from the JSON error body when
// present and honoring the Retry-After header.
func parseProviderError(httpResp *http.Response, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	provErr := &llmerrors.ProviderError{
		Provider:   ProviderOpenAI,
		StatusCode: httpResp.StatusCode,
		Type:       llmerrors.StatusToType(httpResp.StatusCode),
		RetryAfter: retryAfterSeconds(httpResp),
	}

	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		provErr.Message = errResp.Error.Message
		provErr.Code = errResp.Error.Code
		return provErr
	}

	provErr.Message = string(body)
	return provErr
}
