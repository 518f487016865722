package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is a non-2xx response from the Trading212 API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("trading212 api error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("trading212 api error (%d)", e.StatusCode)
}

// Transient reports whether the error is worth retrying. Client errors
// other than timeout and rate limiting are permanent.
func (e *APIError) Transient() bool {
	switch e.StatusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

type errorResponse struct {
	Code          string `json:"code"`
	Clarification string `json:"clarification"`
	Message       string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		switch {
		case apiErr.Clarification != "":
			return &APIError{StatusCode: status, Message: apiErr.Clarification}
		case apiErr.Message != "":
			return &APIError{StatusCode: status, Message: apiErr.Message}
		case apiErr.Code != "":
			return &APIError{StatusCode: status, Message: apiErr.Code}
		}
	}
	if len(payload) > 0 {
		return &APIError{StatusCode: status, Message: strings.TrimSpace(string(payload))}
	}
	return &APIError{StatusCode: status}
}
