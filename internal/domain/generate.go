package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse is wrapped by errors for response bodies that are not
// a JSON object.
var ErrMalformedResponse = errors.New("malformed response body")

// GenerateRequest is the body posted to the generation endpoint.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateResponse is the decoded body of a generation response. Services
// disagree on the key carrying the generated text, so all known ones are kept.
type GenerateResponse struct {
	Result   json.RawMessage `json:"result,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
	Output   json.RawMessage `json:"output,omitempty"`
	Error    json.RawMessage `json:"error,omitempty"`
	Detail   json.RawMessage `json:"detail,omitempty"`
}

// DecodeGenerateResponse decodes a response body. Anything other than a
// JSON object, including null, wraps ErrMalformedResponse.
func DecodeGenerateResponse(body []byte) (GenerateResponse, error) {
	var r GenerateResponse
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		if !json.Valid(trimmed) {
			return r, fmt.Errorf("%w: not valid JSON", ErrMalformedResponse)
		}
		return r, fmt.Errorf("%w: not a JSON object", ErrMalformedResponse)
	}
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return r, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return r, nil
}

// Text returns the generated text and whether any result key was present.
// Strings are returned as is, other values as compact JSON.
func (r GenerateResponse) Text() (string, bool) {
	for _, raw := range []json.RawMessage{r.Result, r.Response, r.Output} {
		if text, ok := textOf(raw); ok {
			return text, true
		}
	}
	return "", false
}

// ErrorMessage returns the failure message carried by the body, if any.
func (r GenerateResponse) ErrorMessage() (string, bool) {
	for _, raw := range []json.RawMessage{r.Error, r.Detail} {
		if msg, ok := messageOf(raw); ok {
			return msg, true
		}
	}
	return "", false
}

// Reply is a successful generation.
type Reply struct {
	StatusCode int
	Text       string
}

func messageOf(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if isAbsent(raw) {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}

	var obj struct {
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != nil {
		return *obj.Message, true
	}

	return compact(raw), true
}

func textOf(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if isAbsent(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return compact(raw), true
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return buf.String()
}
