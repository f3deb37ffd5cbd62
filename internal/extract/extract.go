// Package extract pulls the structured JSON payload out of free-form model text.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmpty     = errors.New("empty payload")
	ErrMalformed = errors.New("malformed payload")
)

// Error carries the failure kind and the untouched model text.
type Error struct {
	Kind    error
	RawText string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v: %v", e.Kind, e.Cause)
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error { return e.Kind }

// Result is a successfully decoded payload.
type Result struct {
	// Payload is the decoded JSON value: map[string]any, []any or a scalar.
	Payload any
	// Candidate is the JSON text the payload was decoded from.
	Candidate json.RawMessage
}

// Object returns the payload when it is a JSON object.
func (r Result) Object() (map[string]any, bool) {
	m, ok := r.Payload.(map[string]any)
	return m, ok
}

// Decode unmarshals the candidate text into v.
func (r Result) Decode(v any) error {
	return json.Unmarshal(r.Candidate, v)
}

// Extract takes the content of the first ```json fence, or of a bare ``` fence
// when no json-tagged one exists, and falls back to the whole text otherwise.
func Extract(rawText string) (Result, error) {
	candidate := strings.TrimSpace(Candidate(rawText))
	if candidate == "" {
		return Result{}, &Error{Kind: ErrEmpty, RawText: rawText}
	}

	var payload any
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return Result{}, &Error{Kind: ErrMalformed, RawText: rawText, Cause: err}
	}
	return Result{Payload: payload, Candidate: json.RawMessage(candidate)}, nil
}

// Candidate returns the text Extract would try to parse.
func Candidate(rawText string) string {
	if inner, ok := fenced(rawText, true); ok {
		return inner
	}
	if inner, ok := fenced(rawText, false); ok {
		return inner
	}
	return rawText
}

const fence = "```"

// fenced finds the first opening fence of the wanted kind and returns what lies
// between it and the next closing fence. An unclosed fence runs to the end.
func fenced(text string, jsonOnly bool) (string, bool) {
	rest := text
	for {
		i := strings.Index(rest, fence)
		if i < 0 {
			return "", false
		}
		after := rest[i+len(fence):]
		body, ok := openFence(after, jsonOnly)
		if !ok {
			// Not ours: skip this block including its closing fence.
			j := strings.Index(after, fence)
			if j < 0 {
				return "", false
			}
			rest = after[j+len(fence):]
			continue
		}
		if j := strings.Index(body, fence); j >= 0 {
			return body[:j], true
		}
		return body, true
	}
}

// openFence reports whether the text right after ``` opens a json fence
// (jsonOnly) or an untagged one, and returns the fence body.
func openFence(after string, jsonOnly bool) (string, bool) {
	if jsonOnly {
		if len(after) < 4 || !strings.EqualFold(after[:4], "json") {
			return "", false
		}
		body := after[4:]
		// ```jsonl, ```json5 and friends are not plain json.
		if body != "" && !strings.ContainsRune(" \t\r\n{[", rune(body[0])) {
			return "", false
		}
		return body, true
	}
	lineEnd := strings.IndexAny(after, "\r\n")
	if lineEnd < 0 || strings.TrimSpace(after[:lineEnd]) != "" {
		return "", false
	}
	return after[lineEnd:], true
}
