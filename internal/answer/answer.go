// Package answer classifies raw model output into the shapes the card
// dispatcher understands.
package answer

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Answer is one of PlainText, Structured or OutOfScope.
type Answer interface {
	isAnswer()
}

// PlainText is free text meant to be shown to the user as-is.
type PlainText struct {
	Text string
}

// Structured is a JSON object or array returned by the model: either a single
// service match or a list of options with a clarification question.
type Structured struct {
	Raw  json.RawMessage
	List bool
}

// OutOfScope means the model refused the query as unrelated to any service.
type OutOfScope struct {
	Message string
}

func (PlainText) isAnswer()  {}
func (Structured) isAnswer() {}
func (OutOfScope) isAnswer() {}

// ServiceRef is a single service match.
type ServiceRef struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Classify never fails: anything that is not a JSON object or array ends up
// as PlainText.
func Classify(raw string) Answer {
	trimmed := bytes.TrimSpace([]byte(raw))
	if !json.Valid(trimmed) {
		return PlainText{Text: raw}
	}

	switch trimmed[0] {
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return PlainText{Text: raw}
		}
		if msg, ok := fields["error_message"]; ok {
			return OutOfScope{Message: textOf(msg)}
		}
		return Structured{Raw: compact(trimmed)}
	case '[':
		return Structured{Raw: compact(trimmed), List: true}
	case '"':
		return PlainText{Text: textOf(trimmed)}
	default:
		// numbers, true, false and null keep their literal form
		return PlainText{Text: string(trimmed)}
	}
}

// Options returns the options list and clarification question when the
// payload carries both keys.
func (s Structured) Options() (json.RawMessage, string, bool) {
	if s.List {
		return nil, "", false
	}
	var v struct {
		Options  json.RawMessage `json:"options"`
		Question *string         `json:"clarification_question"`
	}
	if err := json.Unmarshal(s.Raw, &v); err != nil {
		return nil, "", false
	}
	if len(v.Options) == 0 || v.Question == nil {
		return nil, "", false
	}
	return v.Options, *v.Question, true
}

// Service returns the single match when the payload is a {code, name} object.
func (s Structured) Service() (ServiceRef, bool) {
	if s.List {
		return ServiceRef{}, false
	}
	var ref ServiceRef
	if err := json.Unmarshal(s.Raw, &ref); err != nil {
		return ServiceRef{}, false
	}
	if ref.Code == "" || ref.Name == "" {
		return ServiceRef{}, false
	}
	return ref, true
}

// textOf renders a JSON scalar as text: strings without quotes, null as the
// empty string, everything else as its literal.
func textOf(v json.RawMessage) string {
	if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(v))
}

func compact(b []byte) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return json.RawMessage(b)
	}
	return json.RawMessage(buf.Bytes())
}
