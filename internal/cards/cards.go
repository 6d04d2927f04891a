// Package cards turns a classified model answer into the response card the
// calling UI renders.
package cards

import (
	"bytes"
	"encoding/json"
	"strings"

	"redirect-agent-backend/internal/answer"
	"redirect-agent-backend/internal/types"
)

// NextAgent and SubType are fixed: this agent always hands off to the
// redirect step.
const (
	NextAgent = "redirect"
	SubType   = "redirect"
)

// Type is the card_type value on the wire.
type Type string

// Card types.
const (
	TypeText    Type = "text"
	TypeOptions Type = "options"
	TypeJSON    Type = "json"
	TypeError   Type = "error"
)

// Texts and codes used when the model leaves a field empty.
const (
	DefaultJSONText      = "..."
	DefaultJSONContent   = "{}"
	FoundText            = "זה מה שמצאתי:"
	DefaultErrorText     = "אני מצטער, אך בקשתך אינה נמצאת בתחום הטיפול שלי. אני יכול לעזור לך במידע רפואי, קביעת תורים, ומציאת"
	DefaultErrorMsg      = "failed to pass Agent Rail Guard -> out of scope"
	DefaultOutOfScopeErr = 429
)

// Card is one of TextCard, OptionsCard, JSONCard or ErrorCard.
type Card interface {
	Type() Type
}

// TextCard carries a plain reply.
type TextCard struct {
	Text string
}

// OptionsCard offers a fixed list of choices.
type OptionsCard struct {
	Text    string
	Options []string
}

// JSONCard carries a serialized service match or option list.
type JSONCard struct {
	Text    string
	Content string
}

// ErrorCard tells the caller the query is out of scope.
type ErrorCard struct {
	Text      string
	CodeError int
	ErrorMsg  string
}

func (TextCard) Type() Type    { return TypeText }
func (OptionsCard) Type() Type { return TypeOptions }
func (JSONCard) Type() Type    { return TypeJSON }
func (ErrorCard) Type() Type   { return TypeError }

// Defaults holds the configured values for fields the model never sets.
type Defaults struct {
	OutOfScopeCode int
	ErrorMsg       string
	FoundText      string
}

// DefaultDefaults returns the built-in error code, error message and found text.
func DefaultDefaults() Defaults {
	return Defaults{
		OutOfScopeCode: DefaultOutOfScopeErr,
		ErrorMsg:       DefaultErrorMsg,
		FoundText:      FoundText,
	}
}

// NewTextCard builds a text card.
func NewTextCard(text string) TextCard {
	return TextCard{Text: text}
}

// NewOptionsCard builds an options card; nil options become an empty list.
func NewOptionsCard(text string, options []string) OptionsCard {
	if options == nil {
		options = []string{}
	}
	return OptionsCard{Text: text, Options: options}
}

// NewJSONCard builds a JSON card, filling empty text and content with defaults.
func NewJSONCard(text, content string) JSONCard {
	if text == "" {
		text = DefaultJSONText
	}
	if strings.TrimSpace(content) == "" {
		content = DefaultJSONContent
	}
	return JSONCard{Text: text, Content: content}
}

// NewErrorCard builds an error card; empty fields fall back to d and then to
// the package defaults.
func NewErrorCard(text string, d Defaults) ErrorCard {
	if text == "" {
		text = DefaultErrorText
	}
	code := d.OutOfScopeCode
	if code == 0 {
		code = DefaultOutOfScopeErr
	}
	msg := d.ErrorMsg
	if msg == "" {
		msg = DefaultErrorMsg
	}
	return ErrorCard{Text: text, CodeError: code, ErrorMsg: msg}
}

// Envelope pairs a card with the request fields echoed back to the caller.
type Envelope struct {
	RequestID    string
	SourceSystem int
	SessionID    string
	Card         Card
}

func newEnvelope(req types.QueryRequest, c Card) Envelope {
	return Envelope{
		RequestID:    req.RequestID,
		SourceSystem: req.SourceSystem,
		SessionID:    req.SessionID,
		Card:         c,
	}
}

// Dispatch builds the single card matching the classified answer.
func Dispatch(a answer.Answer, req types.QueryRequest, d Defaults) Envelope {
	switch v := a.(type) {
	case answer.OutOfScope:
		return newEnvelope(req, NewErrorCard(v.Message, d))
	case answer.Structured:
		return newEnvelope(req, jsonCardFor(v, d))
	case answer.PlainText:
		return newEnvelope(req, NewTextCard(v.Text))
	default:
		return newEnvelope(req, NewTextCard(""))
	}
}

func jsonCardFor(s answer.Structured, d Defaults) JSONCard {
	if opts, question, ok := s.Options(); ok {
		// the question is shown as given, even when empty
		card := NewJSONCard(question, render(opts))
		card.Text = question
		return card
	}
	text := d.FoundText
	if text == "" {
		text = FoundText
	}
	return NewJSONCard(text, render(s.Raw))
}

// render writes the payload with ", " and ": " separators and no other
// whitespace. String contents are kept byte for byte, so Hebrew text and key
// order survive unchanged.
func render(raw json.RawMessage) string {
	var compacted bytes.Buffer
	if err := json.Compact(&compacted, raw); err != nil {
		return string(raw)
	}
	var out strings.Builder
	inString, escaped := false, false
	for _, c := range compacted.Bytes() {
		out.WriteByte(c)
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && (c == ',' || c == ':'):
			out.WriteByte(' ')
		}
	}
	return out.String()
}

// Response renders the envelope in its wire form.
func (e Envelope) Response() types.QueryResponse {
	resp := types.QueryResponse{
		RequestID:    e.RequestID,
		SourceSystem: e.SourceSystem,
		SessionID:    e.SessionID,
		NextAgent:    NextAgent,
		CardSubType:  SubType,
	}
	switch c := e.Card.(type) {
	case TextCard:
		resp.CardType = string(TypeText)
		resp.TextCard = &types.TextCard{Text: c.Text}
	case OptionsCard:
		resp.CardType = string(TypeOptions)
		opts := c.Options
		if opts == nil {
			opts = []string{}
		}
		resp.OptionsCard = &types.OptionsCard{Text: c.Text, Options: opts}
	case JSONCard:
		resp.CardType = string(TypeJSON)
		resp.JSONCard = &types.JSONCard{Text: c.Text, Content: c.Content}
	case ErrorCard:
		resp.CardType = string(TypeError)
		resp.ErrorCard = &types.ErrorCard{Text: c.Text, CodeError: c.CodeError, ErrorMsg: c.ErrorMsg}
	default:
		resp.CardType = string(TypeText)
		resp.TextCard = &types.TextCard{}
	}
	return resp
}

// MarshalJSON writes the wire form; card fields not in use are null.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Response())
}
