package cards

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redirect-agent-backend/internal/answer"
	"redirect-agent-backend/internal/types"
)

var testReq = types.QueryRequest{RequestID: "1", SourceSystem: 46, SessionID: "s1", Query: "hi"}

func wire(t *testing.T, e Envelope) map[string]any {
	t.Helper()
	b, err := json.Marshal(e)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestDispatchExactlyOneCard(t *testing.T) {
	inputs := []answer.Answer{
		answer.PlainText{Text: "hello"},
		answer.OutOfScope{Message: "nope"},
		answer.Classify(`{"code":"12","name":"Cardiology"}`),
		answer.Classify(`{"options":[{"code":"1","name":"A"}],"clarification_question":"which?"}`),
		answer.Classify(`[1,2,3]`),
		nil,
	}
	fields := []string{"text_card", "options_card", "json_card", "error_card"}

	for _, in := range inputs {
		out := wire(t, Dispatch(in, testReq, DefaultDefaults()))
		set := 0
		for _, f := range fields {
			v, present := out[f]
			require.True(t, present, "field %s must be rendered", f)
			if v != nil {
				set++
				assert.Equal(t, out["card_type"], f[:len(f)-len("_card")])
			}
		}
		assert.Equal(t, 1, set, "input %#v", in)
		assert.Equal(t, "redirect", out["card_sub_type"])
		assert.Equal(t, "redirect", out["next_agent"])
		assert.Equal(t, "1", out["request_id"])
		assert.Equal(t, float64(46), out["source_system"])
		assert.Equal(t, "s1", out["session_id"])
	}
}

func TestDispatchText(t *testing.T) {
	env := Dispatch(answer.PlainText{Text: "שלום"}, testReq, DefaultDefaults())
	assert.Equal(t, TextCard{Text: "שלום"}, env.Card)
}

func TestDispatchOptions(t *testing.T) {
	a := answer.Classify(`{"options":[{"code":"1","name":"א"},{"code":"2","name":"B"}],"clarification_question":"which?"}`)
	env := Dispatch(a, testReq, DefaultDefaults())

	card, ok := env.Card.(JSONCard)
	require.True(t, ok)
	assert.Equal(t, "which?", card.Text)
	assert.Equal(t, `[{"code": "1", "name": "א"}, {"code": "2", "name": "B"}]`, card.Content)
}

func TestDispatchOptionsEmptyQuestion(t *testing.T) {
	a := answer.Classify(`{"options":[{"code":"1","name":"A"}],"clarification_question":""}`)
	env := Dispatch(a, testReq, DefaultDefaults())

	card, ok := env.Card.(JSONCard)
	require.True(t, ok)
	assert.Equal(t, "", card.Text)
	assert.Equal(t, `[{"code": "1", "name": "A"}]`, card.Content)
}

func TestDispatchSingleMatch(t *testing.T) {
	env := Dispatch(answer.Classify(`{"code": "12", "name": "Cardiology"}`), testReq, DefaultDefaults())

	card, ok := env.Card.(JSONCard)
	require.True(t, ok)
	assert.Equal(t, FoundText, card.Text)
	assert.Equal(t, `{"code": "12", "name": "Cardiology"}`, card.Content)
}

func TestDispatchList(t *testing.T) {
	env := Dispatch(answer.Classify(`[{"code":"1"},{"code":"2"}]`), testReq, DefaultDefaults())

	card, ok := env.Card.(JSONCard)
	require.True(t, ok)
	assert.Equal(t, FoundText, card.Text)
	assert.JSONEq(t, `[{"code":"1"},{"code":"2"}]`, card.Content)
}

func TestDispatchOutOfScope(t *testing.T) {
	d := Defaults{OutOfScopeCode: 418, ErrorMsg: "guard"}
	env := Dispatch(answer.OutOfScope{Message: "out of scope"}, testReq, d)
	assert.Equal(t, ErrorCard{Text: "out of scope", CodeError: 418, ErrorMsg: "guard"}, env.Card)
}

func TestDispatchOutOfScopeNullMessage(t *testing.T) {
	env := Dispatch(answer.Classify(`{"error_message":null}`), testReq, DefaultDefaults())
	card, ok := env.Card.(ErrorCard)
	require.True(t, ok)
	assert.Equal(t, DefaultErrorText, card.Text)
}

func TestRenderSeparators(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"object", `{"a":1,"b":[1,2]}`, `{"a": 1, "b": [1, 2]}`},
		{"spaced input", "{ \"a\" :\n 1 }", `{"a": 1}`},
		{"separators in strings", `{"t":"a, b: c"}`, `{"t": "a, b: c"}`},
		{"escaped quote", `{"t":"say \"x,y\"","n":null}`, `{"t": "say \"x,y\"", "n": null}`},
		{"hebrew", `["שלום","עולם"]`, `["שלום", "עולם"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(json.RawMessage(tt.raw)))
		})
	}
}

func TestErrorCardDefaults(t *testing.T) {
	card := NewErrorCard("", Defaults{})
	assert.Equal(t, DefaultErrorText, card.Text)
	assert.Equal(t, 429, card.CodeError)
	assert.Equal(t, DefaultErrorMsg, card.ErrorMsg)
}

func TestJSONCardDefaults(t *testing.T) {
	assert.Equal(t, JSONCard{Text: "...", Content: "{}"}, NewJSONCard("", ""))
}

func TestOptionsCardWire(t *testing.T) {
	env := Envelope{RequestID: "9", SessionID: "s", Card: OptionsCard{Text: "בחר אפשרות:"}}
	out := wire(t, env)
	assert.Equal(t, "options", out["card_type"])
	card := out["options_card"].(map[string]any)
	assert.Equal(t, []any{}, card["options"])
	assert.Nil(t, out["text_card"])
}
