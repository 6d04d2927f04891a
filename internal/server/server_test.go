package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redirect-agent-backend/internal/agent"
	"redirect-agent-backend/internal/cards"
	"redirect-agent-backend/internal/config"
	"redirect-agent-backend/internal/redirect"
	"redirect-agent-backend/internal/store"
	"redirect-agent-backend/internal/types"
)

type fixedLLM struct{ reply string }

func (f fixedLLM) Complete(context.Context, []openai.ChatCompletionMessage) (string, error) {
	return f.reply, nil
}

// stubService fails every call with err.
type stubService struct{ err error }

func (s stubService) Handle(context.Context, types.QueryRequest) (cards.Envelope, error) {
	return cards.Envelope{}, s.err
}
func (s stubService) Reset(context.Context, string) error { return s.err }
func (s stubService) Ping(context.Context) error          { return s.err }

func newTestServer(t *testing.T, reply string) (*Server, store.SessionStore) {
	t.Helper()
	spec, err := agent.LoadPromptSpec("")
	require.NoError(t, err)
	st := store.NewMemoryStore(store.Options{MaxMessages: 6})
	a := agent.New(fixedLLM{reply: reply}, spec, "# services", 3, nil)
	svc := redirect.NewService(st, a, cards.DefaultDefaults(), nil)
	return NewServer(config.Config{AllowedOrigin: "*"}, svc, nil), st
}

func validHeaders() http.Header {
	h := http.Header{}
	h.Set("x-login-mask-id", "L1")
	h.Set("x-login-gender", "F")
	h.Set("x-cust-mask-id", "C1")
	h.Set("x-cust-gender", "M")
	h.Set("x-cust-age", "42")
	h.Set("x-dr-license", "none")
	h.Set("Content-Type", "application/json")
	return h
}

func doQuery(t *testing.T, h http.Handler, headers http.Header, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewBufferString(body))
	req.Header = headers
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const validBody = `{"request_id":"r1","source_system":3,"session_id":"abc","query":"hello"}`

func TestQueryReturnsTextCard(t *testing.T) {
	s, st := newTestServer(t, "שלום")
	rec := doQuery(t, s.Router(), validHeaders(), validBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "r1", resp["request_id"])
	assert.EqualValues(t, 3, resp["source_system"])
	assert.Equal(t, "abc", resp["session_id"])
	assert.Equal(t, "redirect", resp["next_agent"])
	assert.Equal(t, "redirect", resp["card_sub_type"])
	assert.Equal(t, "text", resp["card_type"])
	assert.Equal(t, map[string]any{"text": "שלום"}, resp["text_card"])
	for _, k := range []string{"options_card", "json_card", "error_card"} {
		v, ok := resp[k]
		assert.True(t, ok, "%s must be present", k)
		assert.Nil(t, v, "%s must be null", k)
	}

	history, err := st.Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.NotEmpty(t, rec.Header().Get(CorrelationHeader))
}

func TestQueryReturnsJSONCard(t *testing.T) {
	s, _ := newTestServer(t, `{"code": "A1", "name": "תורים"}`)
	rec := doQuery(t, s.Router(), validHeaders(), validBody)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "json", resp.CardType)
	require.NotNil(t, resp.JSONCard)
	assert.Equal(t, cards.FoundText, resp.JSONCard.Text)
	assert.Equal(t, `{"code": "A1", "name": "תורים"}`, resp.JSONCard.Content)
}

func TestQueryOutOfScopeIsStillOK(t *testing.T) {
	s, _ := newTestServer(t, `{"error_message": "out of scope"}`)
	rec := doQuery(t, s.Router(), validHeaders(), validBody)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.CardType)
	require.NotNil(t, resp.ErrorCard)
	assert.Equal(t, "out of scope", resp.ErrorCard.Text)
	assert.Equal(t, 429, resp.ErrorCard.CodeError)
}

func TestQueryValidation(t *testing.T) {
	s, _ := newTestServer(t, "ok")

	noAge := validHeaders()
	noAge.Del("x-cust-age")
	badAge := validHeaders()
	badAge.Set("x-cust-age", "forty")

	tests := []struct {
		name    string
		headers http.Header
		body    string
		want    int
	}{
		{"missing header", noAge, validBody, http.StatusUnprocessableEntity},
		{"non-integer age", badAge, validBody, http.StatusUnprocessableEntity},
		{"malformed json", validHeaders(), `{"request_id":`, http.StatusBadRequest},
		{"not an object", validHeaders(), `[1,2]`, http.StatusBadRequest},
		{"missing query", validHeaders(), `{"request_id":"r","source_system":1,"session_id":"s"}`, http.StatusUnprocessableEntity},
		{"string source system", validHeaders(), `{"request_id":"r","source_system":"1","session_id":"s","query":"q"}`, http.StatusUnprocessableEntity},
		{"empty session id", validHeaders(), `{"request_id":"r","source_system":1,"session_id":" ","query":"q"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doQuery(t, s.Router(), tt.headers, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())

			var e types.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestQueryServiceErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: timeout", redirect.ErrModel), http.StatusBadGateway},
		{fmt.Errorf("%w: refused", redirect.ErrStore), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		s := NewServer(config.Config{AllowedOrigin: "*"}, stubService{err: tt.err}, nil)
		rec := doQuery(t, s.Router(), validHeaders(), validBody)
		assert.Equal(t, tt.want, rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, "ok")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	down := NewServer(config.Config{AllowedOrigin: "*"}, stubService{err: redirect.ErrStore}, nil)
	rec = httptest.NewRecorder()
	down.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	s, st := newTestServer(t, "ok")
	require.Equal(t, http.StatusOK, doQuery(t, s.Router(), validHeaders(), validBody).Code)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/sessions/abc", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	history, err := st.Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCorrelationIDIsEchoed(t *testing.T) {
	s, _ := newTestServer(t, "ok")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(CorrelationHeader, "corr-123")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, "corr-123", rec.Header().Get(CorrelationHeader))
}
