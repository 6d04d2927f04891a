// Package redirect ties the session store, the model and the card dispatcher
// together for a single query.
package redirect

import (
	"context"
	"errors"
	"fmt"

	"redirect-agent-backend/internal/answer"
	"redirect-agent-backend/internal/cards"
	"redirect-agent-backend/internal/conversation"
	"redirect-agent-backend/internal/logging"
	"redirect-agent-backend/internal/store"
	"redirect-agent-backend/internal/types"
)

var (
	ErrModel = errors.New("model failure")
	ErrStore = errors.New("session store failure")
)

// Invoker is the part of agent.Agent the service needs.
type Invoker interface {
	Invoke(ctx context.Context, query string, history []conversation.Message) (string, []conversation.Message, error)
}

type Service struct {
	store    store.SessionStore
	agent    Invoker
	defaults cards.Defaults
	log      *logging.Logger
}

func NewService(s store.SessionStore, a Invoker, d cards.Defaults, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{store: s, agent: a, defaults: d, log: log}
}

// Handle runs one query through the model and returns the card for it. The
// session history is persisted before the card is built; a failed store or
// model call returns an error wrapping ErrStore or ErrModel and no card.
func (s *Service) Handle(ctx context.Context, req types.QueryRequest) (cards.Envelope, error) {
	log := s.log.Zerolog().With().Str("session_id", req.SessionID).Str("request_id", req.RequestID).Logger()

	history, err := s.store.Get(ctx, req.SessionID)
	if err != nil {
		return cards.Envelope{}, fmt.Errorf("%w: get history: %w", ErrStore, err)
	}
	log.Debug().Int("history_len", len(history)).Msg("history loaded")

	text, updated, err := s.agent.Invoke(ctx, req.Query, history)
	if err != nil {
		return cards.Envelope{}, fmt.Errorf("%w: %w", ErrModel, err)
	}

	if len(history) > 0 {
		turn := updated[len(updated)-2:]
		if err := s.store.Append(ctx, req.SessionID, turn...); err != nil {
			return cards.Envelope{}, fmt.Errorf("%w: append history: %w", ErrStore, err)
		}
	} else {
		if err := s.store.Save(ctx, req.SessionID, updated); err != nil {
			return cards.Envelope{}, fmt.Errorf("%w: save history: %w", ErrStore, err)
		}
	}

	a := answer.Classify(text)
	env := cards.Dispatch(a, req, s.defaults)
	log.Info().Str("card_type", string(env.Card.Type())).Msg("query handled")
	return env, nil
}

// Reset drops the stored history for a session.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: delete history: %w", ErrStore, err)
	}
	return nil
}

// Ping reports whether the session store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	return nil
}
