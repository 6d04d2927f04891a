package agent

import (
	"context"
	"fmt"

	"redirect-agent-backend/internal/conversation"
	"redirect-agent-backend/internal/logging"
)

// Agent asks the model to route a query to a service, given the session's
// recent history and the service catalog.
type Agent struct {
	llm     Completer
	prompt  PromptSpec
	catalog string
	depth   int
	log     *logging.Logger
}

func New(llm Completer, prompt PromptSpec, catalog string, depth int, log *logging.Logger) *Agent {
	if log == nil {
		log = logging.Nop()
	}
	return &Agent{llm: llm, prompt: prompt, catalog: catalog, depth: depth, log: log}
}

// Depth is the number of turns kept in history.
func (a *Agent) Depth() int { return a.depth }

// Invoke returns the raw model reply and the history extended with this turn
// and trimmed to the memory window. The input slice is not modified.
func (a *Agent) Invoke(ctx context.Context, query string, history []conversation.Message) (string, []conversation.Message, error) {
	messages := BuildMessages(a.prompt, a.catalog, history, query)
	a.log.Debug().Int("history_len", len(history)).Msg("prompt constructed")

	reply, err := a.llm.Complete(ctx, messages)
	if err != nil {
		return "", nil, fmt.Errorf("chat completion: %w", err)
	}

	updated := make([]conversation.Message, 0, len(history)+2)
	updated = append(updated, history...)
	updated = append(updated, conversation.Turn(query, reply)...)
	updated = conversation.Window(updated, a.depth)
	a.log.Debug().Int("history_len", len(updated)).Msg("memory window updated")
	return reply, updated, nil
}
