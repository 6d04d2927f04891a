package conversation

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single history entry. A turn is one user message followed by
// one assistant message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn returns the user/assistant pair for one exchange.
func Turn(query, reply string) []Message {
	return []Message{
		{Role: RoleUser, Content: query},
		{Role: RoleAssistant, Content: reply},
	}
}

// MaxMessages is the number of entries retained for a memory depth of k turns.
func MaxMessages(depth int) int {
	if depth <= 0 {
		return 0
	}
	return depth * 2
}

// Window keeps the most recent depth turns (2*depth messages) of history,
// oldest entries dropped first. A non-positive depth disables trimming.
func Window(history []Message, depth int) []Message {
	max := MaxMessages(depth)
	if max == 0 || len(history) <= max {
		return history
	}
	return history[len(history)-max:]
}
