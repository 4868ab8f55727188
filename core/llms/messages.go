package llms

// Turn is a single message taken in the conversation before the prompt.
type Turn struct {
	Role TurnRole
	// Content is the prompt in a user's turn and the response in an
	// assistant's turn.
	Content string
}

type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)
