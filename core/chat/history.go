package chat

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	ID        uuid.UUID
	Role      Role
	Content   string
	CreatedAt time.Time
}

// History is the chat transcript shown to the user. It is safe for
// concurrent use.
type History struct {
	mu       sync.Mutex
	messages []Message
}

func NewHistory() *History {
	return &History{}
}

func (h *History) Append(role Role, content string) Message {
	message := Message{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, message)
	return message
}

// AppendToLastAssistant appends text to the assistant message answering the
// latest user message. It reports false when that message has no reply yet.
func (h *History) AppendToLastAssistant(text string) (Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := len(h.messages) - 1; i >= 0; i-- {
		if h.messages[i].Role == RoleUser {
			break
		}
		if h.messages[i].Role != RoleAssistant {
			continue
		}
		h.messages[i].Content = strings.TrimRight(h.messages[i].Content, " ") + text
		return h.messages[i], true
	}
	return Message{}, false
}

func (h *History) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.messages)
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}
