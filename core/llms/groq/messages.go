package groq

import (
	"github.com/jinzhu/copier"

	"github.com/koscakluka/ema-tutor/core/llms"
)

type message struct {
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

type messageRole string

const (
	messageRoleSystem messageRole = "system"
	messageRoleUser   messageRole = "user"
)

func toMessages(instructions string, turns []llms.Turn) ([]message, error) {
	messages := []message{}
	if instructions != "" {
		messages = append(messages, message{
			Role:    messageRoleSystem,
			Content: instructions,
		})
	}

	var history []message
	if err := copier.Copy(&history, turns); err != nil {
		return nil, err
	}
	for _, msg := range history {
		if msg.Content != "" {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}
