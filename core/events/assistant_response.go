package events

import "github.com/koscakluka/ema-tutor/core/chat"

const (
	// KindAssistantSessionStarted identifies adoption of a tutor chat session.
	KindAssistantSessionStarted Kind = "assistant_response.session_started"
	// KindAssistantMessage identifies a message appended to the chat history.
	KindAssistantMessage Kind = "assistant_response.message"
	// KindAssistantMessageAmended identifies an update of an existing message.
	KindAssistantMessageAmended Kind = "assistant_response.message_amended"
	// KindAssistantBadgesEarned identifies badges awarded by the tutor.
	KindAssistantBadgesEarned Kind = "assistant_response.badges_earned"
	// KindAssistantResponseFailed identifies a submission that got no reply.
	KindAssistantResponseFailed Kind = "assistant_response.failed"
)

// AssistantSessionStarted carries the chat session the tutor opened.
type AssistantSessionStarted struct {
	Base
	SessionID string
	Subject   string
}

// NewAssistantSessionStarted creates a session started event.
func NewAssistantSessionStarted(sessionID, subject string) AssistantSessionStarted {
	return AssistantSessionStarted{Base: NewBase(KindAssistantSessionStarted), SessionID: sessionID, Subject: subject}
}

// AssistantMessage carries a message appended to the chat history. Despite
// the namespace, user messages are reported here as well.
type AssistantMessage struct {
	Base
	Message chat.Message
}

// NewAssistantMessage creates a history message event.
func NewAssistantMessage(message chat.Message) AssistantMessage {
	return AssistantMessage{Base: NewBase(KindAssistantMessage), Message: message}
}

// AssistantMessageAmended carries the updated state of an existing message.
type AssistantMessageAmended struct {
	Base
	Message chat.Message
}

// NewAssistantMessageAmended creates a message amended event.
func NewAssistantMessageAmended(message chat.Message) AssistantMessageAmended {
	return AssistantMessageAmended{Base: NewBase(KindAssistantMessageAmended), Message: message}
}

type AssistantBadgesEarned struct {
	Base
	Badges []string
}

func NewAssistantBadgesEarned(badges []string) AssistantBadgesEarned {
	return AssistantBadgesEarned{Base: NewBase(KindAssistantBadgesEarned), Badges: badges}
}

type AssistantResponseFailed struct {
	Base
	Err error
}

func NewAssistantResponseFailed(err error) AssistantResponseFailed {
	return AssistantResponseFailed{Base: NewBase(KindAssistantResponseFailed), Err: err}
}
