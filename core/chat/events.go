package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/koscakluka/ema-tutor/core/quiz"
)

var (
	// ErrMalformedEvent marks a stream line that is not a valid event.
	ErrMalformedEvent = errors.New("malformed stream event")
	// ErrUnknownEvent marks a well formed event of a type this client does
	// not handle.
	ErrUnknownEvent = errors.New("unknown stream event type")
)

const (
	eventTypeSessionInfo = "session_info"
	eventTypeResponse    = "response"
	eventTypeControl     = "control"
)

// Event is one decoded line of the chat stream: SessionInfo, Response or
// Control.
type Event interface {
	eventType() string
}

type SessionInfo struct {
	SessionID string
	Subject   string
}

type Response struct {
	Text string
}

type Control struct {
	Payload ControlPayload
}

func (SessionInfo) eventType() string { return eventTypeSessionInfo }
func (Response) eventType() string    { return eventTypeResponse }
func (Control) eventType() string     { return eventTypeControl }

// ControlPayload carries the tutor's side actions for a reply.
type ControlPayload struct {
	AgentsInvolved   []string        `json:"agents_involved,omitempty"`
	ActionsTaken     []string        `json:"actions_taken,omitempty"`
	Quiz             *quiz.Quiz      `json:"quiz,omitempty"`
	PracticeSchedule json.RawMessage `json:"practice_schedule,omitempty"`
	Encouragement    string          `json:"encouragement,omitempty"`
	NewBadges        []string        `json:"new_badges,omitempty"`
	ScheduleMessage  string          `json:"schedule_msg,omitempty"`
}

type wireEvent struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Subject   string          `json:"subject"`
	Content   *string         `json:"content"`
	Text      *string         `json:"text"`
	Data      json.RawMessage `json:"data"`
}

// DecodeEvent decodes a single stream line.
func DecodeEvent(line []byte) (Event, error) {
	line = bytes.TrimSpace(line)
	var wire wireEvent
	if err := json.Unmarshal(line, &wire); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	switch wire.Type {
	case eventTypeSessionInfo:
		if wire.SessionID == "" {
			return nil, fmt.Errorf("%w: session_info without session_id", ErrMalformedEvent)
		}
		return SessionInfo{SessionID: wire.SessionID, Subject: wire.Subject}, nil

	case eventTypeResponse:
		switch {
		case wire.Content != nil:
			return Response{Text: *wire.Content}, nil
		case wire.Text != nil:
			return Response{Text: *wire.Text}, nil
		default:
			return nil, fmt.Errorf("%w: response without content", ErrMalformedEvent)
		}

	case eventTypeControl:
		var payload ControlPayload
		if len(wire.Data) > 0 && !bytes.Equal(wire.Data, []byte("null")) {
			if err := json.Unmarshal(wire.Data, &payload); err != nil {
				return nil, fmt.Errorf("%w: control data: %w", ErrMalformedEvent, err)
			}
		}
		return Control{Payload: payload}, nil

	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEvent)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, wire.Type)
	}
}
