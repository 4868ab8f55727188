package events

const (
	// KindUserTranscriptInterimUpdated identifies live preview updates of the
	// utterance being spoken.
	KindUserTranscriptInterimUpdated Kind = "user_input.transcript_interim_updated"
	// KindUserTranscriptSegment identifies finalized append-only transcript segments.
	KindUserTranscriptSegment Kind = "user_input.transcript_segment"
	// KindUserUtteranceFinal identifies a complete utterance delimited by a pause.
	KindUserUtteranceFinal Kind = "user_input.utterance_final"
	// KindUserMessageSubmitted identifies a message handed to the tutor.
	KindUserMessageSubmitted Kind = "user_input.message_submitted"
)

// UserTranscriptInterimUpdated carries the finalized fragments so far followed
// by the current interim text.
type UserTranscriptInterimUpdated struct {
	Base
	Transcript string
}

// NewUserTranscriptInterimUpdated creates a live preview update event.
func NewUserTranscriptInterimUpdated(transcript string) UserTranscriptInterimUpdated {
	return UserTranscriptInterimUpdated{Base: NewBase(KindUserTranscriptInterimUpdated), Transcript: transcript}
}

// UserTranscriptSegment carries a finalized, append-only transcript segment.
type UserTranscriptSegment struct {
	Base
	Segment string
}

// NewUserTranscriptSegment creates a finalized transcript segment event.
func NewUserTranscriptSegment(segment string) UserTranscriptSegment {
	return UserTranscriptSegment{Base: NewBase(KindUserTranscriptSegment), Segment: segment}
}

// UserUtteranceFinal carries one segmented utterance.
type UserUtteranceFinal struct {
	Base
	Transcript string
}

// NewUserUtteranceFinal creates a final utterance event.
func NewUserUtteranceFinal(transcript string) UserUtteranceFinal {
	return UserUtteranceFinal{Base: NewBase(KindUserUtteranceFinal), Transcript: transcript}
}

// UserMessageSubmitted marks text being sent to the tutor, spoken or typed.
type UserMessageSubmitted struct {
	Base
	Text  string
	Voice bool
}

// NewUserMessageSubmitted creates a message submitted event.
func NewUserMessageSubmitted(text string, voice bool) UserMessageSubmitted {
	return UserMessageSubmitted{Base: NewBase(KindUserMessageSubmitted), Text: text, Voice: voice}
}
