package events

const (
	// KindAssistantPlaybackStarted identifies the start of speaking a text.
	KindAssistantPlaybackStarted Kind = "assistant_playback.started"
	// KindAssistantPlaybackWordBoundary identifies progress to the next word.
	KindAssistantPlaybackWordBoundary Kind = "assistant_playback.word_boundary"
	// KindAssistantPlaybackEnded identifies the end of speaking a text.
	KindAssistantPlaybackEnded Kind = "assistant_playback.ended"
)

// AssistantPlaybackStarted carries the sanitized text about to be spoken.
type AssistantPlaybackStarted struct {
	Base
	Text string
}

// NewAssistantPlaybackStarted creates an assistant playback started event.
func NewAssistantPlaybackStarted(text string) AssistantPlaybackStarted {
	return AssistantPlaybackStarted{Base: NewBase(KindAssistantPlaybackStarted), Text: text}
}

// AssistantPlaybackWordBoundary carries the character index of the word being
// spoken. CharIndex is -1 once playback is over.
type AssistantPlaybackWordBoundary struct {
	Base
	CharIndex int
}

// NewAssistantPlaybackWordBoundary creates a word boundary event.
func NewAssistantPlaybackWordBoundary(charIndex int) AssistantPlaybackWordBoundary {
	return AssistantPlaybackWordBoundary{Base: NewBase(KindAssistantPlaybackWordBoundary), CharIndex: charIndex}
}

// AssistantPlaybackEnded marks the end of playback. Err is set when playback
// failed or was cancelled.
type AssistantPlaybackEnded struct {
	Base
	Text string
	Err  error
}

// NewAssistantPlaybackEnded creates an assistant playback ended event.
func NewAssistantPlaybackEnded(text string, err error) AssistantPlaybackEnded {
	return AssistantPlaybackEnded{Base: NewBase(KindAssistantPlaybackEnded), Text: text, Err: err}
}
