package texttospeech

import (
	"errors"

	"github.com/koscakluka/ema-tutor/core/audio"
)

// ErrSynthesisFailed is reported through the error callback when speech could
// not be produced or played to the end.
var ErrSynthesisFailed = errors.New("speech synthesis failed")

type SpeechOptions struct {
	// SpeechStartedCallback is called once the first audio of the utterance
	// has been handed to the output
	SpeechStartedCallback func()
	// WordBoundaryCallback is called with the character offset of each word
	// as it is spoken. Offsets index the text passed to Speak.
	WordBoundaryCallback func(charIndex int)
	// SpeechEndedCallback is called once all audio of the utterance has been
	// played
	SpeechEndedCallback func()
	// ErrorCallback is called instead of SpeechEndedCallback when the
	// utterance fails. A cancelled utterance reports nothing.
	ErrorCallback func(error)

	EncodingInfo audio.EncodingInfo
}

type SpeechOption func(*SpeechOptions)

func WithSpeechStartedCallback(callback func()) SpeechOption {
	return func(o *SpeechOptions) { o.SpeechStartedCallback = callback }
}

func WithWordBoundaryCallback(callback func(charIndex int)) SpeechOption {
	return func(o *SpeechOptions) { o.WordBoundaryCallback = callback }
}

func WithSpeechEndedCallback(callback func()) SpeechOption {
	return func(o *SpeechOptions) { o.SpeechEndedCallback = callback }
}

func WithErrorCallback(callback func(error)) SpeechOption {
	return func(o *SpeechOptions) { o.ErrorCallback = callback }
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SpeechOption {
	return func(o *SpeechOptions) {
		if encodingInfo.IsZero() {
			return
		}

		o.EncodingInfo = encodingInfo
	}
}

// Utterance is a single piece of text being spoken.
type Utterance interface {
	// Cancel stops the utterance immediately. No callbacks are called after
	// Cancel returns.
	//
	// Repeated calls to Cancel are ignored.
	Cancel() error
}

// WordStarts returns the character offsets at which words begin in text.
func WordStarts(text string) []int {
	var starts []int
	inWord := false
	for i, r := range []rune(text) {
		space := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if !space && !inWord {
			starts = append(starts, i)
		}
		inWord = !space
	}
	return starts
}
