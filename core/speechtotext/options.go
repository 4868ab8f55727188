package speechtotext

import (
	"errors"

	"github.com/koscakluka/ema-tutor/core/audio"
)

var (
	// ErrPermissionDenied means microphone access was refused. It is fatal
	// for the capture session.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrNoSpeech means the recognizer ended a session because it heard
	// nothing. It is transient.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrAborted means the session was stopped on request.
	ErrAborted = errors.New("recognition aborted")
	// ErrRecognitionUnavailable means the recognizer ended the session on its
	// own, e.g. the connection dropped.
	ErrRecognitionUnavailable = errors.New("speech recognition unavailable")
)

type TranscriptionOptions struct {
	// InterimTranscriptionCallback receives the provisional text of the
	// result currently being recognized.
	InterimTranscriptionCallback func(transcript string)
	// TranscriptionCallback receives each finalized result.
	TranscriptionCallback func(transcript string)
	// SessionEndedCallback is called once when the session ends for any
	// reason other than Abort. err is nil for a clean end.
	SessionEndedCallback func(err error)

	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptionCallback = callback
	}
}

func WithInterimTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.InterimTranscriptionCallback = callback
	}
}

func WithSessionEndedCallback(callback func(err error)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SessionEndedCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
