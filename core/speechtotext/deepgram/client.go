// Package deepgram transcribes microphone audio with Deepgram's live
// streaming API.
package deepgram

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-tutor/core/audio"
	"github.com/koscakluka/ema-tutor/core/speechtotext"
)

const defaultListenURL = "wss://api.deepgram.com/v1/listen"

// TranscriptionClient runs one live transcription session at a time over the
// audio captured from its input.
type TranscriptionClient struct {
	apiKey    string
	input     audio.Input
	listenURL string
	model     string
	language  string
	dialer    *websocket.Dialer

	mu      sync.Mutex
	session *transcriptionSession
}

type ClientOption func(*TranscriptionClient)

func WithListenURL(listenURL string) ClientOption {
	return func(c *TranscriptionClient) {
		c.listenURL = listenURL
	}
}

func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) {
		c.model = model
	}
}

func WithLanguage(language string) ClientOption {
	return func(c *TranscriptionClient) {
		c.language = language
	}
}

func NewTranscriptionClient(apiKey string, input audio.Input, opts ...ClientOption) *TranscriptionClient {
	c := &TranscriptionClient{
		apiKey:    apiKey,
		input:     input,
		listenURL: defaultListenURL,
		model:     "nova-3",
		language:  "en-US",
		dialer:    websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestMicrophoneAccess checks that there is an input to capture from and
// an API key to transcribe with.
func (c *TranscriptionClient) RequestMicrophoneAccess(_ context.Context) error {
	if c.input == nil {
		return fmt.Errorf("%w: no audio input configured", speechtotext.ErrPermissionDenied)
	}
	if c.apiKey == "" {
		return fmt.Errorf("%w: deepgram api key not set", speechtotext.ErrRecognitionUnavailable)
	}
	return nil
}

// Abort stops the running session without reporting its end.
func (c *TranscriptionClient) Abort() error {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()

	if session == nil {
		return nil
	}
	return session.stop(true)
}

func (c *TranscriptionClient) Close() error {
	return c.Abort()
}
