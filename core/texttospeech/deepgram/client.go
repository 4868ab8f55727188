// Package deepgram speaks text with Deepgram's streaming Aura voices.
package deepgram

import (
	"fmt"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-tutor/core/audio"
)

const defaultSpeakURL = "wss://api.deepgram.com/v1/speak"

type Voice string

const (
	VoiceAsteria Voice = "aura-2-asteria-en"
	VoiceThalia  Voice = "aura-2-thalia-en"
	VoiceHelena  Voice = "aura-2-helena-en"
	VoiceOrion   Voice = "aura-2-orion-en"
	VoiceArcas   Voice = "aura-2-arcas-en"

	DefaultVoice = VoiceThalia
)

func AvailableVoices() []Voice {
	return []Voice{VoiceAsteria, VoiceThalia, VoiceHelena, VoiceOrion, VoiceArcas}
}

// TextToSpeechClient plays synthesized utterances on its output.
type TextToSpeechClient struct {
	apiKey   string
	output   audio.Output
	speakURL string
	voice    Voice
	dialer   *websocket.Dialer
}

type ClientOption func(*TextToSpeechClient)

func WithSpeakURL(speakURL string) ClientOption {
	return func(c *TextToSpeechClient) {
		c.speakURL = speakURL
	}
}

func NewTextToSpeechClient(apiKey string, output audio.Output, voice Voice, opts ...ClientOption) (*TextToSpeechClient, error) {
	if voice == "" {
		voice = DefaultVoice
	}
	if !slices.Contains(AvailableVoices(), voice) {
		return nil, fmt.Errorf("invalid voice %q", voice)
	}
	if output == nil {
		return nil, fmt.Errorf("no audio output configured")
	}

	c := &TextToSpeechClient{
		apiKey:   apiKey,
		output:   output,
		speakURL: defaultSpeakURL,
		voice:    voice,
		dialer:   websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *TextToSpeechClient) SetVoice(voice Voice) error {
	if !slices.Contains(AvailableVoices(), voice) {
		return fmt.Errorf("invalid voice %q", voice)
	}
	c.voice = voice
	return nil
}
