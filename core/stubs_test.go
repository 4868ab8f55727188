package orchestration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-tutor/core/events"
	"github.com/koscakluka/ema-tutor/core/speechtotext"
	"github.com/koscakluka/ema-tutor/core/texttospeech"
)

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// audioDevices tracks whether the microphone and the speaker are in use at
// the same time.
type audioDevices struct {
	mu         sync.Mutex
	capturing  bool
	speaking   int
	violations int
}

func (d *audioDevices) setCapturing(capturing bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.capturing = capturing
	if capturing && d.speaking > 0 {
		d.violations++
	}
}

func (d *audioDevices) addSpeaking(delta int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.speaking += delta
	if d.speaking > 0 && d.capturing {
		d.violations++
	}
}

func (d *audioDevices) Violations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.violations
}

type speechToTextStub struct {
	devices       *audioDevices
	permissionErr error
	transcribeErr error

	mu       sync.Mutex
	sessions int
	aborts   int
	active   bool
	options  speechtotext.TranscriptionOptions
}

func newSpeechToTextStub(devices *audioDevices) *speechToTextStub {
	return &speechToTextStub{devices: devices}
}

func (s *speechToTextStub) RequestMicrophoneAccess(context.Context) error {
	return s.permissionErr
}

func (s *speechToTextStub) Transcribe(_ context.Context, opts ...speechtotext.TranscriptionOption) error {
	s.mu.Lock()
	transcribeErr := s.transcribeErr
	s.mu.Unlock()
	if transcribeErr != nil {
		return transcribeErr
	}

	options := speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	s.mu.Lock()
	s.sessions++
	s.active = true
	s.options = options
	s.mu.Unlock()

	if s.devices != nil {
		s.devices.setCapturing(true)
	}
	return nil
}

// failTranscribe makes new sessions fail with err until it is called with nil.
func (s *speechToTextStub) failTranscribe(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcribeErr = err
}

func (s *speechToTextStub) Abort() error {
	s.mu.Lock()
	s.aborts++
	s.active = false
	s.mu.Unlock()

	if s.devices != nil {
		s.devices.setCapturing(false)
	}
	return nil
}

func (s *speechToTextStub) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

func (s *speechToTextStub) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *speechToTextStub) current() speechtotext.TranscriptionOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

func (s *speechToTextStub) interim(text string) {
	if callback := s.current().InterimTranscriptionCallback; callback != nil {
		callback(text)
	}
}

func (s *speechToTextStub) final(text string) {
	if callback := s.current().TranscriptionCallback; callback != nil {
		callback(text)
	}
}

// end ends the running session on the recognizer's side.
func (s *speechToTextStub) end(err error) {
	options := s.current()
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	if s.devices != nil {
		s.devices.setCapturing(false)
	}
	if options.SessionEndedCallback != nil {
		options.SessionEndedCallback(err)
	}
}

type textToSpeechStub struct {
	devices *audioDevices
	// autoFinish ends every utterance on its own after the delay.
	autoFinish time.Duration

	mu         sync.Mutex
	utterances []*utteranceStub
}

func newTextToSpeechStub(devices *audioDevices) *textToSpeechStub {
	return &textToSpeechStub{devices: devices}
}

type utteranceStub struct {
	text    string
	options texttospeech.SpeechOptions
	devices *audioDevices

	mu        sync.Mutex
	done      bool
	cancelled bool
}

func (t *textToSpeechStub) Speak(_ context.Context, text string, opts ...texttospeech.SpeechOption) (texttospeech.Utterance, error) {
	options := texttospeech.SpeechOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	u := &utteranceStub{text: text, options: options, devices: t.devices}
	t.mu.Lock()
	t.utterances = append(t.utterances, u)
	t.mu.Unlock()

	if t.devices != nil {
		t.devices.addSpeaking(1)
	}
	if t.autoFinish > 0 {
		time.AfterFunc(t.autoFinish, func() { u.finish(nil) })
	}
	return u, nil
}

func (t *textToSpeechStub) Utterances() []*utteranceStub {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*utteranceStub(nil), t.utterances...)
}

func (t *textToSpeechStub) Texts() []string {
	var texts []string
	for _, u := range t.Utterances() {
		texts = append(texts, u.text)
	}
	return texts
}

func (t *textToSpeechStub) Last() *utteranceStub {
	utterances := t.Utterances()
	if len(utterances) == 0 {
		return nil
	}
	return utterances[len(utterances)-1]
}

func (u *utteranceStub) stop() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return false
	}
	u.done = true
	if u.devices != nil {
		u.devices.addSpeaking(-1)
	}
	return true
}

func (u *utteranceStub) Cancel() error {
	if u.stop() {
		u.mu.Lock()
		u.cancelled = true
		u.mu.Unlock()
	}
	return nil
}

func (u *utteranceStub) Cancelled() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cancelled
}

// finish plays the utterance to the end, or fails it when err is set.
func (u *utteranceStub) finish(err error) {
	if !u.stop() {
		return
	}
	if err != nil {
		if u.options.ErrorCallback != nil {
			u.options.ErrorCallback(err)
		}
		return
	}
	if u.options.WordBoundaryCallback != nil {
		for _, charIndex := range texttospeech.WordStarts(u.text) {
			u.options.WordBoundaryCallback(charIndex)
		}
	}
	if u.options.SpeechEndedCallback != nil {
		u.options.SpeechEndedCallback()
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) record(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) Kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]events.Kind, 0, len(r.events))
	for _, event := range r.events {
		kinds = append(kinds, event.Kind())
	}
	return kinds
}

func (r *eventRecorder) Count(kind events.Kind) int {
	count := 0
	for _, k := range r.Kinds() {
		if k == kind {
			count++
		}
	}
	return count
}
