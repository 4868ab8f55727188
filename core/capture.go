package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-tutor/core/events"
	"github.com/koscakluka/ema-tutor/core/speechtotext"
)

var ErrCaptureAlreadyRunning = errors.New("speech capture already running")

// speechCapture runs one recognition session at a time. Results and endings
// of sessions that were aborted or replaced are dropped.
type speechCapture struct {
	client    SpeechToText
	emitEvent eventEmitter

	onResult func(text string, isFinal bool)
	onEnded  func(err error)

	mu         sync.Mutex
	running    bool
	generation uint64
}

func newSpeechCapture(client SpeechToText, onResult func(string, bool), onEnded func(error)) *speechCapture {
	if onResult == nil {
		onResult = func(string, bool) {}
	}
	if onEnded == nil {
		onEnded = func(error) {}
	}

	return &speechCapture{
		client:    client,
		emitEvent: noopEventEmitter,
		onResult:  onResult,
		onEnded:   onEnded,
	}
}

// Start requests microphone access if the client supports it and opens a
// continuous session with interim results.
func (c *speechCapture) Start(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("%w: no speech-to-text client configured", speechtotext.ErrRecognitionUnavailable)
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrCaptureAlreadyRunning
	}
	c.running = true
	c.generation++
	generation := c.generation
	c.mu.Unlock()

	if access, ok := c.client.(MicrophoneAccess); ok {
		if err := access.RequestMicrophoneAccess(ctx); err != nil {
			c.stopped(generation)
			if !errors.Is(err, speechtotext.ErrPermissionDenied) && !errors.Is(err, speechtotext.ErrRecognitionUnavailable) {
				err = fmt.Errorf("%w: %w", speechtotext.ErrPermissionDenied, err)
			}
			return err
		}
	}

	err := c.client.Transcribe(ctx,
		speechtotext.WithInterimTranscriptionCallback(func(transcript string) {
			if c.isCurrent(generation) {
				c.onResult(transcript, false)
			}
		}),
		speechtotext.WithTranscriptionCallback(func(transcript string) {
			if c.isCurrent(generation) {
				c.emitEvent(events.NewUserTranscriptSegment(transcript))
				c.onResult(transcript, true)
			}
		}),
		speechtotext.WithSessionEndedCallback(func(err error) { c.sessionEnded(generation, err) }),
	)
	if err != nil {
		c.stopped(generation)
		return fmt.Errorf("failed to start transcribing: %w", err)
	}

	// Aborted while the session was being opened.
	if !c.isCurrent(generation) {
		if err := c.client.Abort(); err != nil {
			logger.Warn("failed to abort superseded capture", "error", err)
		}
		return speechtotext.ErrAborted
	}

	c.emitEvent(events.NewCaptureStarted())
	return nil
}

// Abort stops capture immediately. The aborted session reports nothing more.
func (c *speechCapture) Abort() {
	c.mu.Lock()
	wasRunning := c.running
	c.running = false
	c.generation++
	c.mu.Unlock()

	if !wasRunning || c.client == nil {
		return
	}

	if err := c.client.Abort(); err != nil {
		logger.Warn("failed to abort speech capture", "error", err)
	}
	c.emitEvent(events.NewCaptureStopped())
}

func (c *speechCapture) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *speechCapture) isCurrent(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running && c.generation == generation
}

func (c *speechCapture) stopped(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.generation != generation {
		return false
	}
	c.running = false
	return true
}

func (c *speechCapture) sessionEnded(generation uint64, err error) {
	if !c.stopped(generation) {
		return
	}

	c.emitEvent(events.NewCaptureStopped())
	c.onEnded(err)
}
