package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/koscakluka/ema-tutor/core/events"
	"github.com/koscakluka/ema-tutor/core/texttospeech"
)

// ErrPlaybackCancelled ends an utterance that was superseded or stopped.
var ErrPlaybackCancelled = errors.New("playback cancelled")

// speechPlayback speaks one utterance at a time. Starting a new one cancels
// the one in flight.
type speechPlayback struct {
	client    TextToSpeech
	emitEvent eventEmitter

	mu      sync.Mutex
	current *playbackRequest
}

func newSpeechPlayback(client TextToSpeech) *speechPlayback {
	return &speechPlayback{client: client, emitEvent: noopEventEmitter}
}

type playbackRequest struct {
	text           string
	onWordBoundary func(charIndex int)
	onEnded        func(err error)

	mu        sync.Mutex
	utterance texttospeech.Utterance
	finished  bool
	endOnce   sync.Once
}

// Speak sanitizes text and speaks it. onEnded is called exactly once, with a
// nil error only when the whole text was played.
func (p *speechPlayback) Speak(ctx context.Context, text string, onWordBoundary func(charIndex int), onEnded func(err error)) {
	ctx, span := tracer.Start(ctx, "speak")
	defer span.End()

	request := &playbackRequest{
		text:           SanitizeForSpeech(text),
		onWordBoundary: onWordBoundary,
		onEnded:        onEnded,
	}
	span.SetAttributes(attribute.Int("playback.text_length", len(request.text)))

	p.mu.Lock()
	previous := p.current
	p.current = request
	p.mu.Unlock()

	if previous != nil {
		p.cancelRequest(previous)
	}

	p.emitEvent(events.NewAssistantPlaybackStarted(request.text))

	if request.text == "" || p.client == nil {
		p.finish(request, nil)
		return
	}

	utterance, err := p.client.Speak(ctx, request.text,
		texttospeech.WithWordBoundaryCallback(func(charIndex int) { p.wordBoundary(request, charIndex) }),
		texttospeech.WithSpeechEndedCallback(func() { p.finish(request, nil) }),
		texttospeech.WithErrorCallback(func(err error) { p.finish(request, err) }),
	)
	if err != nil {
		recordedErr := fmt.Errorf("failed to start speaking: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		p.finish(request, recordedErr)
		return
	}

	request.mu.Lock()
	finished := request.finished
	if !finished {
		request.utterance = utterance
	}
	request.mu.Unlock()

	// Cancelled while the request was being set up.
	if finished {
		if err := utterance.Cancel(); err != nil {
			logger.WarnContext(ctx, "failed to cancel superseded utterance", "error", err)
		}
	}
}

// Cancel stops the utterance in flight, if any.
func (p *speechPlayback) Cancel() {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()

	if current != nil {
		p.cancelRequest(current)
	}
}

func (p *speechPlayback) IsSpeaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

func (p *speechPlayback) cancelRequest(request *playbackRequest) {
	request.mu.Lock()
	utterance := request.utterance
	request.mu.Unlock()

	if utterance != nil {
		if err := utterance.Cancel(); err != nil {
			logger.Warn("failed to cancel utterance", "error", err)
		}
	}
	p.finish(request, ErrPlaybackCancelled)
}

func (p *speechPlayback) wordBoundary(request *playbackRequest, charIndex int) {
	request.mu.Lock()
	finished := request.finished
	request.mu.Unlock()
	if finished {
		return
	}

	p.emitEvent(events.NewAssistantPlaybackWordBoundary(charIndex))
	if request.onWordBoundary != nil {
		request.onWordBoundary(charIndex)
	}
}

func (p *speechPlayback) finish(request *playbackRequest, err error) {
	request.endOnce.Do(func() {
		request.mu.Lock()
		request.finished = true
		request.mu.Unlock()

		p.mu.Lock()
		if p.current == request {
			p.current = nil
		}
		p.mu.Unlock()

		if err != nil && !errors.Is(err, ErrPlaybackCancelled) {
			logger.Warn("playback failed", "error", err)
		}

		p.emitEvent(events.NewAssistantPlaybackWordBoundary(-1))
		if request.onWordBoundary != nil {
			request.onWordBoundary(-1)
		}
		p.emitEvent(events.NewAssistantPlaybackEnded(request.text, err))
		if request.onEnded != nil {
			request.onEnded(err)
		}
	})
}
