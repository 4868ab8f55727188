package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/koscakluka/ema-tutor/core/events"
	"github.com/koscakluka/ema-tutor/core/speechtotext"
)

const DefaultResumeDelay = 100 * time.Millisecond

const (
	maxCaptureRecoveries = 5
	maxRecoveryDelay     = 2 * time.Second
)

var ErrVoiceChatDisabled = errors.New("voice chat disabled")

type TurnState string

const (
	TurnIdle      TurnState = "idle"
	TurnListening TurnState = "listening"
	TurnSpeaking  TurnState = "speaking"
)

func (s TurnState) String() string { return string(s) }

// turnCoordinator owns the microphone and the speaker. Capture is aborted
// before playback starts and restarted only after playback ended, so the two
// are never active together.
type turnCoordinator struct {
	capture     *speechCapture
	playback    *speechPlayback
	segmenter   *silenceSegmenter
	resumeDelay time.Duration
	baseContext func() context.Context
	emitEvent   eventEmitter

	mu          sync.Mutex
	enabled     bool
	state       TurnState
	generation  uint64
	resumeTimer *time.Timer
	// recovery paces restarts of a capture that failed to start.
	recovery retry.Backoff
}

func newTurnCoordinator(capture *speechCapture, playback *speechPlayback, segmenter *silenceSegmenter, resumeDelay time.Duration) *turnCoordinator {
	if resumeDelay <= 0 {
		resumeDelay = DefaultResumeDelay
	}

	return &turnCoordinator{
		capture:     capture,
		playback:    playback,
		segmenter:   segmenter,
		resumeDelay: resumeDelay,
		baseContext: context.Background,
		emitEvent:   noopEventEmitter,
		state:       TurnIdle,
	}
}

func (t *turnCoordinator) State() TurnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *turnCoordinator) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// Enable starts listening. A refused microphone leaves the coordinator idle.
func (t *turnCoordinator) Enable(ctx context.Context) error {
	t.mu.Lock()
	if t.enabled {
		t.mu.Unlock()
		return nil
	}
	t.enabled = true
	t.generation++
	generation := t.generation
	t.mu.Unlock()

	err := t.capture.Start(ctx)
	switch {
	case errors.Is(err, speechtotext.ErrAborted):
		return nil
	case err != nil && !errors.Is(err, ErrCaptureAlreadyRunning):
		t.mu.Lock()
		if t.generation == generation {
			t.enabled = false
		}
		t.mu.Unlock()
		t.emitEvent(events.NewCaptureFailed(err))
		return err
	}

	if !t.transition(generation, TurnIdle, TurnListening) {
		t.capture.Abort()
	}
	return nil
}

// Disable cancels playback and capture from any state.
func (t *turnCoordinator) Disable() {
	t.mu.Lock()
	t.enabled = false
	t.generation++
	t.recovery = nil
	if t.resumeTimer != nil {
		t.resumeTimer.Stop()
		t.resumeTimer = nil
	}
	from := t.state
	t.state = TurnIdle
	t.mu.Unlock()

	t.capture.Abort()
	t.segmenter.Reset()
	t.playback.Cancel()

	if from != TurnIdle {
		t.emitEvent(events.NewTurnStateChanged(from.String(), TurnIdle.String()))
	}
}

// Speak hands the speaker to text. Capture is torn down first; listening
// resumes once the last requested utterance ended.
func (t *turnCoordinator) Speak(ctx context.Context, text string) error {
	t.mu.Lock()
	if !t.enabled {
		t.mu.Unlock()
		return ErrVoiceChatDisabled
	}
	t.generation++
	generation := t.generation
	t.recovery = nil
	if t.resumeTimer != nil {
		t.resumeTimer.Stop()
		t.resumeTimer = nil
	}
	from := t.state
	t.state = TurnSpeaking
	t.mu.Unlock()

	t.capture.Abort()
	t.segmenter.Reset()
	if from != TurnSpeaking {
		t.emitEvent(events.NewTurnStateChanged(from.String(), TurnSpeaking.String()))
	}

	t.playback.Speak(ctx, text, nil, func(err error) { t.playbackEnded(generation, err) })
	return nil
}

func (t *turnCoordinator) playbackEnded(generation uint64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.generation != generation || !t.enabled {
		return
	}

	t.resumeTimer = time.AfterFunc(t.resumeDelay, func() { t.resume(generation) })
}

func (t *turnCoordinator) resume(generation uint64) {
	t.mu.Lock()
	current := t.generation == generation && t.enabled && t.state == TurnSpeaking
	t.resumeTimer = nil
	t.mu.Unlock()
	if !current {
		return
	}

	// The turn stays with the speaker until capture is running again.
	if !t.restoreCapture(generation, t.resume) {
		return
	}

	if !t.transition(generation, TurnSpeaking, TurnListening) {
		t.capture.Abort()
	}
}

// captureEnded decides what to do with a session that ended on its own.
func (t *turnCoordinator) captureEnded(err error) {
	if errors.Is(err, speechtotext.ErrPermissionDenied) {
		t.fail(err)
		return
	}

	t.mu.Lock()
	generation := t.generation
	listening := t.enabled && t.state == TurnListening
	t.mu.Unlock()
	if !listening {
		return
	}

	ctx := t.baseContext()
	switch {
	case err == nil, errors.Is(err, speechtotext.ErrNoSpeech), errors.Is(err, speechtotext.ErrAborted):
		logger.DebugContext(ctx, "speech capture ended, restarting", "error", err)
	default:
		logger.WarnContext(ctx, "speech capture ended unexpectedly, restarting", "error", err)
	}
	captureRestarts.Add(ctx, 1)
	t.emitEvent(events.NewCaptureRestarted(err))

	t.relisten(generation)
}

// relisten restarts capture while the user holds the turn.
func (t *turnCoordinator) relisten(generation uint64) {
	t.mu.Lock()
	current := t.generation == generation && t.enabled && t.state == TurnListening
	t.resumeTimer = nil
	t.mu.Unlock()
	if !current || !t.restoreCapture(generation, t.relisten) {
		return
	}

	t.mu.Lock()
	stale := t.generation != generation || !t.enabled || t.state != TurnListening
	t.mu.Unlock()
	if stale {
		t.capture.Abort()
	}
}

// restoreCapture starts capture and reports whether it is running. Failures
// other than a refused microphone or a race are retried with backoff through
// again, and voice chat is disabled once the retries run out.
func (t *turnCoordinator) restoreCapture(generation uint64, again func(uint64)) bool {
	err := t.startCapture()
	switch {
	case err == nil:
		t.mu.Lock()
		if t.generation == generation {
			t.recovery = nil
		}
		t.mu.Unlock()
		return true
	case errors.Is(err, speechtotext.ErrPermissionDenied), errors.Is(err, speechtotext.ErrAborted):
		return false
	}

	t.mu.Lock()
	if t.generation != generation || !t.enabled {
		t.mu.Unlock()
		return false
	}
	if t.recovery == nil {
		t.recovery = t.newRecoveryBackoff()
	}
	delay, stop := t.recovery.Next()
	if !stop {
		t.resumeTimer = time.AfterFunc(delay, func() { again(generation) })
	}
	t.mu.Unlock()

	if stop {
		t.fail(fmt.Errorf("speech capture could not be restarted: %w", err))
	} else {
		logger.DebugContext(t.baseContext(), "retrying speech capture", "delay", delay)
	}
	return false
}

func (t *turnCoordinator) newRecoveryBackoff() retry.Backoff {
	backoff := retry.NewExponential(t.resumeDelay)
	backoff = retry.WithCappedDuration(maxRecoveryDelay, backoff)
	return retry.WithMaxRetries(maxCaptureRecoveries, backoff)
}

// startCapture restarts capture. Races with a session that is already running
// are ignored and a refused microphone disables voice chat.
func (t *turnCoordinator) startCapture() error {
	ctx := t.baseContext()
	err := t.capture.Start(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCaptureAlreadyRunning):
		logger.DebugContext(ctx, "speech capture already running", "error", err)
		return nil
	case errors.Is(err, speechtotext.ErrPermissionDenied):
		t.fail(err)
	case errors.Is(err, speechtotext.ErrAborted):
	default:
		logger.WarnContext(ctx, "failed to restart speech capture", "error", err)
		t.emitEvent(events.NewCaptureFailed(err))
	}
	return err
}

func (t *turnCoordinator) fail(err error) {
	logger.ErrorContext(t.baseContext(), "speech capture failed", "error", err)
	t.emitEvent(events.NewCaptureFailed(err))
	t.Disable()
}

func (t *turnCoordinator) transition(generation uint64, from, to TurnState) bool {
	t.mu.Lock()
	if t.generation != generation || !t.enabled || t.state != from {
		t.mu.Unlock()
		return false
	}
	t.state = to
	t.mu.Unlock()

	t.emitEvent(events.NewTurnStateChanged(from.String(), to.String()))
	return true
}
