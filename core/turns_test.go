package orchestration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/koscakluka/ema-tutor/core/events"
	"github.com/koscakluka/ema-tutor/core/speechtotext"
)

type turnsFixture struct {
	devices   *audioDevices
	stt       *speechToTextStub
	tts       *textToSpeechStub
	recorder  *eventRecorder
	segmenter *silenceSegmenter
	turns     *turnCoordinator
}

func newTurnsFixture() *turnsFixture {
	f := &turnsFixture{devices: &audioDevices{}, recorder: &eventRecorder{}}
	f.stt = newSpeechToTextStub(f.devices)
	f.tts = newTextToSpeechStub(f.devices)
	f.segmenter = newSilenceSegmenter(time.Hour, nil, nil)

	capture := newSpeechCapture(f.stt, f.segmenter.Add, func(err error) { f.turns.captureEnded(err) })
	capture.emitEvent = f.recorder.record
	playback := newSpeechPlayback(f.tts)
	playback.emitEvent = f.recorder.record
	f.turns = newTurnCoordinator(capture, playback, f.segmenter, 10*time.Millisecond)
	f.turns.emitEvent = f.recorder.record
	return f
}

func (f *turnsFixture) enable(t *testing.T) {
	t.Helper()
	if err := f.turns.Enable(context.Background()); err != nil {
		t.Fatalf("expected voice chat to be enabled, got %v", err)
	}
}

func TestEnableStartsListening(t *testing.T) {
	f := newTurnsFixture()
	f.enable(t)

	if state := f.turns.State(); state != TurnListening {
		t.Fatalf("expected listening, got %s", state)
	}
	if !f.stt.Active() || f.stt.Sessions() != 1 {
		t.Fatalf("expected one running capture session, got %d", f.stt.Sessions())
	}
	if f.recorder.Count(events.KindTurnStateChanged) != 1 || f.recorder.Count(events.KindCaptureStarted) != 1 {
		t.Fatalf("unexpected events %v", f.recorder.Kinds())
	}

	// Enabling twice keeps the running session.
	f.enable(t)
	if f.stt.Sessions() != 1 {
		t.Fatalf("expected no second session, got %d", f.stt.Sessions())
	}
}

func TestEnableWithRefusedMicrophoneStaysIdle(t *testing.T) {
	f := newTurnsFixture()
	f.stt.permissionErr = errors.New("user said no")

	err := f.turns.Enable(context.Background())
	if !errors.Is(err, speechtotext.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if f.turns.Enabled() || f.turns.State() != TurnIdle {
		t.Fatalf("expected idle and disabled, got %s", f.turns.State())
	}
	if f.stt.Sessions() != 0 {
		t.Fatal("expected no capture session")
	}
	if f.recorder.Count(events.KindCaptureFailed) != 1 {
		t.Fatalf("expected capture failure event, got %v", f.recorder.Kinds())
	}
}

func TestSpeakRequiresVoiceChat(t *testing.T) {
	f := newTurnsFixture()

	if err := f.turns.Speak(context.Background(), "hello"); !errors.Is(err, ErrVoiceChatDisabled) {
		t.Fatalf("expected voice chat disabled, got %v", err)
	}
	if len(f.tts.Utterances()) != 0 {
		t.Fatal("expected nothing to be spoken")
	}
}

func TestSpeakStopsCaptureBeforePlayback(t *testing.T) {
	f := newTurnsFixture()
	f.enable(t)
	f.segmenter.Add("half a sentence", true)

	if err := f.turns.Speak(context.Background(), "Let me explain."); err != nil {
		t.Fatalf("expected speak to succeed, got %v", err)
	}

	if f.stt.Active() {
		t.Fatal("expected capture to be stopped while speaking")
	}
	if f.devices.Violations() != 0 {
		t.Fatal("expected microphone and speaker never to overlap")
	}
	if f.turns.State() != TurnSpeaking {
		t.Fatalf("expected speaking, got %s", f.turns.State())
	}
	if pending := f.segmenter.Pending(); pending != "" {
		t.Fatalf("expected pending transcript to be dropped, got %q", pending)
	}

	// Results of the aborted session are dropped.
	f.stt.final("late words")
	if pending := f.segmenter.Pending(); pending != "" {
		t.Fatalf("expected aborted session results to be ignored, got %q", pending)
	}
}

func TestListeningResumesOnceAfterRapidSpeaks(t *testing.T) {
	f := newTurnsFixture()
	f.enable(t)

	for _, text := range []string{"one", "two", "three"} {
		if err := f.turns.Speak(context.Background(), text); err != nil {
			t.Fatalf("expected speak to succeed, got %v", err)
		}
	}
	utterances := f.tts.Utterances()
	if len(utterances) != 3 || !utterances[0].Cancelled() || !utterances[1].Cancelled() {
		t.Fatal("expected earlier utterances to be cancelled")
	}

	time.Sleep(40 * time.Millisecond)
	if f.turns.State() != TurnSpeaking || f.stt.Sessions() != 1 {
		t.Fatalf("expected to keep speaking until the last utterance ended, got %s", f.turns.State())
	}

	utterances[2].finish(nil)
	waitFor(t, time.Second, func() bool { return f.turns.State() == TurnListening })
	time.Sleep(40 * time.Millisecond)

	if sessions := f.stt.Sessions(); sessions != 2 {
		t.Fatalf("expected capture to resume exactly once, got %d sessions", sessions)
	}
	if f.devices.Violations() != 0 {
		t.Fatal("expected microphone and speaker never to overlap")
	}
}

func TestListeningResumesAfterFailedPlayback(t *testing.T) {
	f := newTurnsFixture()
	f.enable(t)

	_ = f.turns.Speak(context.Background(), "hello")
	f.tts.Last().finish(errors.New("synthesis failed"))

	waitFor(t, time.Second, func() bool { return f.turns.State() == TurnListening })
	if !f.stt.Active() {
		t.Fatal("expected capture to run again")
	}
}

func TestDisableCancelsPlayback(t *testing.T) {
	f := newTurnsFixture()
	f.enable(t)
	_ = f.turns.Speak(context.Background(), "a long explanation")

	f.turns.Disable()

	if !f.tts.Last().Cancelled() {
		t.Fatal("expected playback to be cancelled")
	}
	if f.turns.State() != TurnIdle || f.turns.Enabled() {
		t.Fatalf("expected idle and disabled, got %s", f.turns.State())
	}

	time.Sleep(40 * time.Millisecond)
	if f.stt.Sessions() != 1 || f.stt.Active() {
		t.Fatal("expected capture to stay off after disabling")
	}
}

func TestCaptureRestartsWhenSessionEndsWhileListening(t *testing.T) {
	f := newTurnsFixture()
	f.enable(t)

	f.stt.end(speechtotext.ErrRecognitionUnavailable)

	if f.stt.Sessions() != 2 || !f.stt.Active() {
		t.Fatalf("expected capture to restart, got %d sessions", f.stt.Sessions())
	}
	if f.turns.State() != TurnListening {
		t.Fatalf("expected to keep listening, got %s", f.turns.State())
	}
	if f.recorder.Count(events.KindCaptureRestarted) != 1 {
		t.Fatalf("expected one restart event, got %v", f.recorder.Kinds())
	}

	f.stt.end(speechtotext.ErrNoSpeech)
	if f.stt.Sessions() != 3 {
		t.Fatalf("expected capture to restart after silence, got %d sessions", f.stt.Sessions())
	}
}

func TestCaptureDoesNotRestartWhileSpeaking(t *testing.T) {
	f := newTurnsFixture()
	f.enable(t)
	_ = f.turns.Speak(context.Background(), "hold on")

	f.stt.end(nil)

	if f.stt.Sessions() != 1 {
		t.Fatalf("expected no restart while speaking, got %d sessions", f.stt.Sessions())
	}
	if f.devices.Violations() != 0 {
		t.Fatal("expected microphone and speaker never to overlap")
	}
}

func TestPermissionLossDisablesVoiceChat(t *testing.T) {
	f := newTurnsFixture()
	f.enable(t)

	f.stt.end(speechtotext.ErrPermissionDenied)

	if f.turns.Enabled() || f.turns.State() != TurnIdle {
		t.Fatalf("expected voice chat to be disabled, got %s", f.turns.State())
	}
	if f.stt.Sessions() != 1 {
		t.Fatal("expected no restart after permission loss")
	}
	if f.recorder.Count(events.KindCaptureFailed) != 1 {
		t.Fatalf("expected capture failure event, got %v", f.recorder.Kinds())
	}
}

func TestListeningWaitsForCaptureToRecoverAfterPlayback(t *testing.T) {
	f := newTurnsFixture()
	f.enable(t)
	_ = f.turns.Speak(context.Background(), "one moment")

	f.stt.failTranscribe(speechtotext.ErrRecognitionUnavailable)
	f.tts.Last().finish(nil)

	waitFor(t, time.Second, func() bool { return f.recorder.Count(events.KindCaptureFailed) >= 2 })
	if state := f.turns.State(); state != TurnSpeaking {
		t.Fatalf("expected the turn to stay with the speaker while capture is down, got %s", state)
	}
	if !f.turns.Enabled() {
		t.Fatal("expected voice chat to stay enabled while retrying")
	}

	f.stt.failTranscribe(nil)
	waitFor(t, time.Second, func() bool { return f.turns.State() == TurnListening })
	if !f.stt.Active() || f.stt.Sessions() != 2 {
		t.Fatalf("expected a running capture session, got %d sessions", f.stt.Sessions())
	}
	if f.devices.Violations() != 0 {
		t.Fatal("expected microphone and speaker never to overlap")
	}
}

func TestCaptureRecoveryGivesUpAndDisablesVoiceChat(t *testing.T) {
	f := newTurnsFixture()
	f.enable(t)
	_ = f.turns.Speak(context.Background(), "one moment")

	f.stt.failTranscribe(speechtotext.ErrRecognitionUnavailable)
	f.tts.Last().finish(nil)

	waitFor(t, 2*time.Second, func() bool { return !f.turns.Enabled() })
	if state := f.turns.State(); state != TurnIdle {
		t.Fatalf("expected idle after capture could not be restarted, got %s", state)
	}
	if f.stt.Sessions() != 1 {
		t.Fatalf("expected no further sessions, got %d", f.stt.Sessions())
	}
}

func TestCaptureRetriesWhenRestartWhileListeningFails(t *testing.T) {
	f := newTurnsFixture()
	f.enable(t)

	f.stt.failTranscribe(errors.New("dial tcp: connection refused"))
	f.stt.end(speechtotext.ErrRecognitionUnavailable)
	if f.stt.Active() {
		t.Fatal("expected the restart to fail")
	}

	f.stt.failTranscribe(nil)
	waitFor(t, time.Second, func() bool { return f.stt.Active() })
	if f.stt.Sessions() != 2 || f.turns.State() != TurnListening {
		t.Fatalf("expected capture to recover while listening, got %d sessions in %s", f.stt.Sessions(), f.turns.State())
	}
}
