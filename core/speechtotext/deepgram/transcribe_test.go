package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-tutor/core/audio"
	"github.com/koscakluka/ema-tutor/core/speechtotext"
)

type inputStub struct {
	mu      sync.Mutex
	started int
	stopped int
	onAudio func([]byte)
	err     error
}

func (i *inputStub) StartCapture(_ context.Context, onAudio func([]byte)) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return i.err
	}
	i.started++
	i.onAudio = onAudio
	return nil
}

func (i *inputStub) StopCapture() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stopped++
	i.onAudio = nil
	return nil
}

func (i *inputStub) EncodingInfo() audio.EncodingInfo { return audio.GetDefaultEncodingInfo() }

func newDeepgramServer(t *testing.T, handle func(conn *websocket.Conn, r *http.Request)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn, r)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func results(transcript string, isFinal bool) map[string]any {
	return map[string]any{
		"type":     "Results",
		"is_final": isFinal,
		"channel": map[string]any{
			"alternatives": []map[string]any{{"transcript": transcript}},
		},
	}
}

func TestTranscribeDeliversInterimAndFinalResults(t *testing.T) {
	var authorization, sampleRate string
	listenURL := newDeepgramServer(t, func(conn *websocket.Conn, r *http.Request) {
		authorization = r.Header.Get("Authorization")
		sampleRate = r.URL.Query().Get("sample_rate")
		_ = conn.WriteJSON(map[string]any{"type": "SpeechStarted"})
		_ = conn.WriteJSON(results("what is", false))
		_ = conn.WriteJSON(results("what is photosynthesis", true))
		_ = conn.WriteJSON(map[string]any{"type": "UtteranceEnd"})
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		time.Sleep(50 * time.Millisecond)
	})

	input := &inputStub{}
	client := NewTranscriptionClient("key", input, WithListenURL(listenURL))

	var mu sync.Mutex
	var got []string
	record := func(entry string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, entry)
	}
	ended := make(chan error, 1)

	err := client.Transcribe(context.Background(),
		speechtotext.WithSpeechStartedCallback(func() { record("started") }),
		speechtotext.WithInterimTranscriptionCallback(func(text string) { record("interim:" + text) }),
		speechtotext.WithTranscriptionCallback(func(text string) { record("final:" + text) }),
		speechtotext.WithSpeechEndedCallback(func() { record("ended") }),
		speechtotext.WithSessionEndedCallback(func(err error) { ended <- err }),
	)
	if err != nil {
		t.Fatalf("expected transcription to start, got %v", err)
	}

	select {
	case err := <-ended:
		if !errors.Is(err, speechtotext.ErrRecognitionUnavailable) {
			t.Fatalf("expected server close to end the session as unavailable, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected session to end")
	}

	mu.Lock()
	defer mu.Unlock()
	expected := []string{"started", "interim:what is", "final:what is photosynthesis", "ended"}
	if strings.Join(got, "|") != strings.Join(expected, "|") {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	if authorization != "Token key" {
		t.Fatalf("expected token authorization, got %q", authorization)
	}
	if sampleRate != "16000" {
		t.Fatalf("expected sample rate from input, got %q", sampleRate)
	}

	input.mu.Lock()
	defer input.mu.Unlock()
	if input.started != 1 || input.stopped != 1 {
		t.Fatalf("expected input started and stopped once, got %d/%d", input.started, input.stopped)
	}
}

func TestAbortDoesNotReportSessionEnd(t *testing.T) {
	released := make(chan struct{})
	listenURL := newDeepgramServer(t, func(conn *websocket.Conn, r *http.Request) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(released)
				return
			}
		}
	})

	input := &inputStub{}
	client := NewTranscriptionClient("key", input, WithListenURL(listenURL))

	ended := make(chan error, 1)
	if err := client.Transcribe(context.Background(),
		speechtotext.WithSessionEndedCallback(func(err error) { ended <- err }),
	); err != nil {
		t.Fatalf("expected transcription to start, got %v", err)
	}

	if err := client.Abort(); err != nil {
		t.Fatalf("expected abort to succeed, got %v", err)
	}

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected connection to be closed")
	}

	select {
	case err := <-ended:
		t.Fatalf("expected no session end after abort, got %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTranscribeReportsInputFailureAsPermissionDenied(t *testing.T) {
	listenURL := newDeepgramServer(t, func(conn *websocket.Conn, r *http.Request) {
		_, _, _ = conn.ReadMessage()
	})

	client := NewTranscriptionClient("key", &inputStub{err: errors.New("device busy")}, WithListenURL(listenURL))
	if err := client.Transcribe(context.Background()); !errors.Is(err, speechtotext.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestRequestMicrophoneAccessWithoutInput(t *testing.T) {
	client := NewTranscriptionClient("key", nil)
	if err := client.RequestMicrophoneAccess(context.Background()); !errors.Is(err, speechtotext.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestConvertEncodingRejectsUnsupportedRates(t *testing.T) {
	if _, err := convertEncoding(audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingMulaw}); err == nil {
		t.Fatalf("expected mulaw at 16kHz to be rejected")
	}
	got, err := convertEncoding(audio.GetDefaultEncodingInfo())
	if err != nil || got.Format != "linear16" || got.SampleRate != 16000 {
		t.Fatalf("expected linear16 at 16kHz, got %+v (%v)", got, err)
	}
}
