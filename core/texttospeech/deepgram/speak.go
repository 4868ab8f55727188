package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-tutor/core/audio"
	"github.com/koscakluka/ema-tutor/core/texttospeech"
)

type websocketMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

var (
	flushMsg = websocketMessage{Type: "Flush"}
	clearMsg = websocketMessage{Type: "Clear"}
	closeMsg = websocketMessage{Type: "Close"}
)

func speakMsg(text string) websocketMessage {
	return websocketMessage{Type: "Speak", Text: text}
}

// Speak synthesizes text and plays it on the client output. It returns once
// the text has been sent; progress is reported through the option callbacks.
func (c *TextToSpeechClient) Speak(ctx context.Context, text string, opts ...texttospeech.SpeechOption) (texttospeech.Utterance, error) {
	options := texttospeech.SpeechOptions{EncodingInfo: c.output.EncodingInfo()}
	for _, opt := range opts {
		opt(&options)
	}

	conn, err := c.connectWebsocket(ctx, options.EncodingInfo)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", texttospeech.ErrSynthesisFailed, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	u := &utterance{
		id:      uuid.NewString(),
		text:    text,
		conn:    conn,
		output:  c.output,
		options: options,
		cancel:  cancel,
	}
	stopAfter := context.AfterFunc(ctx, func() { _ = u.conn.Close() })

	if err := u.send(speakMsg(text)); err != nil {
		stopAfter()
		u.close()
		return nil, fmt.Errorf("%w: %w", texttospeech.ErrSynthesisFailed, err)
	}
	if err := u.send(flushMsg); err != nil {
		stopAfter()
		u.close()
		return nil, fmt.Errorf("%w: %w", texttospeech.ErrSynthesisFailed, err)
	}

	go u.processIncomingMessages(ctx)

	return u, nil
}

func (c *TextToSpeechClient) connectWebsocket(ctx context.Context, encodingInfo audio.EncodingInfo) (*websocket.Conn, error) {
	speakURL, err := url.Parse(c.speakURL)
	if err != nil {
		return nil, fmt.Errorf("invalid speak url: %w", err)
	}
	urlValues := speakURL.Query()
	urlValues.Set("encoding", encodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	urlValues.Set("model", string(c.voice))
	urlValues.Set("container", "none")
	speakURL.RawQuery = urlValues.Encode()

	conn, _, err := c.dialer.DialContext(ctx, speakURL.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

type utterance struct {
	id      string
	text    string
	conn    *websocket.Conn
	output  audio.Output
	options texttospeech.SpeechOptions
	cancel  context.CancelFunc

	mu         sync.Mutex
	startedAt  time.Time
	audioBytes int

	cancelled  atomic.Bool
	closeOnce  sync.Once
	finishOnce sync.Once
}

func (u *utterance) processIncomingMessages(ctx context.Context) {
	for {
		msgType, msg, err := u.conn.ReadMessage()
		if err != nil {
			if u.cancelled.Load() {
				return
			}
			if ctx.Err() != nil {
				u.finish(ctx.Err())
				return
			}
			u.finish(fmt.Errorf("deepgram stream ended before the utterance was flushed: %w", err))
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if err := u.play(msg); err != nil {
				u.finish(err)
				return
			}
		case websocket.TextMessage:
			var parsedMsg websocketMessage
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				log.Printf("Failed to unmarshal deepgram message: %v", err)
				continue
			}

			if parsedMsg.Type == "Flushed" {
				u.flushed(ctx)
				return
			}
		}
	}
}

func (u *utterance) play(chunk []byte) error {
	if u.cancelled.Load() || len(chunk) == 0 {
		return nil
	}

	u.mu.Lock()
	first := u.startedAt.IsZero()
	if first {
		u.startedAt = time.Now()
	}
	u.audioBytes += len(chunk)
	u.mu.Unlock()

	if err := u.output.SendAudio(chunk); err != nil {
		return fmt.Errorf("failed to play audio: %w", err)
	}
	if first && u.options.SpeechStartedCallback != nil {
		u.options.SpeechStartedCallback()
	}
	return nil
}

// flushed runs once all audio has been received. The end of the utterance is
// reported when the output reaches the mark placed after the last chunk.
func (u *utterance) flushed(ctx context.Context) {
	if err := u.send(closeMsg); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		log.Printf("Failed to close deepgram stream: %v", err)
	}

	u.mu.Lock()
	startedAt, total := u.startedAt, u.options.EncodingInfo.Duration(u.audioBytes)
	u.mu.Unlock()

	if startedAt.IsZero() {
		u.finish(nil)
		return
	}

	go u.reportWordBoundaries(ctx, startedAt, total)

	if err := u.output.Mark(u.id, func(string) { u.finish(nil) }); err != nil {
		u.finish(fmt.Errorf("failed to mark end of utterance: %w", err))
	}
}

// reportWordBoundaries spreads word starts over the audio duration in
// proportion to their offset in the text.
func (u *utterance) reportWordBoundaries(ctx context.Context, startedAt time.Time, total time.Duration) {
	if u.options.WordBoundaryCallback == nil {
		return
	}

	length := len([]rune(u.text))
	for _, charIndex := range texttospeech.WordStarts(u.text) {
		at := startedAt.Add(time.Duration(int64(total) * int64(charIndex) / int64(length)))
		if wait := time.Until(at); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		if ctx.Err() != nil || u.cancelled.Load() {
			return
		}
		u.options.WordBoundaryCallback(charIndex)
	}
}

func (u *utterance) finish(err error) {
	u.finishOnce.Do(func() {
		u.close()
		if u.cancelled.Load() {
			return
		}

		if err != nil {
			if u.options.ErrorCallback != nil {
				u.options.ErrorCallback(fmt.Errorf("%w: %w", texttospeech.ErrSynthesisFailed, err))
			}
			return
		}
		if u.options.SpeechEndedCallback != nil {
			u.options.SpeechEndedCallback()
		}
	})
}

func (u *utterance) Cancel() error {
	if u.cancelled.Swap(true) {
		return nil
	}

	if err := u.send(clearMsg); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		log.Printf("Failed to clear deepgram stream: %v", err)
	}
	u.output.ClearBuffer()
	u.close()
	return nil
}

func (u *utterance) close() {
	u.closeOnce.Do(func() {
		u.cancel()
		_ = u.conn.Close()
	})
}

func (u *utterance) send(msg websocketMessage) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}
