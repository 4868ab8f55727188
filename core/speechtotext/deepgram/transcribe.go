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
	"strings"
	"sync"
	"sync/atomic"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-tutor/core/audio"
	"github.com/koscakluka/ema-tutor/core/speechtotext"
	"github.com/koscakluka/ema-tutor/internal/utils"
)

// Transcribe opens a continuous session with interim results. It returns once
// the session is running; results arrive through the option callbacks until
// Abort is called or the session ends on its own.
func (c *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	if c.input == nil {
		return fmt.Errorf("%w: no audio input configured", speechtotext.ErrPermissionDenied)
	}

	options := speechtotext.TranscriptionOptions{EncodingInfo: c.input.EncodingInfo()}
	for _, opt := range opts {
		opt(&options)
	}

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := c.connectWebsocket(ctx, encoding)
	if err != nil {
		return fmt.Errorf("%w: %w", speechtotext.ErrRecognitionUnavailable, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	session := &transcriptionSession{
		conn:      conn,
		input:     c.input,
		options:   options,
		cancel:    cancel,
		lastMsgTs: time.Now(),
	}

	c.mu.Lock()
	previous := c.session
	c.session = session
	c.mu.Unlock()
	if previous != nil {
		_ = previous.stop(true)
	}

	if err := c.input.StartCapture(ctx, session.sendAudio); err != nil {
		c.mu.Lock()
		if c.session == session {
			c.session = nil
		}
		c.mu.Unlock()
		_ = session.stop(true)
		return fmt.Errorf("%w: %w", speechtotext.ErrPermissionDenied, err)
	}

	go session.generateSilence(ctx, options.EncodingInfo)
	go func() {
		err := session.readAndProcessMessages(ctx)
		c.mu.Lock()
		if c.session == session {
			c.session = nil
		}
		c.mu.Unlock()
		session.end(err)
	}()

	return nil
}

func (c *TranscriptionClient) connectWebsocket(ctx context.Context, encoding encodingInfo) (*websocket.Conn, error) {
	listenUrl, err := url.Parse(c.listenURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listen url: %w", err)
	}
	queryParams := listenUrl.Query()
	queryParams.Set("encoding", encoding.Format)
	queryParams.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", c.model)
	queryParams.Set("language", c.language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("endpointing", "300")
	queryParams.Set("vad_events", "true")
	listenUrl.RawQuery = queryParams.Encode()

	conn, _, err := c.dialer.DialContext(ctx, listenUrl.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

type transcriptionSession struct {
	conn    *websocket.Conn
	input   audio.Input
	options speechtotext.TranscriptionOptions
	cancel  context.CancelFunc

	connMu    sync.Mutex
	lastMsgTs time.Time

	aborted  atomic.Bool
	stopOnce sync.Once
	endOnce  sync.Once
}

func (s *transcriptionSession) sendAudio(audio []byte) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	s.lastMsgTs = time.Now()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		log.Println("Failed to write to deepgram client", "error", err)
	}
}

func (s *transcriptionSession) sendSilence(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *transcriptionSession) sendKeepAlive() {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if err := s.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: "KeepAlive"}); err != nil {
		log.Println("Failed to write to deepgram client", "error", err)
	}
}

func (s *transcriptionSession) sinceLastAudio() time.Duration {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return time.Since(s.lastMsgTs)
}

// stop tears the session down. An aborted session never reports its end.
func (s *transcriptionSession) stop(aborted bool) error {
	if aborted {
		s.aborted.Store(true)
	}

	var err error
	s.stopOnce.Do(func() {
		s.cancel()
		if stopErr := s.input.StopCapture(); stopErr != nil {
			err = fmt.Errorf("failed to stop audio input: %w", stopErr)
		}

		s.connMu.Lock()
		closeErr := s.conn.WriteJSON(struct {
			Type string `json:"type"`
		}{Type: string(api.TypeCloseStreamResponse)})
		s.connMu.Unlock()
		if closeErr != nil && !errors.Is(closeErr, websocket.ErrCloseSent) {
			log.Println("Failed to close deepgram stream", "error", closeErr)
		}
		s.conn.Close()
	})
	return err
}

func (s *transcriptionSession) end(err error) {
	_ = s.stop(false)
	if s.aborted.Load() {
		return
	}

	s.endOnce.Do(func() {
		if s.options.SessionEndedCallback != nil {
			s.options.SessionEndedCallback(err)
		}
	})
}

func (s *transcriptionSession) readAndProcessMessages(ctx context.Context) error {
	for {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || s.aborted.Load() {
				return speechtotext.ErrAborted
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return fmt.Errorf("%w: deepgram closed the stream", speechtotext.ErrRecognitionUnavailable)
			}
			return fmt.Errorf("%w: %w", speechtotext.ErrRecognitionUnavailable, err)
		}
		if msgType != websocket.BinaryMessage && !s.aborted.Load() {
			s.processMessage(msg)
		}
	}
}

func (s *transcriptionSession) processMessage(msg []byte) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		log.Println("Failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Println("Failed to unmarshal deepgram message", err)
			return
		}
		if len(msgResp.Channel.Alternatives) == 0 {
			return
		}

		transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		if msgResp.IsFinal {
			if transcript != "" && s.options.TranscriptionCallback != nil {
				s.options.TranscriptionCallback(transcript)
			}
		} else if transcript != "" && s.options.InterimTranscriptionCallback != nil {
			s.options.InterimTranscriptionCallback(transcript)
		}

	case api.TypeUtteranceEndResponse:
		if s.options.SpeechEndedCallback != nil {
			s.options.SpeechEndedCallback()
		}

	case api.TypeSpeechStartedResponse:
		if s.options.SpeechStartedCallback != nil {
			s.options.SpeechStartedCallback()
		}
	}
}

// generateSilence keeps the stream alive while the input is quiet: short
// gaps are filled with silence so endpointing still triggers, longer ones
// with KeepAlive messages.
func (s *transcriptionSession) generateSilence(ctx context.Context, encoding audio.EncodingInfo) {
	type silenceGeneratorState string
	const (
		silenceGeneratorStateWaiting   silenceGeneratorState = "waiting"
		silenceGeneratorStateSilence   silenceGeneratorState = "silence"
		silenceGeneratorStateKeepAlive silenceGeneratorState = "keepAlive"
	)

	const interval = 50 * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	chunk := encoding.Silence(interval)

	var state = silenceGeneratorStateWaiting
	var firstSilenceTime *time.Time
	var lastKeepAliveTime *time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			quiet := s.sinceLastAudio() > interval
			switch state {
			case silenceGeneratorStateWaiting:
				if quiet {
					state = silenceGeneratorStateSilence
					firstSilenceTime = utils.Ptr(time.Now())
				}

			case silenceGeneratorStateSilence:
				if !quiet {
					state = silenceGeneratorStateWaiting
					firstSilenceTime = nil
					continue
				}
				if time.Since(*firstSilenceTime) >= time.Second {
					state = silenceGeneratorStateKeepAlive
					lastKeepAliveTime = utils.Ptr(time.Now())
					firstSilenceTime = nil
					continue
				}

				if err := s.sendSilence(chunk); err != nil {
					log.Println("Sending silence audio error", err)
				}

			case silenceGeneratorStateKeepAlive:
				if !quiet {
					state = silenceGeneratorStateWaiting
					continue
				}

				if time.Since(*lastKeepAliveTime) >= 5*time.Second {
					lastKeepAliveTime = utils.Ptr(time.Now())
					s.sendKeepAlive()
				}
			}
		}
	}
}
