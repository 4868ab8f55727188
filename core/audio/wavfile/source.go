// Package wavfile feeds a WAV recording into the pipeline as if it was
// spoken into a microphone.
package wavfile

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/youpy/go-wav"

	"github.com/koscakluka/ema-tutor/core/audio"
)

const defaultChunkDuration = 20 * time.Millisecond

// Source streams 16-bit mono PCM decoded from a WAV file. Capture resumes
// where it was stopped, so audio is not lost while the assistant speaks.
type Source struct {
	pcm      []byte
	info     audio.EncodingInfo
	chunk    time.Duration
	realtime bool

	mu       sync.Mutex
	position int
	cancel   context.CancelFunc
	done     chan struct{}
}

type SourceOption func(*Source)

// WithRealtime paces chunks at playback speed. Enabled by default.
func WithRealtime(realtime bool) SourceOption {
	return func(s *Source) {
		s.realtime = realtime
	}
}

func WithChunkDuration(chunk time.Duration) SourceOption {
	return func(s *Source) {
		if chunk > 0 {
			s.chunk = chunk
		}
	}
}

func Open(path string, opts ...SourceOption) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wav file: %w", err)
	}
	return Decode(bytes.NewReader(data), opts...)
}

// Decode reads a whole WAV stream. Stereo input is mixed down to mono.
func Decode(r *bytes.Reader, opts ...SourceOption) (*Source, error) {
	wavReader := wav.NewReader(r)
	format, err := wavReader.Format()
	if err != nil {
		return nil, fmt.Errorf("WAV format: %w", err)
	}
	numChannels := int(format.NumChannels)
	if numChannels < 1 || numChannels > 2 {
		return nil, fmt.Errorf("WAV: only mono or stereo supported, got %d channels", numChannels)
	}

	var pcm bytes.Buffer
	for {
		samples, err := wavReader.ReadSamples()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("reading WAV samples: %w", err)
		}

		for _, sample := range samples {
			value := wavReader.FloatValue(sample, 0)
			if numChannels == 2 {
				value = (value + wavReader.FloatValue(sample, 1)) / 2
			}
			value = math.Max(-1, math.Min(1, value))
			_ = binary.Write(&pcm, binary.LittleEndian, int16(value*math.MaxInt16))
		}
	}

	s := &Source{
		pcm:      pcm.Bytes(),
		info:     audio.EncodingInfo{SampleRate: int(format.SampleRate), Format: audio.EncodingLinear16},
		chunk:    defaultChunkDuration,
		realtime: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Source) EncodingInfo() audio.EncodingInfo { return s.info }

func (s *Source) Duration() time.Duration { return s.info.Duration(len(s.pcm)) }

func (s *Source) StartCapture(ctx context.Context, onAudio func(audio []byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	go func() {
		defer close(done)
		s.stream(ctx, onAudio)
	}()
	return nil
}

func (s *Source) stream(ctx context.Context, onAudio func(audio []byte)) {
	chunkSize := max(len(s.info.Silence(s.chunk)), 2)
	ticker := time.NewTicker(s.chunk)
	defer ticker.Stop()

	for {
		if s.realtime {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		if s.position >= len(s.pcm) {
			s.mu.Unlock()
			return
		}
		end := min(s.position+chunkSize, len(s.pcm))
		chunk := s.pcm[s.position:end]
		s.position = end
		s.mu.Unlock()

		onAudio(chunk)
	}
}

func (s *Source) StopCapture() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

// Remaining reports how many bytes of audio have not been streamed yet.
func (s *Source) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pcm) - s.position
}
