package orchestration

import (
	"context"
	"strings"
	"sync"
	"time"
)

const DefaultQuietPeriod = 1200 * time.Millisecond

// silenceSegmenter joins finalized transcript fragments into utterances and
// emits one once no fragment arrived for the quiet period.
type silenceSegmenter struct {
	quietPeriod time.Duration
	onPreview   func(preview string)
	onUtterance func(utterance string)

	mu         sync.Mutex
	buffer     []string
	timer      *time.Timer
	generation uint64
}

func newSilenceSegmenter(quietPeriod time.Duration, onPreview, onUtterance func(string)) *silenceSegmenter {
	if quietPeriod <= 0 {
		quietPeriod = DefaultQuietPeriod
	}
	if onPreview == nil {
		onPreview = func(string) {}
	}
	if onUtterance == nil {
		onUtterance = func(string) {}
	}

	return &silenceSegmenter{
		quietPeriod: quietPeriod,
		onPreview:   onPreview,
		onUtterance: onUtterance,
	}
}

// Add records one recognition result and restarts the countdown.
func (s *silenceSegmenter) Add(text string, isFinal bool) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	if isFinal && text != "" {
		s.buffer = append(s.buffer, text)
	}

	preview := strings.Join(s.buffer, " ")
	if !isFinal && text != "" {
		preview = strings.TrimSpace(preview + " " + text)
	}

	s.generation++
	generation := s.generation
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.quietPeriod, func() { s.elapsed(generation) })
	s.mu.Unlock()

	s.onPreview(preview)
}

func (s *silenceSegmenter) elapsed(generation uint64) {
	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		return
	}
	utterance := s.take()
	s.mu.Unlock()

	s.emit(utterance)
}

// Flush emits the buffered utterance without waiting for the quiet period.
func (s *silenceSegmenter) Flush() string {
	s.mu.Lock()
	utterance := s.take()
	s.mu.Unlock()

	s.emit(utterance)
	return utterance
}

// Reset drops the buffered fragments and cancels the countdown.
func (s *silenceSegmenter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.take()
}

func (s *silenceSegmenter) Pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.buffer, " ")
}

// take must be called with mu held.
func (s *silenceSegmenter) take() string {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	utterance := strings.Join(s.buffer, " ")
	s.buffer = nil
	return utterance
}

func (s *silenceSegmenter) emit(utterance string) {
	if utterance == "" {
		return
	}
	utterancesEmitted.Add(context.Background(), 1)
	s.onUtterance(utterance)
}
