package audio

import (
	"testing"
	"time"
)

func TestEncodingInfoDuration(t *testing.T) {
	info := GetDefaultEncodingInfo()

	if got := info.Duration(32000); got != time.Second {
		t.Fatalf("expected one second of linear16 audio, got %s", got)
	}
	if got := (EncodingInfo{}).Duration(100); got != 0 {
		t.Fatalf("expected zero duration for unknown encoding, got %s", got)
	}
}

func TestEncodingInfoSilence(t *testing.T) {
	linear := GetDefaultEncodingInfo().Silence(50 * time.Millisecond)
	if len(linear) != 1600 {
		t.Fatalf("expected 1600 bytes of silence, got %d", len(linear))
	}
	for _, b := range linear {
		if b != 0 {
			t.Fatalf("expected zeroed linear16 silence")
		}
	}

	mulaw := EncodingInfo{SampleRate: 8000, Format: EncodingMulaw}.Silence(10 * time.Millisecond)
	if len(mulaw) != 80 || mulaw[0] != 0xFF {
		t.Fatalf("expected 80 bytes of 0xFF mulaw silence, got %d bytes", len(mulaw))
	}
}
