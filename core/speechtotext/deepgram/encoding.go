package deepgram

import (
	"errors"
	"fmt"

	"github.com/koscakluka/ema-tutor/core/audio"
)

var errUnsupportedEncoding = errors.New("unsupported encoding")

type encodingInfo struct {
	SampleRate int
	Format     string
}

// convertEncoding maps the capture encoding to Deepgram's query parameters.
// The companded formats are telephony only and need 8kHz.
func convertEncoding(encoding audio.EncodingInfo) (encodingInfo, error) {
	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 44100, 48000:
	default:
		return encodingInfo{}, fmt.Errorf("%w: sample rate %d", errUnsupportedEncoding, encoding.SampleRate)
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
	case audio.EncodingALaw, audio.EncodingMulaw:
		if encoding.SampleRate != 8000 {
			return encodingInfo{}, fmt.Errorf("%w: %s needs 8000Hz, got %d", errUnsupportedEncoding, encoding.Format, encoding.SampleRate)
		}
	default:
		return encodingInfo{}, fmt.Errorf("%w: format %q", errUnsupportedEncoding, encoding.Format)
	}

	return encodingInfo{SampleRate: encoding.SampleRate, Format: encoding.Format.Name()}, nil
}
