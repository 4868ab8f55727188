package audio

import "context"

// Input is a microphone-like audio source.
type Input interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
	EncodingInfo() EncodingInfo
}

// Output plays audio. Mark registers a callback invoked once all audio sent
// before the mark has been played.
type Output interface {
	SendAudio(audio []byte) error
	Mark(name string, callback func(name string)) error
	ClearBuffer()
	EncodingInfo() EncodingInfo
}
