package events

const (
	KindCaptureStarted   Kind = "capture.started"
	KindCaptureStopped   Kind = "capture.stopped"
	KindCaptureRestarted Kind = "capture.restarted"
	KindCaptureFailed    Kind = "capture.failed"
)

type CaptureStarted struct{ Base }

func NewCaptureStarted() CaptureStarted {
	return CaptureStarted{Base: NewBase(KindCaptureStarted)}
}

type CaptureStopped struct{ Base }

func NewCaptureStopped() CaptureStopped {
	return CaptureStopped{Base: NewBase(KindCaptureStopped)}
}

// CaptureRestarted marks an automatic restart after the recognizer ended the
// session on its own.
type CaptureRestarted struct {
	Base
	Cause error
}

func NewCaptureRestarted(cause error) CaptureRestarted {
	return CaptureRestarted{Base: NewBase(KindCaptureRestarted), Cause: cause}
}

// CaptureFailed carries a capture error that needs the user's attention, such
// as denied microphone access.
type CaptureFailed struct {
	Base
	Err error
}

func NewCaptureFailed(err error) CaptureFailed {
	return CaptureFailed{Base: NewBase(KindCaptureFailed), Err: err}
}
