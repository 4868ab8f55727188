package orchestration

import (
	"context"
	"time"

	"github.com/koscakluka/ema-tutor/core/chat"
	"github.com/koscakluka/ema-tutor/core/events"
	"github.com/koscakluka/ema-tutor/core/quiz"
	"github.com/koscakluka/ema-tutor/core/speechtotext"
	"github.com/koscakluka/ema-tutor/core/texttospeech"
)

type OrchestratorOption func(*Orchestrator)

// SpeechToText runs continuous recognition sessions. Abort stops the running
// session without reporting its end.
type SpeechToText interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	Abort() error
}

// MicrophoneAccess is implemented by speech-to-text clients that need
// permission before capturing.
type MicrophoneAccess interface {
	RequestMicrophoneAccess(ctx context.Context) error
}

func WithSpeechToTextClient(client SpeechToText) OrchestratorOption {
	return func(o *Orchestrator) { o.speechToText = client }
}

type TextToSpeech interface {
	Speak(ctx context.Context, text string, opts ...texttospeech.SpeechOption) (texttospeech.Utterance, error)
}

func WithTextToSpeechClient(client TextToSpeech) OrchestratorOption {
	return func(o *Orchestrator) { o.textToSpeech = client }
}

// WithChatClient sends utterances and typed messages to the tutor. The
// orchestrator registers its own response callbacks after opts.
func WithChatClient(client *chat.Client, opts ...chat.ConsumerOption) OrchestratorOption {
	return func(o *Orchestrator) {
		o.chatClient = client
		o.chatOptions = opts
	}
}

// UtteranceScreener decides whether a spoken utterance belongs to a tutoring
// conversation. When it does not, reply is spoken instead of asking the tutor.
type UtteranceScreener interface {
	Screen(ctx context.Context, utterance string) (onTopic bool, reply string, err error)
}

func WithUtteranceScreener(screener UtteranceScreener) OrchestratorOption {
	return func(o *Orchestrator) { o.screener = screener }
}

func WithQuietPeriod(quietPeriod time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.quietPeriod = quietPeriod }
}

func WithResumeDelay(resumeDelay time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.resumeDelay = resumeDelay }
}

func WithSimilarityThreshold(threshold float64) OrchestratorOption {
	return func(o *Orchestrator) { o.router = quiz.NewRouter(threshold) }
}

type OrchestrateOptions struct {
	onEvent             func(events.Event)
	onTranscriptPreview func(preview string)
	onUtterance         func(utterance string)
	onMessage           func(chat.Message)
	onMessageAmended    func(chat.Message)
	onSession           func(sessionID, subject string)
	onBadges            func(badges []string)
	onTurnStateChanged  func(from, to TurnState)
	onSpeakingStarted   func(text string)
	onWordBoundary      func(charIndex int)
	onSpeakingEnded     func(text string, err error)
	onQuizOpened        func(quiz.Quiz)
	onQuizCommand       func(command quiz.Command, index int)
	onQuizSubmitted     func(answers []string, score quiz.Score)
	onQuizClosed        func()
	onQuizUnavailable   func(error)
	onError             func(error)
	quizSubmitHandler   func(answers []string) error
}

type OrchestrateOption func(*OrchestrateOptions)

// WithEventCallback receives every event, including those that also have a
// dedicated callback.
func WithEventCallback(callback func(events.Event)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onEvent = callback }
}

func WithTranscriptPreviewCallback(callback func(preview string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onTranscriptPreview = callback }
}

func WithUtteranceCallback(callback func(utterance string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onUtterance = callback }
}

func WithMessageCallback(callback func(chat.Message)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onMessage = callback }
}

func WithMessageAmendedCallback(callback func(chat.Message)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onMessageAmended = callback }
}

func WithSessionCallback(callback func(sessionID, subject string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onSession = callback }
}

func WithBadgesCallback(callback func(badges []string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onBadges = callback }
}

func WithTurnStateCallback(callback func(from, to TurnState)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onTurnStateChanged = callback }
}

func WithSpeakingStartedCallback(callback func(text string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onSpeakingStarted = callback }
}

// WithWordBoundaryCallback is called with the offset of each spoken word in
// the sanitized text, and with -1 once speaking is over.
func WithWordBoundaryCallback(callback func(charIndex int)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onWordBoundary = callback }
}

func WithSpeakingEndedCallback(callback func(text string, err error)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onSpeakingEnded = callback }
}

func WithQuizOpenedCallback(callback func(quiz.Quiz)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onQuizOpened = callback }
}

func WithQuizCommandCallback(callback func(command quiz.Command, index int)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onQuizCommand = callback }
}

func WithQuizSubmittedCallback(callback func(answers []string, score quiz.Score)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onQuizSubmitted = callback }
}

func WithQuizClosedCallback(callback func()) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onQuizClosed = callback }
}

func WithQuizUnavailableCallback(callback func(error)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onQuizUnavailable = callback }
}

// WithErrorCallback receives errors the user should see, such as a refused
// microphone or a chat submission that got no reply.
func WithErrorCallback(callback func(error)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onError = callback }
}

// WithQuizSubmitHandler receives the answers of quizzes offered by the tutor.
func WithQuizSubmitHandler(handler func(answers []string) error) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.quizSubmitHandler = handler }
}
