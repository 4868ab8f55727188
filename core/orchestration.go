package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/koscakluka/ema-tutor/core/chat"
	"github.com/koscakluka/ema-tutor/core/events"
	"github.com/koscakluka/ema-tutor/core/quiz"
)

var errNoChatClient = errors.New("no chat client configured")

// Orchestrator connects voice capture, the tutor chat and speech playback
// into a half-duplex voice conversation.
type Orchestrator struct {
	speechToText SpeechToText
	textToSpeech TextToSpeech
	chatClient   *chat.Client
	chatOptions  []chat.ConsumerOption
	screener     UtteranceScreener
	quietPeriod  time.Duration
	resumeDelay  time.Duration
	router       quiz.Router
	history      *chat.History

	capture   *speechCapture
	segmenter *silenceSegmenter
	playback  *speechPlayback
	turns     *turnCoordinator
	consumer  *chat.Consumer

	mu                 sync.Mutex
	orchestrateOptions OrchestrateOptions
	emitter            eventEmitter
	baseContext        context.Context
	cancel             context.CancelFunc
	quizSession        *quiz.Session
	responseSpeaking   bool
	responseQueue      []string

	workers   sync.WaitGroup
	closeOnce sync.Once
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		quietPeriod: DefaultQuietPeriod,
		resumeDelay: DefaultResumeDelay,
		router:      quiz.NewRouter(quiz.DefaultSimilarityThreshold),
		history:     chat.NewHistory(),
		emitter:     noopEventEmitter,
		baseContext: context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.segmenter = newSilenceSegmenter(o.quietPeriod,
		func(preview string) { o.emit(events.NewUserTranscriptInterimUpdated(preview)) },
		o.handleUtterance,
	)
	o.capture = newSpeechCapture(o.speechToText, o.segmenter.Add, func(err error) { o.turns.captureEnded(err) })
	o.capture.emitEvent = o.emit
	o.playback = newSpeechPlayback(o.textToSpeech)
	o.playback.emitEvent = o.emit
	o.turns = newTurnCoordinator(o.capture, o.playback, o.segmenter, o.resumeDelay)
	o.turns.emitEvent = o.emit
	o.turns.baseContext = o.context

	if o.chatClient != nil {
		consumerOptions := append(append([]chat.ConsumerOption{}, o.chatOptions...),
			chat.WithHistory(o.history),
			chat.WithResponseCallback(o.speakResponse),
			chat.WithMessageCallback(func(message chat.Message) { o.emit(events.NewAssistantMessage(message)) }),
			chat.WithMessageAmendedCallback(func(message chat.Message) { o.emit(events.NewAssistantMessageAmended(message)) }),
			chat.WithSessionCallback(func(info chat.SessionInfo) {
				o.emit(events.NewAssistantSessionStarted(info.SessionID, info.Subject))
			}),
			chat.WithBadgesCallback(func(badges []string) { o.emit(events.NewAssistantBadgesEarned(badges)) }),
			chat.WithQuizCallback(o.quizOffered),
			chat.WithQuizUnavailableCallback(func(err error) { o.emit(events.NewQuizUnavailable(err)) }),
		)
		o.consumer = chat.NewConsumer(o.chatClient, consumerOptions...)
	}

	return o
}

// Orchestrate registers the callbacks and binds the orchestrator to ctx.
// Cancelling ctx closes the orchestrator.
//
// Call Orchestrate once, before enabling voice chat or sending messages.
func (o *Orchestrator) Orchestrate(ctx context.Context, opts ...OrchestrateOption) {
	options := OrchestrateOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.orchestrateOptions = options
	o.emitter = newCallbackEventEmitter(options)
	o.baseContext = ctx
	o.cancel = cancel
	o.mu.Unlock()

	go func() {
		<-ctx.Done()
		o.Close()
	}()
}

// EnableVoiceChat starts listening. It fails with
// speechtotext.ErrPermissionDenied when the microphone is refused.
func (o *Orchestrator) EnableVoiceChat(ctx context.Context) error {
	_, span := tracer.Start(ctx, "enable voice chat")
	defer span.End()

	if err := o.turns.Enable(trace.ContextWithSpan(o.context(), span)); err != nil {
		recordedErr := fmt.Errorf("failed to enable voice chat: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		return recordedErr
	}
	return nil
}

func (o *Orchestrator) DisableVoiceChat() {
	o.clearResponseQueue()
	o.turns.Disable()
}

func (o *Orchestrator) VoiceChatEnabled() bool { return o.turns.Enabled() }
func (o *Orchestrator) State() TurnState       { return o.turns.State() }
func (o *Orchestrator) History() *chat.History { return o.history }

// SendNow submits what was said so far without waiting for a pause.
func (o *Orchestrator) SendNow() { o.segmenter.Flush() }

// SendMessage sends typed text to the tutor and blocks until the reply
// stream ended.
func (o *Orchestrator) SendMessage(ctx context.Context, text string) chat.Result {
	o.segmenter.Reset()
	return o.submit(ctx, text, false)
}

// HandleUtterance routes text as if it had been spoken: to the open quiz when
// there is one, to the tutor otherwise.
func (o *Orchestrator) HandleUtterance(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if session := o.Quiz(); session != nil {
		o.handleQuizTranscript(ctx, session, text)
		return
	}

	if o.screener != nil {
		onTopic, reply, err := o.screener.Screen(ctx, text)
		if err != nil {
			logger.WarnContext(ctx, "utterance screening failed, sending anyway", "error", err)
		} else if !onTopic && reply != "" {
			o.emit(events.NewAssistantMessage(o.history.Append(chat.RoleUser, text)))
			o.emit(events.NewAssistantMessage(o.history.Append(chat.RoleAssistant, reply)))
			o.speakResponse(reply)
			return
		}
	}

	o.submit(ctx, text, true)
}

func (o *Orchestrator) handleUtterance(utterance string) {
	o.emit(events.NewUserUtteranceFinal(utterance))
	o.goWorker("utterance", func(ctx context.Context) error {
		o.HandleUtterance(ctx, utterance)
		return nil
	})
}

func (o *Orchestrator) submit(ctx context.Context, text string, voice bool) chat.Result {
	if o.consumer == nil {
		err := errNoChatClient
		o.emit(events.NewAssistantResponseFailed(err))
		return chat.Result{Err: err}
	}

	o.clearResponseQueue()
	o.emit(events.NewUserMessageSubmitted(text, voice))
	result := o.consumer.Submit(ctx, text)
	if result.Err != nil && !errors.Is(result.Err, chat.ErrEmptyMessage) {
		o.emit(events.NewAssistantResponseFailed(result.Err))
	}
	return result
}

// speakResponse speaks tutor replies one after another. Replies arriving
// while one is spoken wait for it to end.
func (o *Orchestrator) speakResponse(text string) {
	o.mu.Lock()
	if o.responseSpeaking {
		o.responseQueue = append(o.responseQueue, text)
		o.mu.Unlock()
		return
	}
	o.responseSpeaking = true
	o.mu.Unlock()

	if err := o.turns.Speak(o.context(), text); err != nil {
		o.clearResponseQueue()
	}
}

func (o *Orchestrator) speakNextResponse(err error) {
	// Superseded by the reply that is starting now.
	if errors.Is(err, ErrPlaybackCancelled) && o.turns.Enabled() {
		return
	}

	o.mu.Lock()
	if !o.responseSpeaking {
		o.mu.Unlock()
		return
	}
	if err != nil || len(o.responseQueue) == 0 {
		o.responseSpeaking = false
		o.responseQueue = nil
		o.mu.Unlock()
		return
	}
	next := o.responseQueue[0]
	o.responseQueue = o.responseQueue[1:]
	o.mu.Unlock()

	if err := o.turns.Speak(o.context(), next); err != nil {
		o.clearResponseQueue()
	}
}

func (o *Orchestrator) clearResponseQueue() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.responseSpeaking = false
	o.responseQueue = nil
}

// say speaks feedback right away, dropping queued replies.
func (o *Orchestrator) say(text string) {
	o.clearResponseQueue()
	if err := o.turns.Speak(o.context(), text); err != nil && !errors.Is(err, ErrVoiceChatDisabled) {
		logger.Warn("failed to speak feedback", "error", err)
	}
}

func (o *Orchestrator) quizOffered(q quiz.Quiz) {
	o.mu.Lock()
	onSubmit := o.orchestrateOptions.quizSubmitHandler
	o.mu.Unlock()

	// The question waits for the reply that offered the quiz.
	if _, err := o.openQuiz(q, onSubmit, o.speakResponse); err != nil {
		logger.Warn("failed to open offered quiz", "error", err)
	}
}

// OpenQuiz opens q for voice answers and reads the first question right away.
// Spoken utterances go to the quiz until it is closed.
func (o *Orchestrator) OpenQuiz(q quiz.Quiz, onSubmit func(answers []string) error) (*quiz.Session, error) {
	return o.openQuiz(q, onSubmit, o.say)
}

func (o *Orchestrator) openQuiz(q quiz.Quiz, onSubmit func(answers []string) error, speak func(string)) (*quiz.Session, error) {
	session, err := quiz.NewSession(q, onSubmit)
	if err != nil {
		o.emit(events.NewQuizUnavailable(err))
		return nil, err
	}

	o.mu.Lock()
	o.quizSession = session
	o.mu.Unlock()

	o.emit(events.NewQuizOpened(q))
	speak(session.SpokenQuestion())
	return session, nil
}

func (o *Orchestrator) CloseQuiz() {
	o.mu.Lock()
	session := o.quizSession
	o.quizSession = nil
	o.mu.Unlock()

	if session != nil {
		o.emit(events.NewQuizClosed())
	}
}

func (o *Orchestrator) Quiz() *quiz.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.quizSession
}

func (o *Orchestrator) handleQuizTranscript(ctx context.Context, session *quiz.Session, transcript string) {
	question := session.Current()
	command := o.router.Interpret(transcript, question)

	var feedback string
	switch command.Kind {
	case quiz.CommandNavigate:
		var moved bool
		if command.Direction == quiz.Backward {
			moved = session.Previous()
		} else {
			moved = session.Next()
		}
		switch {
		case moved:
			feedback = session.SpokenQuestion()
		case command.Direction == quiz.Backward:
			feedback = "This is the first question."
		default:
			feedback = "This is the last question. Say submit when you are ready."
		}

	case quiz.CommandSelectAnswer:
		if err := session.Answer(command.Answer); err != nil {
			feedback = "This quiz has already been submitted."
		} else if question.Type == quiz.MultipleChoice {
			feedback = fmt.Sprintf("Selected option %s.", command.Answer)
		} else {
			feedback = fmt.Sprintf("Your answer is %s.", command.Answer)
		}

	case quiz.CommandSubmit:
		if err := session.Submit(); errors.Is(err, quiz.ErrAlreadySubmitted) {
			feedback = "This quiz has already been submitted."
		} else if err != nil {
			logger.WarnContext(ctx, "quiz submission failed", "error", err)
			feedback = "Sorry, I couldn't submit your quiz. Please try again."
		} else {
			score := session.Score()
			o.emit(events.NewQuizSubmitted(session.Answers(), score))
			feedback = fmt.Sprintf("Quiz submitted. You got %d out of %d right.", score.Correct, score.Total)
		}

	case quiz.CommandRepeat:
		feedback = session.SpokenQuestion()

	default:
		feedback = "Sorry, I didn't catch that. " + o.router.Hint(question)
	}

	o.emit(events.NewQuizCommand(transcript, command, session.Index()))
	o.say(feedback)
}

// Close stops voice chat and waits for background submissions to finish.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.DisableVoiceChat()
		if o.consumer != nil {
			o.consumer.Close()
		}

		o.mu.Lock()
		cancel := o.cancel
		o.mu.Unlock()
		if cancel != nil {
			cancel()
		}

		o.workers.Wait()
	})
}

func (o *Orchestrator) context() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.baseContext
}

func (o *Orchestrator) emit(event events.Event) {
	if ended, ok := event.(events.AssistantPlaybackEnded); ok {
		defer o.speakNextResponse(ended.Err)
	}

	o.mu.Lock()
	emitter := o.emitter
	o.mu.Unlock()
	emitter(event)
}
