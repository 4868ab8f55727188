package orchestration

import "github.com/koscakluka/ema-tutor/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts OrchestrateOptions) eventEmitter {
	return func(event events.Event) {
		if opts.onEvent != nil {
			opts.onEvent(event)
		}

		switch typedEvent := event.(type) {
		case events.UserTranscriptInterimUpdated:
			if opts.onTranscriptPreview != nil {
				opts.onTranscriptPreview(typedEvent.Transcript)
			}
		case events.UserUtteranceFinal:
			if opts.onUtterance != nil {
				opts.onUtterance(typedEvent.Transcript)
			}
		case events.AssistantMessage:
			if opts.onMessage != nil {
				opts.onMessage(typedEvent.Message)
			}
		case events.AssistantMessageAmended:
			if opts.onMessageAmended != nil {
				opts.onMessageAmended(typedEvent.Message)
			}
		case events.AssistantSessionStarted:
			if opts.onSession != nil {
				opts.onSession(typedEvent.SessionID, typedEvent.Subject)
			}
		case events.AssistantBadgesEarned:
			if opts.onBadges != nil {
				opts.onBadges(typedEvent.Badges)
			}
		case events.AssistantResponseFailed:
			if opts.onError != nil {
				opts.onError(typedEvent.Err)
			}
		case events.TurnStateChanged:
			if opts.onTurnStateChanged != nil {
				opts.onTurnStateChanged(TurnState(typedEvent.From), TurnState(typedEvent.To))
			}
		case events.AssistantPlaybackStarted:
			if opts.onSpeakingStarted != nil {
				opts.onSpeakingStarted(typedEvent.Text)
			}
		case events.AssistantPlaybackWordBoundary:
			if opts.onWordBoundary != nil {
				opts.onWordBoundary(typedEvent.CharIndex)
			}
		case events.AssistantPlaybackEnded:
			if opts.onSpeakingEnded != nil {
				opts.onSpeakingEnded(typedEvent.Text, typedEvent.Err)
			}
		case events.CaptureFailed:
			if opts.onError != nil {
				opts.onError(typedEvent.Err)
			}
		case events.QuizOpened:
			if opts.onQuizOpened != nil {
				opts.onQuizOpened(typedEvent.Quiz)
			}
		case events.QuizCommand:
			if opts.onQuizCommand != nil {
				opts.onQuizCommand(typedEvent.Command, typedEvent.Index)
			}
		case events.QuizSubmitted:
			if opts.onQuizSubmitted != nil {
				opts.onQuizSubmitted(typedEvent.Answers, typedEvent.Score)
			}
		case events.QuizClosed:
			if opts.onQuizClosed != nil {
				opts.onQuizClosed()
			}
		case events.QuizUnavailable:
			if opts.onQuizUnavailable != nil {
				opts.onQuizUnavailable(typedEvent.Err)
			}
		}
	}
}
