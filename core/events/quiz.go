package events

import "github.com/koscakluka/ema-tutor/core/quiz"

const (
	KindQuizOpened      Kind = "quiz.opened"
	KindQuizCommand     Kind = "quiz.command"
	KindQuizSubmitted   Kind = "quiz.submitted"
	KindQuizClosed      Kind = "quiz.closed"
	KindQuizUnavailable Kind = "quiz.unavailable"
)

type QuizOpened struct {
	Base
	Quiz quiz.Quiz
}

func NewQuizOpened(q quiz.Quiz) QuizOpened {
	return QuizOpened{Base: NewBase(KindQuizOpened), Quiz: q}
}

// QuizCommand carries a voice command applied to the open quiz. Index is the
// active question after the command.
type QuizCommand struct {
	Base
	Transcript string
	Command    quiz.Command
	Index      int
}

func NewQuizCommand(transcript string, command quiz.Command, index int) QuizCommand {
	return QuizCommand{Base: NewBase(KindQuizCommand), Transcript: transcript, Command: command, Index: index}
}

type QuizSubmitted struct {
	Base
	Answers []string
	Score   quiz.Score
}

func NewQuizSubmitted(answers []string, score quiz.Score) QuizSubmitted {
	return QuizSubmitted{Base: NewBase(KindQuizSubmitted), Answers: answers, Score: score}
}

type QuizClosed struct{ Base }

func NewQuizClosed() QuizClosed {
	return QuizClosed{Base: NewBase(KindQuizClosed)}
}

// QuizUnavailable marks a quiz offered by the tutor that could not be opened.
type QuizUnavailable struct {
	Base
	Err error
}

func NewQuizUnavailable(err error) QuizUnavailable {
	return QuizUnavailable{Base: NewBase(KindQuizUnavailable), Err: err}
}
