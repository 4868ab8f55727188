package quiz

import (
	"fmt"
	"strings"
	"sync"
)

// Session tracks the progress of one open quiz. The question set is fixed
// for the lifetime of the session.
type Session struct {
	mu sync.Mutex

	quiz       Quiz
	index      int
	answers    []string
	submitted  bool
	submitting bool

	onSubmit func(answers []string) error
}

// NewSession opens a quiz. onSubmit receives a copy of the answers indexed by
// question position and is called at most once successfully.
func NewSession(quiz Quiz, onSubmit func(answers []string) error) (*Session, error) {
	if err := quiz.Validate(); err != nil {
		return nil, err
	}

	return &Session{
		quiz:     quiz,
		answers:  make([]string, len(quiz.Questions)),
		onSubmit: onSubmit,
	}, nil
}

func (s *Session) Quiz() Quiz { return s.quiz }
func (s *Session) Len() int   { return len(s.quiz.Questions) }

func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

func (s *Session) Current() Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quiz.Questions[s.index]
}

// Next moves to the next question and reports whether the index changed.
func (s *Session) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.quiz.Questions)-1 {
		return false
	}
	s.index++
	return true
}

// Previous moves to the previous question and reports whether the index
// changed.
func (s *Session) Previous() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == 0 {
		return false
	}
	s.index--
	return true
}

// Answer records the answer for the current question.
func (s *Session) Answer(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted || s.submitting {
		return ErrAlreadySubmitted
	}
	s.answers[s.index] = value
	return nil
}

func (s *Session) Answers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.answers...)
}

func (s *Session) Submitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted
}

// Apply executes a recognized command. Repeat and Unrecognized leave the
// session untouched.
func (s *Session) Apply(command Command) error {
	switch command.Kind {
	case CommandNavigate:
		if command.Direction == Backward {
			s.Previous()
		} else {
			s.Next()
		}
	case CommandSelectAnswer:
		return s.Answer(command.Answer)
	case CommandSubmit:
		return s.Submit()
	}
	return nil
}

// Submit hands the answers to the submit callback. A failed callback leaves
// the session open so it can be submitted again.
func (s *Session) Submit() error {
	s.mu.Lock()
	if s.submitted || s.submitting {
		s.mu.Unlock()
		return ErrAlreadySubmitted
	}
	s.submitting = true
	answers := append([]string(nil), s.answers...)
	s.mu.Unlock()

	var err error
	if s.onSubmit != nil {
		err = s.onSubmit(answers)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
	if err != nil {
		return fmt.Errorf("failed to submit quiz: %w", err)
	}
	s.submitted = true
	return nil
}

type Score struct {
	Correct    int
	Total      int
	Percentage float64
}

func (s *Session) Score() Score {
	s.mu.Lock()
	defer s.mu.Unlock()

	score := Score{Total: len(s.quiz.Questions)}
	for i, question := range s.quiz.Questions {
		if question.IsCorrect(s.answers[i]) {
			score.Correct++
		}
	}
	if score.Total > 0 {
		score.Percentage = float64(score.Correct) / float64(score.Total) * 100
	}
	return score
}

// SpokenQuestion renders the current question the way it is read aloud.
func (s *Session) SpokenQuestion() string {
	s.mu.Lock()
	index, question := s.index, s.quiz.Questions[s.index]
	s.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Question %d of %d. %s", index+1, len(s.quiz.Questions), strings.TrimSpace(question.Prompt))
	switch question.Type {
	case MultipleChoice:
		choices := question.Choices()
		spoken := make([]string, 0, len(choices))
		for _, choice := range choices {
			spoken = append(spoken, fmt.Sprintf("%s: %s", choice.Letter, choice.Text))
		}
		fmt.Fprintf(&b, " Options are %s.", strings.Join(spoken, ", "))
	case TrueFalse:
		b.WriteString(" True or false?")
	}
	return b.String()
}
