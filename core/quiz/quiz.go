// Package quiz holds the quiz model produced by the tutor and the voice
// command router used to answer it hands-free.
package quiz

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrEmptyQuiz is returned when a quiz without questions is offered. Such
	// a quiz never opens.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrAlreadySubmitted is returned when answers are changed or submitted
	// after the quiz has been submitted.
	ErrAlreadySubmitted = errors.New("quiz already submitted")
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
)

type Question struct {
	Type          QuestionType `json:"type"`
	Prompt        string       `json:"question"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer"`
	Explanation   string       `json:"explanation,omitempty"`
}

type Quiz struct {
	Questions  []Question `json:"questions"`
	Difficulty string     `json:"difficulty,omitempty"`
	Reasons    []string   `json:"reasons,omitempty"`
}

// Validate reports whether the quiz can be opened.
func (q Quiz) Validate() error {
	if len(q.Questions) == 0 {
		return ErrEmptyQuiz
	}

	for i, question := range q.Questions {
		if strings.TrimSpace(question.Prompt) == "" {
			return fmt.Errorf("question %d: empty prompt", i+1)
		}
		if question.Type == MultipleChoice && len(question.Options) == 0 {
			return fmt.Errorf("question %d: multiple choice without options", i+1)
		}
	}
	return nil
}

var optionLetterPrefix = regexp.MustCompile(`^\s*([A-Za-z])\s*[\)\.:]\s*`)

// Option is a multiple choice option split into its letter and its text.
type Option struct {
	Letter string
	Text   string
}

// Choices returns the question options with their letters. Options written as
// "B) London" keep their letter, any other option gets a positional one.
func (q Question) Choices() []Option {
	choices := make([]Option, 0, len(q.Options))
	for i, raw := range q.Options {
		if match := optionLetterPrefix.FindStringSubmatch(raw); match != nil {
			choices = append(choices, Option{
				Letter: strings.ToUpper(match[1]),
				Text:   strings.TrimSpace(raw[len(match[0]):]),
			})
			continue
		}
		choices = append(choices, Option{
			Letter: string(rune('A' + i)),
			Text:   strings.TrimSpace(raw),
		})
	}
	return choices
}

// IsCorrect reports whether answer matches the expected answer. Multiple
// choice answers match on either the letter or the option text.
func (q Question) IsCorrect(answer string) bool {
	answer = strings.TrimSpace(answer)
	expected := strings.TrimSpace(q.CorrectAnswer)
	if answer == "" || expected == "" {
		return false
	}
	if strings.EqualFold(answer, expected) {
		return true
	}

	if q.Type != MultipleChoice {
		return false
	}
	for _, choice := range q.Choices() {
		if !strings.EqualFold(choice.Letter, answer) {
			continue
		}
		return strings.EqualFold(choice.Text, expected) ||
			strings.EqualFold(choice.Letter+") "+choice.Text, expected)
	}
	return false
}
