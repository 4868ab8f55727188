// Package screening checks that spoken utterances belong in a tutoring
// conversation before they reach the tutor.
package screening

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/koscakluka/ema-tutor/core/chat"
	"github.com/koscakluka/ema-tutor/core/llms"
	"github.com/koscakluka/ema-tutor/core/llms/groq"
)

const (
	DefaultModel = "llama-3.1-8b-instant"

	// DefaultRedirect is spoken when an utterance is not about learning.
	DefaultRedirect = "I'm here to help with your studies! Please ask me questions about your lessons, homework, or any subject you're learning."

	defaultContextTurns = 4

	instructions = `You are an educational content validator. Decide whether the student's latest question or statement is related to learning, education or academic topics.
Learning-related: homework, subjects, studying, exams, concepts, quizzes, answers to the tutor's questions.
Not learning-related: casual chat, games, food, entertainment.
Greetings and short replies to the tutor count as learning-related.`
)

// Verdict is the classifier's structured answer.
type Verdict struct {
	Learning bool   `json:"learning" jsonschema:"description=Whether the statement is related to learning or education"`
	Reason   string `json:"reason" jsonschema:"description=A few words explaining the decision"`
}

type Screener struct {
	apiKey       string
	model        string
	baseURL      string
	redirect     string
	history      *chat.History
	contextTurns int
}

type ScreenerOption func(*Screener)

func WithModel(model string) ScreenerOption {
	return func(s *Screener) { s.model = model }
}

func WithBaseURL(url string) ScreenerOption {
	return func(s *Screener) { s.baseURL = url }
}

func WithRedirect(redirect string) ScreenerOption {
	return func(s *Screener) { s.redirect = redirect }
}

// WithHistory lets the classifier see the last turns of the conversation, so
// that short answers to the tutor are judged in context.
func WithHistory(history *chat.History, turns int) ScreenerOption {
	return func(s *Screener) {
		s.history = history
		s.contextTurns = turns
	}
}

func NewScreener(apiKey string, opts ...ScreenerOption) *Screener {
	s := &Screener{
		apiKey:       apiKey,
		model:        DefaultModel,
		redirect:     DefaultRedirect,
		contextTurns: defaultContextTurns,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Screen classifies utterance. reply is the redirect to speak when the
// utterance is off topic.
func (s *Screener) Screen(ctx context.Context, utterance string) (onTopic bool, reply string, err error) {
	ctx, span := tracer.Start(ctx, "screen utterance")
	defer span.End()

	opts := []llms.StructuredPromptOption{
		llms.WithSystemPrompt(instructions),
		llms.WithTemperature(0.3),
		llms.WithMaxTokens(100),
		llms.WithTurns(s.turns()...),
	}
	if s.baseURL != "" {
		opts = append(opts, llms.WithBaseURL(s.baseURL))
	}

	verdict, err := groq.PromptJSONSchema[Verdict](ctx, s.apiKey, s.model, fmt.Sprintf("Student said: %q", utterance), opts...)
	if err != nil {
		screeningFailures.Add(ctx, 1)
		return true, "", fmt.Errorf("failed to screen utterance: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("screening.learning", verdict.Learning),
		attribute.String("screening.reason", verdict.Reason),
	)
	if verdict.Learning {
		return true, "", nil
	}

	logger.InfoContext(ctx, "utterance screened out", "reason", verdict.Reason)
	screenedOut.Add(ctx, 1)
	return false, s.redirect, nil
}

func (s *Screener) turns() []llms.Turn {
	if s.history == nil || s.contextTurns <= 0 {
		return nil
	}

	messages := s.history.Messages()
	if len(messages) > s.contextTurns {
		messages = messages[len(messages)-s.contextTurns:]
	}

	turns := make([]llms.Turn, 0, len(messages))
	for _, message := range messages {
		role := llms.TurnRoleUser
		if message.Role == chat.RoleAssistant {
			role = llms.TurnRoleAssistant
		}
		turns = append(turns, llms.Turn{Role: role, Content: message.Content})
	}
	return turns
}
