package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/koscakluka/ema-tutor/core/quiz"
	"github.com/koscakluka/ema-tutor/core/sessions"
)

const (
	DefaultQuizOpenDelay   = time.Second
	DefaultFallbackMessage = "Sorry, I couldn't reach your tutor just now. Please try again in a moment."
	defaultSessionKey      = "default"
)

var (
	// ErrStreamTransport is the result error when the chat endpoint could not
	// be reached or failed before the tutor replied, after all retries.
	ErrStreamTransport = errors.New("chat stream transport failed")
	ErrEmptyMessage    = errors.New("empty chat message")
)

// RetryPolicy bounds how a failed submission is retried. Only failures before
// the first reply are retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 4 * time.Second}
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultRetryPolicy().BaseDelay
	}

	backoff := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		backoff = retry.WithCappedDuration(p.MaxDelay, backoff)
	}
	return retry.WithMaxRetries(uint64(max(p.MaxAttempts, 1)-1), backoff)
}

// Result is the outcome of one submission. Err is nil when the tutor replied,
// even if the stream broke after the reply started.
type Result struct {
	SessionID string
	Subject   string
	Responses []string
	Events    []Event
	Err       error
}

func (r Result) OK() bool { return r.Err == nil }

// Consumer submits messages to the tutor and routes the streamed events to
// the chat history and the registered callbacks.
type Consumer struct {
	client *Client

	history         *History
	store           sessions.Store
	storeKey        string
	retryPolicy     RetryPolicy
	quizOpenDelay   time.Duration
	fallbackMessage string

	onResponse        func(text string)
	onMessage         func(Message)
	onMessageAmended  func(Message)
	onSession         func(SessionInfo)
	onQuiz            func(quiz.Quiz)
	onQuizUnavailable func(error)
	onBadges          func([]string)
	onControl         func(ControlPayload)

	mu            sync.Mutex
	sessionID     string
	sessionLoaded bool
	pendingQuiz   *time.Timer
	closed        bool
}

type ConsumerOption func(*Consumer)

func WithHistory(history *History) ConsumerOption {
	return func(c *Consumer) {
		c.history = history
	}
}

// WithSessionStore restores and persists the chat session id under key.
func WithSessionStore(store sessions.Store, key string) ConsumerOption {
	return func(c *Consumer) {
		c.store = store
		if key != "" {
			c.storeKey = key
		}
	}
}

func WithRetryPolicy(policy RetryPolicy) ConsumerOption {
	return func(c *Consumer) {
		c.retryPolicy = policy
	}
}

func WithQuizOpenDelay(delay time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.quizOpenDelay = delay
	}
}

func WithFallbackMessage(message string) ConsumerOption {
	return func(c *Consumer) {
		c.fallbackMessage = message
	}
}

// WithResponseCallback is called with every reply text that should be spoken.
func WithResponseCallback(callback func(text string)) ConsumerOption {
	return func(c *Consumer) {
		c.onResponse = callback
	}
}

func WithMessageCallback(callback func(Message)) ConsumerOption {
	return func(c *Consumer) {
		c.onMessage = callback
	}
}

func WithMessageAmendedCallback(callback func(Message)) ConsumerOption {
	return func(c *Consumer) {
		c.onMessageAmended = callback
	}
}

func WithSessionCallback(callback func(SessionInfo)) ConsumerOption {
	return func(c *Consumer) {
		c.onSession = callback
	}
}

func WithQuizCallback(callback func(quiz.Quiz)) ConsumerOption {
	return func(c *Consumer) {
		c.onQuiz = callback
	}
}

func WithQuizUnavailableCallback(callback func(error)) ConsumerOption {
	return func(c *Consumer) {
		c.onQuizUnavailable = callback
	}
}

func WithBadgesCallback(callback func([]string)) ConsumerOption {
	return func(c *Consumer) {
		c.onBadges = callback
	}
}

func WithControlCallback(callback func(ControlPayload)) ConsumerOption {
	return func(c *Consumer) {
		c.onControl = callback
	}
}

func NewConsumer(client *Client, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		client:          client,
		storeKey:        defaultSessionKey,
		retryPolicy:     DefaultRetryPolicy(),
		quizOpenDelay:   DefaultQuizOpenDelay,
		fallbackMessage: DefaultFallbackMessage,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.history == nil {
		c.history = NewHistory()
	}

	return c
}

func (c *Consumer) History() *History { return c.history }

func (c *Consumer) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Submit sends text to the tutor and blocks until the reply stream ends.
func (c *Consumer) Submit(ctx context.Context, text string) Result {
	ctx, span := tracer.Start(ctx, "submit chat message")
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Err: ErrEmptyMessage}
	}

	c.emitMessage(c.history.Append(RoleUser, text))
	c.restoreSession(ctx)

	var result Result
	attempt := 0
	// surfaced is set once the user has seen anything from the stream. A
	// stream failing after that is not replayed.
	surfaced := false
	err := retry.Do(ctx, c.retryPolicy.backoff(), func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			submitRetries.Add(ctx, 1)
			logger.InfoContext(ctx, "retrying chat submission", "attempt", attempt)
		}
		result.Events = nil

		stream := c.client.Send(ctx, Request{Text: text, SessionID: c.SessionID()})
		for event, err := range stream.Events(ctx) {
			if err != nil {
				return c.classifyStreamError(ctx, err, surfaced)
			}
			result.Events = append(result.Events, event)
			if c.handleEvent(ctx, event, &result) {
				surfaced = true
			}
		}
		return nil
	})
	span.SetAttributes(
		attribute.Int("chat.attempts", attempt),
		attribute.Int("chat.responses", len(result.Responses)),
	)
	result.SessionID = c.SessionID()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			result.Err = err
			return result
		}

		logger.ErrorContext(ctx, "chat submission failed", "attempts", attempt, "error", err)
		c.emitMessage(c.history.Append(RoleAssistant, c.fallbackMessage))
		if c.onResponse != nil {
			c.onResponse(c.fallbackMessage)
		}
		result.Err = fmt.Errorf("%w: %w", ErrStreamTransport, err)
	}

	return result
}

func (c *Consumer) classifyStreamError(ctx context.Context, err error, surfaced bool) error {
	if surfaced {
		logger.WarnContext(ctx, "chat stream ended early after reply", "error", err)
		return nil
	}
	if ctx.Err() != nil {
		return err
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) && !statusErr.Temporary() {
		return err
	}
	return retry.RetryableError(err)
}

// handleEvent applies event and reports whether it reached the user.
func (c *Consumer) handleEvent(ctx context.Context, event Event, result *Result) bool {
	switch typedEvent := event.(type) {
	case SessionInfo:
		result.Subject = typedEvent.Subject
		c.adoptSession(ctx, typedEvent)

	case Response:
		if strings.TrimSpace(typedEvent.Text) == "" {
			return false
		}
		result.Responses = append(result.Responses, typedEvent.Text)
		c.emitMessage(c.history.Append(RoleAssistant, typedEvent.Text))
		if c.onResponse != nil {
			c.onResponse(typedEvent.Text)
		}
		return true

	case Control:
		c.handleControl(ctx, typedEvent.Payload)
		return true
	}
	return false
}

func (c *Consumer) handleControl(ctx context.Context, payload ControlPayload) {
	if c.onControl != nil {
		c.onControl(payload)
	}

	if payload.ScheduleMessage != "" {
		if message, ok := c.history.AppendToLastAssistant(payload.ScheduleMessage); ok {
			if c.onMessageAmended != nil {
				c.onMessageAmended(message)
			}
		} else {
			c.emitMessage(c.history.Append(RoleAssistant, strings.TrimSpace(payload.ScheduleMessage)))
		}
	}

	if len(payload.NewBadges) > 0 {
		logger.InfoContext(ctx, "new badges earned", "badges", payload.NewBadges)
		if c.onBadges != nil {
			c.onBadges(payload.NewBadges)
		}
	}

	if encouragement := strings.TrimSpace(payload.Encouragement); encouragement != "" {
		c.emitMessage(c.history.Append(RoleAssistant, encouragement))
		if c.onResponse != nil {
			c.onResponse(encouragement)
		}
	}

	if payload.Quiz != nil {
		c.scheduleQuiz(ctx, *payload.Quiz)
	}
}

func (c *Consumer) scheduleQuiz(ctx context.Context, q quiz.Quiz) {
	if err := q.Validate(); err != nil {
		logger.WarnContext(ctx, "quiz not opened", "error", err)
		if c.onQuizUnavailable != nil {
			c.onQuizUnavailable(err)
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.pendingQuiz != nil {
		c.pendingQuiz.Stop()
	}
	c.pendingQuiz = time.AfterFunc(c.quizOpenDelay, func() {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if !closed && c.onQuiz != nil {
			c.onQuiz(q)
		}
	})
}

func (c *Consumer) restoreSession(ctx context.Context) {
	c.mu.Lock()
	if c.sessionLoaded || c.store == nil {
		c.sessionLoaded = true
		c.mu.Unlock()
		return
	}
	c.sessionLoaded = true
	c.mu.Unlock()

	sessionID, err := c.store.Load(ctx, c.storeKey)
	if errors.Is(err, sessions.ErrNotFound) {
		return
	} else if err != nil {
		logger.WarnContext(ctx, "failed to restore chat session", "error", err)
		return
	}

	c.mu.Lock()
	if c.sessionID == "" {
		c.sessionID = sessionID
	}
	c.mu.Unlock()
}

func (c *Consumer) adoptSession(ctx context.Context, info SessionInfo) {
	c.mu.Lock()
	if c.sessionID != "" {
		c.mu.Unlock()
		return
	}
	c.sessionID = info.SessionID
	c.mu.Unlock()

	logger.InfoContext(ctx, "chat session started", "session_id", info.SessionID, "subject", info.Subject)
	if c.store != nil {
		if err := c.store.Save(ctx, c.storeKey, info.SessionID); err != nil {
			logger.WarnContext(ctx, "failed to persist chat session", "error", err)
		}
	}
	if c.onSession != nil {
		c.onSession(info)
	}
}

func (c *Consumer) emitMessage(message Message) {
	if c.onMessage != nil {
		c.onMessage(message)
	}
}

// Close cancels a pending quiz opening.
func (c *Consumer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.pendingQuiz != nil {
		c.pendingQuiz.Stop()
		c.pendingQuiz = nil
	}
}
