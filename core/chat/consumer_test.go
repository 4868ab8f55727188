package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-tutor/core/quiz"
	"github.com/koscakluka/ema-tutor/core/sessions"
)

func fastRetries(attempts int) ConsumerOption {
	return WithRetryPolicy(RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestSubmitRoutesResponsesAndAdoptsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"type":"session_info","session_id":"s-42","subject":"Science"}`)
		fmt.Fprintln(w, `{"type":"response","content":"Plants use sunlight."}`)
		fmt.Fprintln(w, `{"type":"control","data":{"schedule_msg":" I've also created a study timetable for you!"}}`)
	}))
	defer server.Close()

	store := sessions.NewMemoryStore()
	var spoken []string
	var amended []Message
	consumer := NewConsumer(NewClient(server.URL),
		WithSessionStore(store, "student-1"),
		WithResponseCallback(func(text string) { spoken = append(spoken, text) }),
		WithMessageAmendedCallback(func(message Message) { amended = append(amended, message) }),
	)

	result := consumer.Submit(context.Background(), "how do plants eat?")
	if !result.OK() {
		t.Fatalf("expected submission to succeed, got %v", result.Err)
	}
	if result.SessionID != "s-42" || result.Subject != "Science" {
		t.Fatalf("expected session s-42/Science, got %q/%q", result.SessionID, result.Subject)
	}
	if len(result.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(result.Events))
	}

	if len(spoken) != 1 || spoken[0] != "Plants use sunlight." {
		t.Fatalf("expected reply to be handed over for speech, got %v", spoken)
	}

	messages := consumer.History().Messages()
	if len(messages) != 2 || messages[0].Role != RoleUser || messages[1].Role != RoleAssistant {
		t.Fatalf("expected user and assistant messages, got %+v", messages)
	}
	if want := "Plants use sunlight. I've also created a study timetable for you!"; messages[1].Content != want {
		t.Fatalf("expected schedule message merged into reply, got %q", messages[1].Content)
	}
	if len(amended) != 1 || amended[0].ID != messages[1].ID {
		t.Fatalf("expected one amendment of the reply, got %+v", amended)
	}

	if stored, err := store.Load(context.Background(), "student-1"); err != nil || stored != "s-42" {
		t.Fatalf("expected session persisted, got %q (%v)", stored, err)
	}
}

func TestSubmitReusesStoredSession(t *testing.T) {
	var received atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var request Request
		_ = json.NewDecoder(r.Body).Decode(&request)
		received.Store(request.SessionID)
		fmt.Fprintln(w, `{"type":"session_info","session_id":"other","subject":"General"}`)
		fmt.Fprintln(w, `{"type":"response","content":"ok"}`)
	}))
	defer server.Close()

	store := sessions.NewMemoryStore()
	_ = store.Save(context.Background(), "student-1", "stored")

	consumer := NewConsumer(NewClient(server.URL), WithSessionStore(store, "student-1"))
	result := consumer.Submit(context.Background(), "hello")

	if got := received.Load(); got != "stored" {
		t.Fatalf("expected stored session to be sent, got %v", got)
	}
	if result.SessionID != "stored" {
		t.Fatalf("expected known session to be kept, got %q", result.SessionID)
	}
}

func TestSubmitRetriesBeforeFirstResponse(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, `{"type":"response","content":"finally"}`)
	}))
	defer server.Close()

	consumer := NewConsumer(NewClient(server.URL), fastRetries(3))
	result := consumer.Submit(context.Background(), "hello")

	if !result.OK() {
		t.Fatalf("expected success after retries, got %v", result.Err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
	if len(result.Responses) != 1 || result.Responses[0] != "finally" {
		t.Fatalf("unexpected responses: %v", result.Responses)
	}
}

func TestSubmitFallsBackWhenRetriesAreExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	var spoken []string
	consumer := NewConsumer(NewClient(server.URL), fastRetries(2),
		WithResponseCallback(func(text string) { spoken = append(spoken, text) }))
	result := consumer.Submit(context.Background(), "hello")

	if !errors.Is(result.Err, ErrStreamTransport) {
		t.Fatalf("expected ErrStreamTransport, got %v", result.Err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
	if len(spoken) != 1 || spoken[0] != DefaultFallbackMessage {
		t.Fatalf("expected one fallback reply, got %v", spoken)
	}
	messages := consumer.History().Messages()
	if last := messages[len(messages)-1]; last.Role != RoleAssistant || last.Content != DefaultFallbackMessage {
		t.Fatalf("expected fallback in history, got %+v", last)
	}
}

func TestSubmitDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer server.Close()

	result := NewConsumer(NewClient(server.URL), fastRetries(5)).Submit(context.Background(), "hello")

	if !errors.Is(result.Err, ErrStreamTransport) {
		t.Fatalf("expected ErrStreamTransport, got %v", result.Err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestSubmitSuppressesFailureAfterPartialReply(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Length", "4096")
		fmt.Fprintln(w, `{"type":"response","content":"partial"}`)
	}))
	defer server.Close()

	var spoken []string
	consumer := NewConsumer(NewClient(server.URL), fastRetries(3),
		WithResponseCallback(func(text string) { spoken = append(spoken, text) }))
	result := consumer.Submit(context.Background(), "hello")

	if !result.OK() {
		t.Fatalf("expected failure after a reply to be suppressed, got %v", result.Err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected no retry after a reply, got %d attempts", calls.Load())
	}
	if len(spoken) != 1 || spoken[0] != "partial" {
		t.Fatalf("expected only the partial reply, got %v", spoken)
	}
}

func TestSubmitDoesNotReplayControlAfterFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Length", "4096")
		fmt.Fprintln(w, `{"type":"control","data":{"encouragement":"Keep going!","new_badges":["Curious Mind"]}}`)
	}))
	defer server.Close()

	var spoken []string
	var badges [][]string
	consumer := NewConsumer(NewClient(server.URL), fastRetries(3),
		WithResponseCallback(func(text string) { spoken = append(spoken, text) }),
		WithBadgesCallback(func(earned []string) { badges = append(badges, earned) }))
	result := consumer.Submit(context.Background(), "hello")

	if !result.OK() {
		t.Fatalf("expected failure after encouragement to be suppressed, got %v", result.Err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected no retry after encouragement, got %d attempts", calls.Load())
	}
	if len(spoken) != 1 || spoken[0] != "Keep going!" {
		t.Fatalf("expected encouragement once and no fallback, got %v", spoken)
	}
	if len(badges) != 1 {
		t.Fatalf("expected badges once, got %v", badges)
	}
	if len(result.Events) != 1 {
		t.Fatalf("expected one event, got %d", len(result.Events))
	}
}

func TestSubmitOpensQuizAfterDelay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"type":"response","content":"Let's check what you learned."}`)
		fmt.Fprintln(w, `{"type":"control","data":{"quiz":{"questions":[{"type":"true_false","question":"Water boils at 100C","correct_answer":"True"}]}}}`)
	}))
	defer server.Close()

	var mu sync.Mutex
	var opened []quiz.Quiz
	consumer := NewConsumer(NewClient(server.URL),
		WithQuizOpenDelay(20*time.Millisecond),
		WithQuizCallback(func(q quiz.Quiz) {
			mu.Lock()
			defer mu.Unlock()
			opened = append(opened, q)
		}),
	)
	defer consumer.Close()

	started := time.Now()
	consumer.Submit(context.Background(), "quiz me")

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(opened) == 1
	})
	if elapsed := time.Since(started); elapsed < 20*time.Millisecond {
		t.Fatalf("expected quiz to open after the delay, opened after %s", elapsed)
	}
}

func TestSubmitReportsEmptyQuiz(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"type":"control","data":{"quiz":{"questions":[]}}}`)
	}))
	defer server.Close()

	var unavailable error
	var opened atomic.Bool
	consumer := NewConsumer(NewClient(server.URL),
		WithQuizOpenDelay(time.Millisecond),
		WithQuizCallback(func(quiz.Quiz) { opened.Store(true) }),
		WithQuizUnavailableCallback(func(err error) { unavailable = err }),
	)
	consumer.Submit(context.Background(), "quiz me")

	if !errors.Is(unavailable, quiz.ErrEmptyQuiz) {
		t.Fatalf("expected ErrEmptyQuiz, got %v", unavailable)
	}
	time.Sleep(20 * time.Millisecond)
	if opened.Load() {
		t.Fatalf("expected empty quiz not to open")
	}
}

func TestSubmitSurfacesBadgesAndEncouragement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"type":"response","content":"Correct!"}`)
		fmt.Fprintln(w, `{"type":"control","data":{"new_badges":["Quick Learner"],"encouragement":"You're doing great."}}`)
	}))
	defer server.Close()

	var badges []string
	var spoken []string
	consumer := NewConsumer(NewClient(server.URL),
		WithBadgesCallback(func(earned []string) { badges = earned }),
		WithResponseCallback(func(text string) { spoken = append(spoken, text) }),
	)
	consumer.Submit(context.Background(), "is it 4?")

	if len(badges) != 1 || badges[0] != "Quick Learner" {
		t.Fatalf("expected badge to be surfaced, got %v", badges)
	}
	if len(spoken) != 2 || spoken[1] != "You're doing great." {
		t.Fatalf("expected encouragement to be spoken after the reply, got %v", spoken)
	}
	if consumer.History().Len() != 3 {
		t.Fatalf("expected user, reply and encouragement messages, got %d", consumer.History().Len())
	}
}

func TestSubmitRejectsEmptyText(t *testing.T) {
	consumer := NewConsumer(NewClient("http://127.0.0.1:0"))
	if result := consumer.Submit(context.Background(), "   "); !errors.Is(result.Err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", result.Err)
	}
	if consumer.History().Len() != 0 {
		t.Fatalf("expected nothing recorded for empty text")
	}
}
