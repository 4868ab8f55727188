package chat

import (
	"errors"
	"testing"
)

func TestDecodeEvent(t *testing.T) {
	testCases := []struct {
		name     string
		line     string
		expected Event
	}{
		{
			name:     "session info",
			line:     `{"type":"session_info","session_id":"abc","subject":"Mathematics"}`,
			expected: SessionInfo{SessionID: "abc", Subject: "Mathematics"},
		},
		{
			name:     "response content",
			line:     `{"type":"response","content":"Fractions are parts of a whole."}` + "\n",
			expected: Response{Text: "Fractions are parts of a whole."},
		},
		{
			name:     "response text alias",
			line:     `{"type":"response","text":"Hello"}`,
			expected: Response{Text: "Hello"},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			event, err := DecodeEvent([]byte(testCase.line))
			if err != nil {
				t.Fatalf("expected decode to succeed, got %v", err)
			}
			if event != testCase.expected {
				t.Fatalf("expected %#v, got %#v", testCase.expected, event)
			}
		})
	}
}

func TestDecodeControlEvent(t *testing.T) {
	line := `{"type":"control","data":{"agents_involved":["tutoring","assessment"],"new_badges":["Curious Mind"],` +
		`"schedule_msg":" See your timetable.","practice_schedule":{"days":3},` +
		`"quiz":{"difficulty":"easy","questions":[{"type":"true_false","question":"2+2=4","correct_answer":"True"}]}}}`

	event, err := DecodeEvent([]byte(line))
	if err != nil {
		t.Fatalf("expected decode to succeed, got %v", err)
	}

	control, ok := event.(Control)
	if !ok {
		t.Fatalf("expected control event, got %T", event)
	}
	payload := control.Payload
	if len(payload.AgentsInvolved) != 2 || payload.AgentsInvolved[1] != "assessment" {
		t.Fatalf("unexpected agents involved: %v", payload.AgentsInvolved)
	}
	if len(payload.NewBadges) != 1 || payload.NewBadges[0] != "Curious Mind" {
		t.Fatalf("unexpected badges: %v", payload.NewBadges)
	}
	if payload.ScheduleMessage != " See your timetable." {
		t.Fatalf("unexpected schedule message: %q", payload.ScheduleMessage)
	}
	if string(payload.PracticeSchedule) != `{"days":3}` {
		t.Fatalf("expected raw practice schedule, got %s", payload.PracticeSchedule)
	}
	if payload.Quiz == nil || len(payload.Quiz.Questions) != 1 || payload.Quiz.Questions[0].Prompt != "2+2=4" {
		t.Fatalf("unexpected quiz: %+v", payload.Quiz)
	}
}

func TestDecodeEventErrors(t *testing.T) {
	testCases := []struct {
		name     string
		line     string
		expected error
	}{
		{name: "invalid json", line: `{"type":"response",`, expected: ErrMalformedEvent},
		{name: "missing type", line: `{"content":"hi"}`, expected: ErrMalformedEvent},
		{name: "response without content", line: `{"type":"response"}`, expected: ErrMalformedEvent},
		{name: "session without id", line: `{"type":"session_info"}`, expected: ErrMalformedEvent},
		{name: "unknown type", line: `{"type":"typing"}`, expected: ErrUnknownEvent},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := DecodeEvent([]byte(testCase.line)); !errors.Is(err, testCase.expected) {
				t.Fatalf("expected %v, got %v", testCase.expected, err)
			}
		})
	}
}
