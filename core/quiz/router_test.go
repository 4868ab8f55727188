package quiz

import (
	"strings"
	"testing"
)

func capitalsQuestion() Question {
	return Question{
		Type:          MultipleChoice,
		Prompt:        "What is the capital of France?",
		Options:       []string{"A) Paris", "B) London", "C) Berlin", "D) Madrid"},
		CorrectAnswer: "A",
	}
}

func TestInterpretMultipleChoice(t *testing.T) {
	router := Router{}
	question := capitalsQuestion()

	testCases := []struct {
		name       string
		transcript string
		expected   Command
	}{
		{name: "option text mentioned", transcript: "I think it's paris", expected: SelectAnswer("A")},
		{name: "option letter", transcript: "option b", expected: SelectAnswer("B")},
		{name: "answer is letter", transcript: "The answer is C.", expected: SelectAnswer("C")},
		{name: "bare letter", transcript: "D", expected: SelectAnswer("D")},
		{name: "letter inside sentence", transcript: "I think b", expected: SelectAnswer("B")},
		{name: "letter before filler", transcript: "b please", expected: SelectAnswer("B")},
		{name: "letter after contraction", transcript: "it's c", expected: SelectAnswer("C")},
		{name: "bare article letter", transcript: "a", expected: SelectAnswer("A")},
		{name: "article is not a letter", transcript: "it's a city", expected: Unrecognized()},
		{name: "ordinal word", transcript: "the second one", expected: SelectAnswer("B")},
		{name: "ordinal number", transcript: "3rd", expected: SelectAnswer("C")},
		{name: "misheard option", transcript: "londn", expected: SelectAnswer("B")},
		{name: "partial option text", transcript: "madr", expected: SelectAnswer("D")},
		{name: "nonsense", transcript: "purple monkey dishwasher", expected: Unrecognized()},
		{name: "empty", transcript: "  ?! ", expected: Unrecognized()},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := router.Interpret(testCase.transcript, question); got != testCase.expected {
				t.Fatalf("expected %s, got %s", testCase.expected, got)
			}
		})
	}
}

func TestInterpretControlWordsWinOverAnswers(t *testing.T) {
	router := Router{}
	question := capitalsQuestion()

	testCases := []struct {
		transcript string
		expected   Command
	}{
		{transcript: "next please", expected: Navigate(Forward)},
		{transcript: "go back", expected: Navigate(Backward)},
		{transcript: "previous question", expected: Navigate(Backward)},
		{transcript: "I'm done", expected: Submit()},
		{transcript: "submit paris", expected: Submit()},
		{transcript: "finish", expected: Submit()},
		{transcript: "read it again", expected: Repeat()},
		{transcript: "repeat", expected: Repeat()},
	}

	for _, testCase := range testCases {
		if got := router.Interpret(testCase.transcript, question); got != testCase.expected {
			t.Fatalf("%q: expected %s, got %s", testCase.transcript, testCase.expected, got)
		}
	}
}

func TestInterpretControlWordsMatchWholeWordsOnly(t *testing.T) {
	question := Question{Type: ShortAnswer, Prompt: "Name a large cat."}

	got := Router{}.Interpret("readiness", question)
	if got != SelectAnswer("readiness") {
		t.Fatalf("expected short answer, got %s", got)
	}
}

func TestInterpretTrueFalse(t *testing.T) {
	router := Router{}
	question := Question{Type: TrueFalse, Prompt: "The earth is flat.", CorrectAnswer: "True"}

	testCases := []struct {
		transcript string
		expected   Command
	}{
		{transcript: "no I don't think so", expected: SelectAnswer("False")},
		{transcript: "yes", expected: SelectAnswer("True")},
		{transcript: "that is false", expected: SelectAnswer("False")},
		{transcript: "true, not false", expected: SelectAnswer("True")},
		{transcript: "maybe", expected: Unrecognized()},
	}

	for _, testCase := range testCases {
		if got := router.Interpret(testCase.transcript, question); got != testCase.expected {
			t.Fatalf("%q: expected %s, got %s", testCase.transcript, testCase.expected, got)
		}
	}
}

func TestInterpretShortAnswerKeepsRawTranscript(t *testing.T) {
	question := Question{Type: ShortAnswer, Prompt: "What do plants use to make food?"}

	got := Router{}.Interpret("  Photosynthesis, I believe ", question)
	if got != SelectAnswer("Photosynthesis, I believe") {
		t.Fatalf("expected trimmed transcript, got %s", got)
	}
}

func TestInterpretTieKeepsEarlierOption(t *testing.T) {
	question := Question{Type: MultipleChoice, Prompt: "Pick one", Options: []string{"cat", "cap"}}

	got := Router{}.Interpret("cax", question)
	if got != SelectAnswer("A") {
		t.Fatalf("expected earlier option on tie, got %s", got)
	}
}

func TestInterpretRespectsThreshold(t *testing.T) {
	question := capitalsQuestion()

	if got := NewRouter(0.9).Interpret("londn", question); got != Unrecognized() {
		t.Fatalf("expected strict threshold to reject fuzzy match, got %s", got)
	}
}

func TestChoicesUsePositionalLettersWithoutPrefix(t *testing.T) {
	question := Question{Type: MultipleChoice, Options: []string{"Oxygen", "b. Nitrogen", "Carbon"}}

	choices := question.Choices()
	expected := []Option{{Letter: "A", Text: "Oxygen"}, {Letter: "B", Text: "Nitrogen"}, {Letter: "C", Text: "Carbon"}}
	if len(choices) != len(expected) {
		t.Fatalf("expected %d choices, got %d", len(expected), len(choices))
	}
	for i := range expected {
		if choices[i] != expected[i] {
			t.Fatalf("choice %d: expected %+v, got %+v", i, expected[i], choices[i])
		}
	}
}

func TestHintNamesOptionLetters(t *testing.T) {
	hint := Router{}.Hint(capitalsQuestion())
	if want := "option A, B, C, D"; !strings.Contains(hint, want) {
		t.Fatalf("expected hint to contain %q, got %q", want, hint)
	}
}
