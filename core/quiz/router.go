package quiz

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultSimilarityThreshold is the minimum similarity an option needs to be
// selected by fuzzy matching.
const DefaultSimilarityThreshold = 0.6

// Router interprets transcripts as quiz commands. The zero value uses
// DefaultSimilarityThreshold.
type Router struct {
	SimilarityThreshold float64
}

func NewRouter(similarityThreshold float64) Router {
	return Router{SimilarityThreshold: similarityThreshold}
}

func (r Router) threshold() float64 {
	if r.SimilarityThreshold <= 0 {
		return DefaultSimilarityThreshold
	}
	return r.SimilarityThreshold
}

// Interpret resolves a transcript against the currently displayed question.
// Navigation and control words win over answers.
func (r Router) Interpret(transcript string, question Question) Command {
	normalized := normalize(transcript)
	if normalized == "" {
		return Unrecognized()
	}

	if command, ok := matchControlWords(normalized); ok {
		return command
	}

	switch question.Type {
	case MultipleChoice:
		if letter, ok := r.matchOption(normalized, question.Choices()); ok {
			return SelectAnswer(letter)
		}
	case TrueFalse:
		if answer, ok := matchTrueFalse(normalized); ok {
			return SelectAnswer(answer)
		}
	case ShortAnswer:
		return SelectAnswer(strings.TrimSpace(transcript))
	}

	return Unrecognized()
}

// Hint describes what the user can say for the question.
func (r Router) Hint(question Question) string {
	const controls = "You can also say next, previous, repeat or submit."
	switch question.Type {
	case MultipleChoice:
		letters := make([]string, 0, len(question.Options))
		for _, choice := range question.Choices() {
			letters = append(letters, choice.Letter)
		}
		return fmt.Sprintf("Say an option letter like option %s, or say the answer itself. %s",
			strings.Join(letters, ", "), controls)
	case TrueFalse:
		return "Say true or false. " + controls
	default:
		return "Say your answer out loud. " + controls
	}
}

func matchControlWords(normalized string) (Command, bool) {
	words := wordSet(normalized)
	switch {
	case words["next"]:
		return Navigate(Forward), true
	case words["previous"] || words["back"]:
		return Navigate(Backward), true
	case words["submit"] || words["finish"] || words["done"]:
		return Submit(), true
	case words["repeat"] || words["read"]:
		return Repeat(), true
	}
	return Command{}, false
}

var (
	letterMention = regexp.MustCompile(`\b(?:option|answer|letter|choice)(?: is)? ([a-z])\b`)
	ordinals      = map[string]int{
		"first": 0, "1st": 0,
		"second": 1, "2nd": 1,
		"third": 2, "3rd": 2,
		"fourth": 3, "4th": 3,
	}
)

// ambiguousLetters are ordinary words when spoken inside a sentence.
var ambiguousLetters = map[string]bool{"a": true, "i": true}

func (r Router) matchOption(normalized string, choices []Option) (string, bool) {
	if len(choices) == 0 {
		return "", false
	}

	letters := make(map[string]string, len(choices))
	for _, choice := range choices {
		letters[strings.ToLower(choice.Letter)] = choice.Letter
	}
	if match := letterMention.FindStringSubmatch(normalized); match != nil {
		if letter, ok := letters[match[1]]; ok {
			return letter, true
		}
	}
	if letter, ok := letters[normalized]; ok {
		return letter, true
	}
	for _, word := range strings.Fields(normalized) {
		if ambiguousLetters[word] {
			continue
		}
		if letter, ok := letters[word]; ok {
			return letter, true
		}
	}

	for _, word := range strings.Fields(normalized) {
		if index, ok := ordinals[word]; ok && index < len(choices) {
			return choices[index].Letter, true
		}
	}

	padded := " " + normalized + " "
	bestScore, bestLetter := 0.0, ""
	for _, choice := range choices {
		text := normalize(choice.Text)
		if text == "" {
			continue
		}
		if utf8.RuneCountInString(text) > 2 && strings.Contains(padded, " "+text+" ") {
			return choice.Letter, true
		}

		score := similarity(normalized, text)
		if utf8.RuneCountInString(text) > 2 && strings.Contains(text, normalized) {
			score += 0.8
		}
		if score > bestScore {
			bestScore, bestLetter = score, choice.Letter
		}
	}

	if bestLetter != "" && bestScore > r.threshold() {
		return bestLetter, true
	}
	return "", false
}

func matchTrueFalse(normalized string) (string, bool) {
	for _, word := range strings.Fields(normalized) {
		switch word {
		case "true", "yes":
			return "True", true
		case "false", "no":
			return "False", true
		}
	}
	return "", false
}

// similarity is the Levenshtein distance normalized to [0, 1], 1 meaning
// identical strings.
func similarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func normalize(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-', r == '/':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func wordSet(normalized string) map[string]bool {
	words := map[string]bool{}
	for _, word := range strings.Fields(normalized) {
		words[word] = true
	}
	return words
}
