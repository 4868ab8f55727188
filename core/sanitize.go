package orchestration

import (
	"regexp"
	"strings"
)

var (
	superscriptPattern   = regexp.MustCompile(`(?is)<sup>\s*(.*?)\s*</sup>`)
	subscriptPattern     = regexp.MustCompile(`(?is)<sub>\s*(.*?)\s*</sub>`)
	markdownImagePattern = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	markdownLinkPattern  = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	urlPattern           = regexp.MustCompile(`https?://\S+`)
	htmlTagPattern       = regexp.MustCompile(`<[^>]*>`)
	headingPattern       = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	listMarkerPattern    = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+`)
	codeFencePattern     = regexp.MustCompile("```[A-Za-z0-9]*")
	inlineCodePattern    = regexp.MustCompile("`([^`\n]*)`")
	strongPattern        = regexp.MustCompile(`(\*\*|__|~~)(\S(?:[^\n]*?\S)?)(?:\*\*|__|~~)`)
	asteriskPattern      = regexp.MustCompile(`(^|[^\w*])\*(\S(?:[^*\n]*\S)?)\*($|[^\w*])`)
	underscorePattern    = regexp.MustCompile(`(^|[^\w_])_(\S(?:[^_\n]*\S)?)_($|[^\w_])`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
)

// SanitizeForSpeech turns chat markup into text that reads well aloud.
// Superscripts and subscripts are spoken, images and URLs are dropped and
// the remaining markup is stripped. Single emphasis markers count only
// outside words, so 2*3 and snake_case are read as written.
func SanitizeForSpeech(text string) string {
	text = superscriptPattern.ReplaceAllString(text, " raised to the power of $1 ")
	text = subscriptPattern.ReplaceAllString(text, " base $1 ")
	text = markdownImagePattern.ReplaceAllString(text, " ")
	text = markdownLinkPattern.ReplaceAllString(text, "$1")
	text = urlPattern.ReplaceAllString(text, " ")
	text = htmlTagPattern.ReplaceAllString(text, " ")
	text = headingPattern.ReplaceAllString(text, "")
	text = listMarkerPattern.ReplaceAllString(text, "")
	text = codeFencePattern.ReplaceAllString(text, " ")
	text = inlineCodePattern.ReplaceAllString(text, "$1")
	text = strongPattern.ReplaceAllString(text, "$2")
	text = asteriskPattern.ReplaceAllString(text, "$1$2$3")
	text = underscorePattern.ReplaceAllString(text, "$1$2$3")
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	return strings.NewReplacer(" .", ".", " ,", ",", " ?", "?", " !", "!").Replace(text)
}
