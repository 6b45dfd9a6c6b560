package utils

import (
	"regexp"
	"strings"
)

var (
	jsonObjectRe   = regexp.MustCompile(`\{[\s\S]*?\}`)
	jsonArrayRe    = regexp.MustCompile(`\[[\s\S]*?\]`)
	sentenceEndRe  = regexp.MustCompile(`([。！？])([^"'\n])`)
	blankLinesRe   = regexp.MustCompile(`\n{3,}`)
	markdownTokens = []string{"---", "***", "**", "###", "##", "#"}
)

// FormatFeedback turns raw model commentary into display text: embedded JSON
// and markdown markers are removed and each Chinese sentence ends its line.
func FormatFeedback(text string) string {
	if text == "" {
		return ""
	}

	text = jsonObjectRe.ReplaceAllString(text, "")
	text = jsonArrayRe.ReplaceAllString(text, "")

	// longest markers first so "###" is not half-eaten by "#"
	for _, tok := range markdownTokens {
		text = strings.ReplaceAll(text, tok, "")
	}

	text = sentenceEndRe.ReplaceAllString(text, "$1\n$2")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// FormatFeedbackAll applies FormatFeedback to every element.
func FormatFeedbackAll(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = FormatFeedback(t)
	}
	return out
}
