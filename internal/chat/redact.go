package chat

import (
	"regexp"
	"unicode/utf8"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`(?:\+?[0-9]{1,3}[-.\s]?)?\(?[0-9]{2,3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{3,4}`)
)

const previewLength = 80

// Redact replaces emails with [EMAIL] and phone numbers with [PHONE].
func Redact(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	return phoneRe.ReplaceAllString(text, "[PHONE]")
}

// preview is the redacted, truncated form of a message that may be logged.
func preview(text string) string {
	text = Redact(text)
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	r := []rune(text)
	return string(r[:previewLength]) + "..."
}
