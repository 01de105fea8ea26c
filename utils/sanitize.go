package utils

import "github.com/microcosm-cc/bluemonday"

var (
	sanitizer     = bluemonday.UGCPolicy()
	textSanitizer = bluemonday.StrictPolicy()
)

// Sanitize cleans HTML content to prevent XSS attacks.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}

// SanitizeText strips every tag, leaving plain text. Used for display names.
func SanitizeText(input string) string {
	return textSanitizer.Sanitize(input)
}
