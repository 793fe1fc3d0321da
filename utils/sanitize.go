package utils

import "github.com/microcosm-cc/bluemonday"

var sanitizer = bluemonday.UGCPolicy()

// Sanitize strips scripts and unsafe attributes from operator supplied HTML.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
