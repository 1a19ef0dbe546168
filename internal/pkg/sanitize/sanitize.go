// Package sanitize strips script-executing markup from user content.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugc   = bluemonday.UGCPolicy()
	plain = bluemonday.StrictPolicy()
)

// HTML keeps user-generated formatting (links, emphasis, lists) and removes
// scripts, event handlers and other executable markup.
func HTML(input string) string {
	return strings.TrimSpace(ugc.Sanitize(input))
}

// Text removes all markup and returns trimmed plain text.
func Text(input string) string {
	return strings.TrimSpace(html.UnescapeString(plain.Sanitize(input)))
}

// IsBlank reports whether input carries no visible text once markup is removed.
func IsBlank(input string) bool {
	return Text(input) == ""
}
