// Package sanitize strips markup from user-supplied free text before it is
// stored or broadcast to live clients.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text removes every HTML tag from s and trims surrounding whitespace.
// Entities are decoded afterwards so plain text like "Food & Drink"
// round-trips unchanged.
func Text(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}
