// Package htmlsanitize strips dangerous markup from user-supplied rich
// text before it is stored. Event descriptions and partner contribution
// notes may carry simple formatting; everything else is reduced to
// plain text.
package htmlsanitize

import "github.com/microcosm-cc/bluemonday"

var (
	ugc    = bluemonday.UGCPolicy()
	strict = bluemonday.StrictPolicy()
)

// Sanitize keeps user-generated-content markup (paragraphs, emphasis,
// links, tables) and removes scripts, event handlers, and unsafe URLs.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return ugc.Sanitize(s)
}

// Text strips all markup, leaving plain text. Used for titles, names,
// bios, and feedback comments.
func Text(s string) string {
	if s == "" {
		return ""
	}
	return strict.Sanitize(s)
}
