// Package slugify derives URL slugs for events.
package slugify

import (
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
)

// Make builds a slug from a title: case-folded, non-alphanumerics
// collapsed to single hyphens, with a unix-millisecond suffix for
// uniqueness. The slug is generated once at event creation and never
// changes, so links survive title edits.
func Make(title string, now time.Time) string {
	return base(title) + "-" + strconv.FormatInt(now.UnixMilli(), 10)
}

// base returns the folded, hyphenated form of the title without the
// uniqueness suffix.
func base(title string) string {
	folded := text.Fold(strings.TrimSpace(title))

	var b strings.Builder
	b.Grow(len(folded))
	lastHyphen := true // suppress a leading hyphen
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		s = "event"
	}
	return s
}
