// Package normalize provides canonicalization helpers for user-supplied
// fields. Stores call these before writing so that lookups and unique
// indexes see one spelling per value.
package normalize

import "strings"

// Email lowercases and trims an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display name, preserving case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Status lowercases and trims a status value.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Category trims an event category. Categories are canonical
// title-case values; case is preserved so they validate against the
// known set.
func Category(s string) string {
	return strings.TrimSpace(s)
}

// PartnershipType lowercases and trims a partnership type name.
func PartnershipType(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Tag lowercases and trims a single tag.
func Tag(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Tags normalizes a tag list, dropping empties and duplicates while
// preserving first-seen order.
func Tags(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = Tag(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// QueryParam trims a free-text query parameter, preserving case.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}
