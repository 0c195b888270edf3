// Package mentions finds @username references in free text.
package mentions

import "regexp"

var pattern = regexp.MustCompile(`@(\w+)`)

// Extract returns the mentioned usernames in order of appearance, without the
// leading '@'. Repeats are kept.
func Extract(text string) []string {
	matches := pattern.FindAllStringSubmatch(text, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// Unique drops repeated names, keeping first appearances in order
func Unique(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Diff compares the mentions of two versions of a text. Names are compared
// case-sensitively as typed.
func Diff(oldText, newText string) (added, removed []string) {
	before := Unique(Extract(oldText))
	after := Unique(Extract(newText))
	return minus(after, before), minus(before, after)
}

func minus(a, b []string) []string {
	drop := make(map[string]struct{}, len(b))
	for _, n := range b {
		drop[n] = struct{}{}
	}
	out := []string{}
	for _, n := range a {
		if _, ok := drop[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}
