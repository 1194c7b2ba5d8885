// Package textfmt holds the text helpers shared by the feed and its renderers: mention extraction
// and timestamp formatting.
package textfmt

import "regexp"

var mentionRegex = regexp.MustCompile(`@(\w+)`)

// ExtractMentions returns the unique usernames mentioned in text, in first-seen order.
func ExtractMentions(text string) []string {
	mentions := []string{}
	seen := make(map[string]struct{})
	for _, m := range mentionRegex.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		mentions = append(mentions, name)
	}
	return mentions
}

// Segment is one piece of post content. Mention segments keep their leading "@".
type Segment struct {
	Text    string
	Mention bool
}

// SplitMentions cuts text into plain and mention segments so renderers can highlight mentions.
// Concatenating the segment texts yields the input.
func SplitMentions(text string) []Segment {
	var segments []Segment
	last := 0
	for _, loc := range mentionRegex.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			segments = append(segments, Segment{Text: text[last:loc[0]]})
		}
		segments = append(segments, Segment{Text: text[loc[0]:loc[1]], Mention: true})
		last = loc[1]
	}
	if last < len(text) {
		segments = append(segments, Segment{Text: text[last:]})
	}
	return segments
}
