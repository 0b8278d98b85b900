package parser

import (
	"regexp"
	"strings"
)

// The model is instructed to drop timezone qualifiers, but prompt-only
// enforcement leaks. Todoist has no timezone concept in due_string, so a
// deterministic scrub runs after every extraction. This is a pure function
// with no transient-failure mode and is never retried.
// RE2's \b is ASCII-only, so the Cyrillic patterns anchor on whitespace
// instead; the whitespace re-collapse below cleans up what they consume.
var timezonePatterns = []*regexp.Regexp{
	// "по Минску", "по Москве", "по Ташкенту" and any other "по <city>".
	regexp.MustCompile(`(?i)(?:^|\s)по\s+\p{L}+`),
	// "Moscow time", "minsk time".
	regexp.MustCompile(`(?i)(?:^|\s)\p{L}+\s+time\b`),
	// Bare zone codes, optionally with an offset: MSK, UTC+3, GMT-5.
	regexp.MustCompile(`(?i)(?:^|\s)(?:msk|мск|utc|gmt)(?:[+-]\d{1,2})?(?:$|\s)`),
}

// StripTimezone removes trailing city/timezone qualifiers from a due
// phrase: "thursday at 12:00 по Минску" -> "thursday at 12:00".
func StripTimezone(due string) string {
	s := due
	for _, re := range timezonePatterns {
		s = re.ReplaceAllString(s, "")
	}
	return strings.Join(strings.Fields(s), " ")
}
