package processor

import (
	"regexp"
	"strconv"
	"strings"
)

// SentinelName replaces empty timer names so no node ever serializes
// with an empty name.
const SentinelName = "Unknown"

type cleanupRule struct {
	pattern     *regexp.Regexp
	replacement string
}

type categoryRule struct {
	category string
	patterns []*regexp.Regexp
}

// DefaultNameProcessor strips instrumentation prefixes from timer
// names and classifies them with a priority-ordered rule table: the
// first matching rule wins, unmatched names fall into CategoryOther.
type DefaultNameProcessor struct {
	cleanup    []cleanupRule
	categories []categoryRule
	numbers    *regexp.Regexp
}

const CategoryOther = "Other"

var _ NameProcessor = (*DefaultNameProcessor)(nil)

func NewDefaultNameProcessor() *DefaultNameProcessor {
	return &DefaultNameProcessor{
		cleanup: []cleanupRule{
			{regexp.MustCompile(`^STAT_`), ""},
			{regexp.MustCompile(`_+`), "_"},
			{regexp.MustCompile(`^_|_$`), ""},
		},
		categories: []categoryRule{
			{"Engine", compileAll(`Engine`, `Loop`)},
			{"Rendering", compileAll(`Render`, `Draw`, `GPU`)},
			{"Physics", compileAll(`Physics`, `Collision`)},
			{"Audio", compileAll(`Audio`, `Sound`)},
			{"Animation", compileAll(`Anim`, `Bone`)},
			{"AI", compileAll(`AI`, `Behavior`)},
			{"Network", compileAll(`Net`, `Network`)},
			{"Memory", compileAll(`Malloc`, `Memory`, `GC`)},
			{"IO", compileAll(`File`, `Load`, `Save`)},
		},
		numbers: regexp.MustCompile(`\d+`),
	}
}

func compileAll(substrings ...string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(substrings))
	for _, s := range substrings {
		patterns = append(patterns, regexp.MustCompile(`(?i)`+s))
	}
	return patterns
}

func (p *DefaultNameProcessor) ProcessName(timerName string, timerID int64, depth int) string {
	name := timerName
	for _, rule := range p.cleanup {
		name = rule.pattern.ReplaceAllString(name, rule.replacement)
	}
	if strings.TrimSpace(name) == "" {
		return SentinelName
	}
	return name
}

func (p *DefaultNameProcessor) ExtractMetadata(timerName string, timerID int64) map[string]any {
	metadata := map[string]any{
		"category": p.categorize(timerName),
		"is_stat":  strings.HasPrefix(timerName, "STAT_"),
	}

	if matches := p.numbers.FindAllString(timerName, -1); len(matches) > 0 {
		numbers := make([]int64, 0, len(matches))
		for _, m := range matches {
			if n, err := strconv.ParseInt(m, 10, 64); err == nil {
				numbers = append(numbers, n)
			}
		}
		if len(numbers) > 0 {
			metadata["numbers"] = numbers
		}
	}

	return metadata
}

func (p *DefaultNameProcessor) categorize(timerName string) string {
	for _, rule := range p.categories {
		for _, pattern := range rule.patterns {
			if pattern.MatchString(timerName) {
				return rule.category
			}
		}
	}
	return CategoryOther
}
