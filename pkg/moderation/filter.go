// Package moderation applies lightweight input guardrails before a
// task reaches the planner.
package moderation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/cortexr/agent/internal/config"
)

// ErrBlocked rejects input touching a disallowed subject
var ErrBlocked = errors.New("cannot assist with that topic")

// ErrEmpty rejects input with no usable content after sanitization
var ErrEmpty = errors.New("input is empty after sanitization")

var slangReplacements = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)\bu\b`), "you"},
	{regexp.MustCompile(`(?i)\bur\b`), "your"},
	{regexp.MustCompile(`(?i)\bwanna\b`), "want to"},
	{regexp.MustCompile(`(?i)\bgonna\b`), "going to"},
	{regexp.MustCompile(`(?i)\bgotta\b`), "have to"},
	{regexp.MustCompile(`(?i)\bpls\b`), "please"},
	{regexp.MustCompile(`(?i)\bplz\b`), "please"},
	{regexp.MustCompile(`(?i)\btho\b`), "though"},
	{regexp.MustCompile(`(?i)\bimo\b`), "in my opinion"},
	{regexp.MustCompile(`(?i)\bidk\b`), "I do not know"},
	{regexp.MustCompile(`(?i)\bwtf\b`), "what"},
}

var offensiveWords = []string{"damn", "shit", "fuck", "bitch", "bastard"}

var defaultBlockedSubjects = []string{
	"violence",
	"kill",
	"terrorism",
	"extremism",
	"weapon",
	"firearm",
	"gun",
	"bomb",
	"harm someone",
	"self harm",
	"drug manufacturing",
}

const (
	highRiskVerbs   = `(?:make|build|assemble|manufacture|fabricate|construct|3d[- ]?print|cook(?: up)?|design)`
	highRiskObjects = `(?:gun|firearm|weapon|bomb|grenade|explosive|pipe bomb|chemical weapon|improvised explosive|ied|poison|molotov|silencer)`
)

var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b` + highRiskVerbs + `\b[^\n]*\b` + highRiskObjects + `\b`),
	regexp.MustCompile(`(?i)\b` + highRiskObjects + `\b[^\n]*\b` + highRiskVerbs + `\b`),
	regexp.MustCompile(`(?i)\bhow to\b[^\n]*\b(gun|firearm|bomb|explosive|weapon)\b`),
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// ContentFilter sanitizes task input and rejects disallowed subjects
type ContentFilter struct {
	enabled  bool
	subjects []string
	masks    []*regexp.Regexp
}

// New creates a content filter. Configured subjects extend the
// built-in blocklist.
func New(cfg config.ModerationConfig) *ContentFilter {
	subjects := append([]string{}, defaultBlockedSubjects...)
	subjects = append(subjects, cfg.BlockedSubjects...)

	masks := make([]*regexp.Regexp, 0, len(offensiveWords))
	for _, word := range offensiveWords {
		masks = append(masks, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(word)+`\b`))
	}

	return &ContentFilter{
		enabled:  cfg.Enabled,
		subjects: subjects,
		masks:    masks,
	}
}

// Sanitize normalizes slang, masks profanity and rejects blocked
// subjects. A disabled filter returns the input trimmed.
func (f *ContentFilter) Sanitize(raw string) (string, error) {
	if !f.enabled {
		return strings.TrimSpace(raw), nil
	}

	normalized := strings.ToLower(raw)
	for _, subject := range f.subjects {
		if strings.Contains(normalized, strings.ToLower(subject)) {
			return "", ErrBlocked
		}
	}
	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(raw) {
			return "", ErrBlocked
		}
	}

	sanitized := raw
	for _, s := range slangReplacements {
		sanitized = s.pattern.ReplaceAllString(sanitized, s.replacement)
	}
	for _, mask := range f.masks {
		sanitized = mask.ReplaceAllStringFunc(sanitized, maskWord)
	}

	sanitized = strings.TrimSpace(whitespaceRE.ReplaceAllString(sanitized, " "))
	if sanitized == "" {
		return "", ErrEmpty
	}
	return sanitized, nil
}

// maskWord keeps the first and last letter of a masked word
func maskWord(word string) string {
	if len(word) <= 2 {
		return strings.Repeat("*", len(word))
	}
	return word[:1] + strings.Repeat("*", len(word)-2) + word[len(word)-1:]
}
