// Package recovery resolves stuck interactions: AI-driven clicks or tab
// switches the task driver reports as done while the page shows no effect.
//
// Detection and label extraction are heuristic by nature, so they live
// behind the StuckClassifier and LabelExtractor interfaces and can be
// swapped or tested independently of the cascade's control flow.
package recovery

import (
	"regexp"
	"strings"
)

// StuckClassifier decides whether a task completion message describes an
// interaction that silently failed.
type StuckClassifier interface {
	Stuck(message string) bool
}

// LabelExtractor pulls the target element's visible label out of a stuck
// message. ok is false when no label can be inferred, in which case no
// recovery is attempted.
type LabelExtractor interface {
	Label(message string) (label string, ok bool)
}

// stuckPatterns match completion messages that claim a click or tab switch
// happened while admitting the page did not react.
var stuckPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)clicked[^.]*but[^.]*(nothing|no change|no effect|not(hing)? happen|did ?n[o']t (change|open|respond|update))`),
	regexp.MustCompile(`(?i)(click|tap|press)[^.]*\b(had|produced|caused)\b[^.]*no (visible |observable )?(effect|change|result)`),
	regexp.MustCompile(`(?i)switch(ed)?[^.]*tab[^.]*but[^.]*(same|unchanged|did ?n[o']t (change|switch))`),
	regexp.MustCompile(`(?i)(selected|pressed)[^.]*but the (page|view|content) (remain|stayed|did ?n[o']t)`),
	regexp.MustCompile(`(?i)appears? (to be|to have been) clicked[^.]*but`),
}

// labelPatterns try, in order, to pull the element label out of a stuck
// message. The first submatch of the first matching pattern wins.
var labelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[""]([^""]+)[""]`),
	regexp.MustCompile(`'([^']+)'`),
	regexp.MustCompile(`(?i)click(?:ed|ing)?(?: on)?(?: the)? ([\w][\w .&/-]*?) (?:button|tab|link|element|option)`),
	regexp.MustCompile(`(?i)the ([\w][\w .&/-]*?) (?:button|tab|link) `),
}

// PatternClassifier is the regexp-based StuckClassifier and LabelExtractor
// used in production.
type PatternClassifier struct{}

// NewPatternClassifier creates the default pattern-based classifier.
func NewPatternClassifier() *PatternClassifier {
	return &PatternClassifier{}
}

// Stuck reports whether the message matches any stuck-interaction pattern.
func (c *PatternClassifier) Stuck(message string) bool {
	for _, pattern := range stuckPatterns {
		if pattern.MatchString(message) {
			return true
		}
	}
	return false
}

// Label extracts the target element's label from the message.
func (c *PatternClassifier) Label(message string) (string, bool) {
	for _, pattern := range labelPatterns {
		if match := pattern.FindStringSubmatch(message); match != nil {
			label := strings.TrimSpace(match[1])
			if label != "" {
				return label, true
			}
		}
	}
	return "", false
}
