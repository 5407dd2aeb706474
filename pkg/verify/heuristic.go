package verify

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var errNoSource = errors.New("evidence source not configured")

func errRecovered(v interface{}) error {
	return fmt.Errorf("evidence source panicked: %v", v)
}

// overlapThreshold is the fraction of expectation keywords that must
// appear in the report for the heuristic to pass.
const overlapThreshold = 0.4

var (
	failureLanguage = regexp.MustCompile(
		`(?i)\b(fail(ed|ure)?|unable|error|cannot|can't|couldn'?t|not found|no such|missing|broke|denied)\b`)
	visualConfirmation = regexp.MustCompile(
		`(?i)\b(i (can )?see|visible|visibly|displayed|appears?|shown|shows|confirmed? (visually|on screen)|screenshot shows)\b`)
)

var stopwords = map[string]bool{
	"the": true, "and": true, "that": true, "this": true, "with": true,
	"for": true, "was": true, "are": true, "has": true, "have": true,
	"should": true, "will": true, "then": true, "page": true,
}

func keywords(text string) []string {
	var words []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, `.,;:!?"'()[]`)
		if len(word) > 2 && !stopwords[word] {
			words = append(words, word)
		}
	}
	return words
}

// heuristicJudgment is the deterministic last-resort verdict: keyword
// overlap between the expectation and the report, with explicit failure
// language forcing a fail unless it is accompanied by visual confirmation
// (drivers often complain about a technical check they could not run while
// visually confirming the outcome).
func heuristicJudgment(expected, report string) Judgment {
	judgment := Judgment{Actual: report}

	hasFailure := failureLanguage.MatchString(report)
	hasVisual := visualConfirmation.MatchString(report)
	if hasFailure && !hasVisual {
		judgment.Evidence = "heuristic: report contains failure language"
		return judgment
	}

	expectedWords := keywords(expected)
	if len(expectedWords) == 0 {
		judgment.Evidence = "heuristic: expectation has no comparable keywords"
		return judgment
	}

	reportWords := make(map[string]bool)
	for _, word := range keywords(report) {
		reportWords[word] = true
	}
	matched := 0
	for _, word := range expectedWords {
		if reportWords[word] {
			matched++
		}
	}

	overlap := float64(matched) / float64(len(expectedWords))
	judgment.Passed = overlap > overlapThreshold
	judgment.Evidence = fmt.Sprintf("heuristic: %d/%d expectation keywords present in report",
		matched, len(expectedWords))
	return judgment
}
