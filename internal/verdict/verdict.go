// Package verdict extracts a PASS/FAIL/Unknown verdict from a Model
// Agent's final response text, per §4.6 point 4 and §9's "typed
// scanner over an ordered list of rules" guidance.
package verdict

import "strings"

// Verdict is the outcome a scan of agent response text resolves to.
type Verdict string

const (
	Pass    Verdict = "PASS"
	Fail    Verdict = "FAIL"
	Unknown Verdict = "UNKNOWN"
)

// Valid reports whether v is one of the defined Verdict values.
func Valid(v Verdict) bool {
	switch v {
	case Pass, Fail, Unknown:
		return true
	default:
		return false
	}
}

// lookaheadWindow bounds how far past a marker the scanner looks for a
// pass/fail token, per §4.6 point 4 ("within the next 100 characters").
const lookaheadWindow = 100

// markers is the closed, ordered list of verdict-marker phrases §9's
// Open Question resolution fixes: priority order in this list governs,
// not text position — the highest-priority marker present anywhere in
// the text wins even if a lower-priority marker occurs earlier.
var markers = []string{
	"test status:",
	"test outcome:",
	"final status:",
	"overall status:",
	"test results:",
	"test verdict:",
}

var passTokens = []string{"pass", "passed", "success", "successful", "ok"}
var failTokens = []string{"fail", "failed", "failure", "error", "broken"}

// affirmativePhrases and negativePhrases back the fallback heuristic
// used when no marker is present anywhere in the text (§4.6 point 4's
// "fallback affirmative/negative phrase heuristic").
var affirmativePhrases = []string{
	"everything worked", "all steps completed", "completed successfully",
	"working as expected", "no issues found", "test passed",
}
var negativePhrases = []string{
	"could not complete", "failed to", "did not work", "unable to",
	"error occurred", "test failed", "broken",
}

// Extract scans text for the closed set of verdict markers and returns
// the verdict for the highest-priority marker present, in markers'
// declared order, regardless of where in the text it occurs; if no
// marker appears, it falls back to an affirmative/negative phrase
// heuristic, and finally to Unknown.
func Extract(text string) Verdict {
	lower := strings.ToLower(text)

	for _, marker := range markers {
		idx := strings.Index(lower, marker)
		if idx == -1 {
			continue
		}
		window := windowAfter(lower, idx+len(marker), lookaheadWindow)
		if v, ok := scanTokens(window); ok {
			return v
		}
	}

	return fallbackHeuristic(lower)
}

func windowAfter(s string, start, length int) string {
	if start >= len(s) {
		return ""
	}
	end := start + length
	if end > len(s) {
		end = len(s)
	}
	return s[start:end]
}

func scanTokens(window string) (Verdict, bool) {
	failIdx := firstIndexOfAny(window, failTokens)
	passIdx := firstIndexOfAny(window, passTokens)
	switch {
	case failIdx == -1 && passIdx == -1:
		return Unknown, false
	case failIdx == -1:
		return Pass, true
	case passIdx == -1:
		return Fail, true
	case failIdx < passIdx:
		return Fail, true
	default:
		return Pass, true
	}
}

func firstIndexOfAny(s string, tokens []string) int {
	best := -1
	for _, tok := range tokens {
		if idx := strings.Index(s, tok); idx != -1 && (best == -1 || idx < best) {
			best = idx
		}
	}
	return best
}

func fallbackHeuristic(lower string) Verdict {
	negIdx := firstIndexOfAny(lower, negativePhrases)
	affIdx := firstIndexOfAny(lower, affirmativePhrases)
	switch {
	case negIdx == -1 && affIdx == -1:
		return Unknown
	case negIdx == -1:
		return Pass
	case affIdx == -1:
		return Fail
	case negIdx < affIdx:
		return Fail
	default:
		return Pass
	}
}
