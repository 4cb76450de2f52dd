package game

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Verdict classifies a guess submission.
type Verdict string

const (
	// VerdictRepeat means the guess was already recorded as wrong this
	// round; it consumes nothing.
	VerdictRepeat    Verdict = "repeat"
	VerdictCorrect   Verdict = "correct"
	VerdictIncorrect Verdict = "incorrect"
)

// Outcome is the evaluator's judgment of a single guess.
type Outcome struct {
	Verdict       Verdict `json:"verdict"`
	ScoreDelta    int     `json:"scoreDelta"`
	AttemptsLeft  int     `json:"attemptsLeft"`
	RoundEnds     bool    `json:"roundEnds"`
	HintTriggered bool    `json:"hintTriggered"`
	Hint          string  `json:"hint,omitempty"`
}

// hintThreshold: names longer than this get a length hint, shorter names
// give away their first letter instead.
const hintThreshold = 6

// Evaluate judges a guess against the round's answer. Matching is
// case-insensitive and ignores surrounding whitespace. Score rewards both
// speed and guess economy: ceil((timeLeft + attemptsLeft*5)/2), plus
// cfg.QuickBonus when the guess lands within the first cfg.QuickWindow
// seconds of the round. wrong is the set of normalized guesses already
// judged incorrect this round; resubmitting one of them is a no-op.
func Evaluate(round Round, guess string, attemptsLeft, timeLeft int, cfg Config, wrong map[string]struct{}) Outcome {
	normalized := NormalizeGuess(guess)

	if _, dup := wrong[normalized]; dup {
		return Outcome{Verdict: VerdictRepeat, AttemptsLeft: attemptsLeft}
	}

	if normalized == NormalizeGuess(round.Answer.Name) {
		delta := (timeLeft + attemptsLeft*5 + 1) / 2
		if timeLeft > cfg.RoundSeconds-cfg.QuickWindow {
			delta += cfg.QuickBonus
		}
		return Outcome{
			Verdict:      VerdictCorrect,
			ScoreDelta:   delta,
			AttemptsLeft: attemptsLeft,
			RoundEnds:    true,
		}
	}

	remaining := attemptsLeft - 1
	out := Outcome{
		Verdict:      VerdictIncorrect,
		AttemptsLeft: remaining,
		RoundEnds:    remaining == 0,
	}
	if remaining == 1 {
		out.HintTriggered = true
		out.Hint = buildHint(round.Answer.Name)
	}
	return out
}

// NormalizeGuess lowercases and trims a guess; two guesses are the same
// answer iff their normalized forms match.
func NormalizeGuess(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// buildHint describes the answer without naming it: its length for long
// names, its first letter for short ones.
func buildHint(name string) string {
	if utf8.RuneCountInString(name) > hintThreshold {
		return fmt.Sprintf("The name is %d letters long", utf8.RuneCountInString(name))
	}
	first, _ := utf8.DecodeRuneInString(name)
	return fmt.Sprintf("The name starts with %q", strings.ToUpper(string(first)))
}
