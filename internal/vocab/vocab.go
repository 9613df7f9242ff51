// Package vocab implements phrase-hint correction for recognition results.
//
// Callers supply a list of hint phrases at session creation (proper nouns,
// product names, jargon the recognition backend is likely to mangle). After
// each segment is transcribed, the [Corrector] scans the text for words or
// word runs that are phonetically close to a hint and rewrites them to the
// hint's canonical spelling.
//
// Matching is two-stage. Double Metaphone codes filter candidates: a hint is
// only considered when at least one of its codes overlaps with the scanned
// window. Jaro-Winkler similarity on the original strings then ranks the
// candidates, with a lower acceptance threshold for phonetic candidates and a
// stricter one for the pure-similarity fallback. Multi-word hints are matched
// against n-gram windows, longest window first, so "tower of whispers" beats
// a partial single-word match.
package vocab

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for [NewCorrector].
type Option func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched hint to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(c *Corrector) { c.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic candidate exists and the corrector falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Corrector) { c.fuzzyThreshold = threshold }
}

// Correction records a single rewrite applied to a transcription.
type Correction struct {
	// Original is the word run as the recognizer produced it.
	Original string

	// Corrected is the hint phrase it was rewritten to.
	Corrected string

	// Confidence is the Jaro-Winkler similarity that accepted the match.
	Confidence float64
}

// hint is a phrase with its Double Metaphone codes precomputed at
// construction so per-segment scans only encode the transcribed text.
type hint struct {
	phrase string
	tokens []string
	codes  map[string]struct{}
}

// Corrector rewrites near-miss words in recognition output to canonical hint
// phrases. It is read-only after construction and safe for concurrent use.
type Corrector struct {
	hints    []hint
	maxWords int

	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewCorrector builds a Corrector for the given hint phrases. Blank phrases
// are ignored; a nil or empty list yields a corrector whose Correct is a
// no-op.
func NewCorrector(phrases []string, opts ...Option) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}

	for _, p := range phrases {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		tokens := strings.Fields(strings.ToLower(trimmed))
		c.hints = append(c.hints, hint{
			phrase: trimmed,
			tokens: tokens,
			codes:  codesForTokens(tokens),
		})
		if len(tokens) > c.maxWords {
			c.maxWords = len(tokens)
		}
	}
	return c
}

// Correct scans text for word runs phonetically close to a hint and rewrites
// them. It returns the corrected text and the corrections applied, in text
// order. Trailing punctuation on a matched run is preserved.
func (c *Corrector) Correct(text string) (string, []Correction) {
	if c == nil || len(c.hints) == 0 {
		return text, nil
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	var (
		output      []string
		corrections []Correction
	)

	i := 0
	for i < len(tokens) {
		maxN := c.maxWords
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		matched := false
		for n := maxN; n >= 1; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			bare, punct := splitTrailingPunct(window)
			phrase, conf, ok := c.match(bare)
			if !ok {
				continue
			}
			if !strings.EqualFold(bare, phrase) {
				corrections = append(corrections, Correction{
					Original:   bare,
					Corrected:  phrase,
					Confidence: conf,
				})
			}
			output = append(output, phrase+punct)
			i += n
			matched = true
			break
		}
		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}

	return strings.Join(output, " "), corrections
}

// match tests a single window against every hint and returns the best
// accepted phrase. When matched is false, the window should be kept as is.
func (c *Corrector) match(window string) (phrase string, confidence float64, matched bool) {
	windowLower := strings.ToLower(strings.TrimSpace(window))
	if windowLower == "" {
		return "", 0, false
	}
	windowTokens := strings.Fields(windowLower)
	windowCodes := codesForTokens(windowTokens)

	var (
		best         *hint
		bestScore    float64
		bestPhonetic bool
	)

	for idx := range c.hints {
		h := &c.hints[idx]
		phonetic := codesOverlap(windowCodes, h.codes)
		score := bestSimilarity(windowTokens, h.tokens, windowLower, strings.ToLower(h.phrase))

		if phonetic {
			if score >= c.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				best, bestScore, bestPhonetic = h, score, true
			}
		} else if !bestPhonetic {
			if score >= c.fuzzyThreshold && score > bestScore {
				best, bestScore = h, score
			}
		}
	}

	if best == nil {
		return "", 0, false
	}
	return best.phrase, bestScore, true
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap reports whether the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestSimilarity computes the highest Jaro-Winkler similarity between the
// window and the hint using three strategies: full strings, space-stripped
// strings, and the best pairwise token score. The multi-strategy comparison
// handles cases where one spoken word was split into several recognized
// tokens or vice versa.
func bestSimilarity(windowTokens, hintTokens []string, windowFull, hintFull string) float64 {
	score := matchr.JaroWinkler(windowFull, hintFull, false)

	if len(windowTokens) > 1 || len(hintTokens) > 1 {
		concat1 := strings.Join(windowTokens, "")
		concat2 := strings.Join(hintTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	for _, wt := range windowTokens {
		for _, ht := range hintTokens {
			if s := matchr.JaroWinkler(wt, ht, false); s > score {
				score = s
			}
		}
	}

	return score
}

// splitTrailingPunct splits trailing sentence punctuation off a window so a
// match against "eldrinax." compares the bare word and keeps the period.
func splitTrailingPunct(s string) (bare, punct string) {
	end := len(s)
	for end > 0 {
		switch s[end-1] {
		case '.', ',', '!', '?', ';', ':':
			end--
		default:
			return s[:end], s[end:]
		}
	}
	return s[:end], s[end:]
}
