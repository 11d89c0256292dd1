package recite

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
	"github.com/rbright/tasmi/internal/transcript"
)

// LookaheadSpan is the number of upcoming words eligible for one match.
const LookaheadSpan = 3

const (
	defaultFuzzyThreshold = 0.88
	// minFuzzyRunes keeps short particles out of fuzzy matching.
	minFuzzyRunes = 3
)

// MatchResult is the outcome of one matching step.
type MatchResult struct {
	Advanced     bool
	MatchedIndex int
	Skipped      []int
}

// NoMatch is the result for a phrase that matched nothing in the window.
func NoMatch() MatchResult {
	return MatchResult{MatchedIndex: -1}
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithSensitivity selects the comparison strictness. Default: medium.
func WithSensitivity(s Sensitivity) Option {
	return func(m *Matcher) {
		m.sensitivity = s
	}
}

// WithFuzzyThreshold sets the Jaro-Winkler score required by low sensitivity.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		if threshold > 0 && threshold <= 1 {
			m.fuzzyThreshold = threshold
		}
	}
}

// Matcher finds the closest word in the lookahead window that a phrase contains.
// A Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	sensitivity    Sensitivity
	fuzzyThreshold float64
}

// NewMatcher returns a Matcher configured with opts.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		sensitivity:    SensitivityMedium,
		fuzzyThreshold: defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Sensitivity returns the configured strictness.
func (m *Matcher) Sensitivity() Sensitivity {
	return m.sensitivity
}

// Match scans words[cursor : cursor+LookaheadSpan] closest first and reports the
// first word the phrase contains. phrase may be raw or already normalized.
// Match never mutates words.
func (m *Matcher) Match(phrase string, words []Word, cursor int) MatchResult {
	if cursor < 0 || cursor >= len(words) {
		return NoMatch()
	}

	p := newPhrase(phrase)
	if p.normalized == "" {
		return NoMatch()
	}

	if m.sensitivity == SensitivityLow {
		p.fresh = unconsumedTokens(p.tokens, words, cursor)
	}

	window := min(LookaheadSpan, len(words)-cursor)
	for offset := 0; offset < window; offset++ {
		candidate := cursor + offset
		if !m.matches(p, words[candidate]) {
			continue
		}

		result := MatchResult{Advanced: true, MatchedIndex: candidate}
		for i := cursor; i < candidate; i++ {
			result.Skipped = append(result.Skipped, i)
		}
		return result
	}
	return NoMatch()
}

// Apply commits result to words and returns the new cursor.
func Apply(words []Word, cursor int, result MatchResult) int {
	if !result.Advanced {
		return cursor
	}
	for _, i := range result.Skipped {
		words[i].Status = StatusSkipped
	}
	words[result.MatchedIndex].Status = StatusMatched
	return result.MatchedIndex + 1
}

type phrase struct {
	normalized string
	tokens     []string
	strict     []string
	// fresh is the tail of tokens not yet credited to a matched word.
	fresh []string
}

func newPhrase(raw string) phrase {
	normalized := transcript.Normalize(raw)
	return phrase{
		normalized: normalized,
		tokens:     transcript.Tokens(normalized),
		strict:     transcript.Tokens(transcript.Strict(raw)),
	}
}

func (m *Matcher) matches(p phrase, word Word) bool {
	switch m.sensitivity {
	case SensitivityHigh:
		if word.strict == "" {
			return true
		}
		for _, token := range p.strict {
			if token == word.strict {
				return true
			}
		}
		return false
	case SensitivityLow:
		if strings.Contains(p.normalized, word.Normalized) {
			return true
		}
		return m.fuzzy(p.fresh, word.Normalized)
	default:
		return strings.Contains(p.normalized, word.Normalized)
	}
}

func (m *Matcher) fuzzy(tokens []string, target string) bool {
	if utf8.RuneCountInString(target) < minFuzzyRunes {
		return false
	}
	for _, token := range tokens {
		if utf8.RuneCountInString(token) < minFuzzyRunes {
			continue
		}
		if matchr.JaroWinkler(token, target, false) >= m.fuzzyThreshold {
			return true
		}
	}
	return false
}

// unconsumedTokens drops every token up to the last one that spells a word
// already matched just before cursor. Interim transcripts restate the whole
// utterance, so those tokens were spent on earlier words and must not be
// fuzzy-compared against the word at the cursor.
func unconsumedTokens(tokens []string, words []Word, cursor int) []string {
	spent := make(map[string]struct{})
	for i := max(0, cursor-len(tokens)); i < cursor; i++ {
		if words[i].Status == StatusMatched {
			spent[words[i].Normalized] = struct{}{}
		}
	}
	if len(spent) == 0 {
		return tokens
	}
	for i := len(tokens) - 1; i >= 0; i-- {
		if _, ok := spent[tokens[i]]; ok {
			return tokens[i+1:]
		}
	}
	return tokens
}
