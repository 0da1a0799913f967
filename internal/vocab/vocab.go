// Package vocab repairs misheard words in transcribed text using a list of
// known terms, such as the assistant's name or project jargon.
//
// A run of words is replaced by a term when the two sound alike (they share
// a Double Metaphone code) and are spelled alike (Jaro-Winkler similarity at
// or above the phonetic threshold). Runs that do not sound alike may still be
// replaced when their spelling is very close, judged against the stricter
// fuzzy threshold. Longer runs are tried first so multi-word terms win over
// partial matches.
//
// A Corrector is read-only after construction and safe for concurrent use.
package vocab

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	DefaultPhoneticThreshold = 0.80
	DefaultFuzzyThreshold    = 0.90
)

// Correction records one replacement.
type Correction struct {
	Original  string
	Corrected string
	Score     float64
}

// Option configures a [Corrector].
type Option func(*Corrector)

// WithPhoneticThreshold sets the minimum similarity for runs that sound like
// a term. Default: [DefaultPhoneticThreshold].
func WithPhoneticThreshold(v float64) Option {
	return func(c *Corrector) { c.phoneticMin = v }
}

// WithFuzzyThreshold sets the minimum similarity for runs that only look
// like a term. Default: [DefaultFuzzyThreshold].
func WithFuzzyThreshold(v float64) Option {
	return func(c *Corrector) { c.fuzzyMin = v }
}

type term struct {
	text   string
	joined string
	words  int
	codes  map[string]struct{}
}

// Corrector replaces misheard words with known terms.
type Corrector struct {
	terms       []term
	maxWords    int
	phoneticMin float64
	fuzzyMin    float64
}

// New prepares a Corrector for terms. Blank terms are ignored.
func New(terms []string, opts ...Option) *Corrector {
	c := &Corrector{
		phoneticMin: DefaultPhoneticThreshold,
		fuzzyMin:    DefaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	for _, t := range terms {
		words := normalize(strings.Fields(t))
		if len(words) == 0 {
			continue
		}
		c.terms = append(c.terms, term{
			text:   strings.Join(strings.Fields(t), " "),
			joined: strings.Join(words, ""),
			words:  len(words),
			codes:  codes(append(words, strings.Join(words, ""))),
		})
		c.maxWords = max(c.maxWords, len(words))
	}
	return c
}

// Len returns the number of known terms.
func (c *Corrector) Len() int { return len(c.terms) }

// Correct returns text with misheard terms replaced, and the replacements
// made. Punctuation trailing a replaced run is kept. Text without matches is
// returned unchanged.
func (c *Corrector) Correct(text string) (string, []Correction) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 || len(c.terms) == 0 {
		return text, nil
	}

	var (
		out         []string
		corrections []Correction
		changed     bool
	)
	for i := 0; i < len(tokens); {
		n, repl, score := c.longestMatch(tokens[i:])
		if n == 0 {
			out = append(out, tokens[i])
			i++
			continue
		}
		run := strings.Join(tokens[i:i+n], " ")
		fixed := repl + trailingPunct(tokens[i+n-1])
		if fixed != run {
			changed = true
			corrections = append(corrections, Correction{Original: run, Corrected: repl, Score: score})
		}
		out = append(out, fixed)
		i += n
	}
	if !changed {
		return text, nil
	}
	return strings.Join(out, " "), corrections
}

// longestMatch finds the longest run at the start of tokens that matches a
// term. It returns 0 when nothing matches.
func (c *Corrector) longestMatch(tokens []string) (int, string, float64) {
	for n := min(c.maxWords+1, len(tokens)); n >= 1; n-- {
		words := normalize(tokens[:n])
		if len(words) != n {
			continue
		}
		if t, score, ok := c.match(words); ok {
			return n, t, score
		}
	}
	return 0, "", 0
}

// match ranks the terms against one run of words. Terms that sound like the
// run beat terms that are only spelled like it.
func (c *Corrector) match(words []string) (string, float64, bool) {
	joined := strings.Join(words, "")
	runCodes := codes(append(words, joined))

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, t := range c.terms {
		// A single-word term may be heard as two words, e.g. "elder nacks"
		// for "Eldrinax". A longer term may lose one word.
		if d := len(words) - t.words; d > 1 || d < -1 || (d == 1 && t.words > 1) {
			continue
		}
		if !similarLength(len(joined), len(t.joined)) {
			continue
		}
		score := 1.0
		if joined != t.joined {
			score = matchr.JaroWinkler(joined, t.joined, false)
		}
		phonetic := overlap(runCodes, t.codes)
		switch {
		case phonetic && score >= c.phoneticMin:
			if !bestPhonetic || score > bestScore {
				best, bestScore, bestPhonetic = t.text, score, true
			}
		case !bestPhonetic && score >= c.fuzzyMin && score > bestScore:
			best, bestScore = t.text, score
		}
	}
	return best, bestScore, best != ""
}

// similarLength reports whether two spellings differ in length by at most
// 30% of the longer one.
func similarLength(a, b int) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return 10*d <= 3*max(a, b)
}

// normalize lower-cases words and strips surrounding punctuation. Words that
// are only punctuation are dropped.
func normalize(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimFunc(strings.ToLower(w), func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func trailingPunct(word string) string {
	trimmed := strings.TrimRightFunc(word, unicode.IsPunct)
	return word[len(trimmed):]
}

// codes returns the Double Metaphone codes of words.
func codes(words []string) map[string]struct{} {
	set := make(map[string]struct{}, 2*len(words))
	for _, w := range words {
		p, s := matchr.DoubleMetaphone(w)
		if p != "" {
			set[p] = struct{}{}
		}
		if s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

func overlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}
