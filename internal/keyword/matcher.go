// Package keyword finds keyword occurrences in segments and scores segment relevance.
package keyword

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/digest/internal/models"
	"github.com/hyperjump/digest/pkg/utils"
	"go.uber.org/zap"
)

// densityScale turns "weight per word" into a readable score range.
const densityScale = 10.0

// InvalidKeywordsError is returned when no usable keyword was supplied.
type InvalidKeywordsError struct {
	Reason string
}

func (e *InvalidKeywordsError) Error() string {
	return fmt.Sprintf("invalid keywords: %s", e.Reason)
}

type term struct {
	raw    string // trimmed as supplied
	lower  string
	folded string
	words  int // word count of folded
}

// Matcher scores segments against a fixed keyword set.
//
// A case-insensitive substring hit is exact. Otherwise a hit on the folded text (see Fold)
// is fuzzy, and so is any run of words whose edit distance to the folded keyword is within
// fuzzyThreshold × keyword length.
type Matcher struct {
	terms          []term
	fuzzyThreshold float64
	transpositions bool
	logger         *zap.Logger
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithFuzzyThreshold sets the maximum edit distance as a fraction of keyword length.
// Zero disables edit-distance matching; folded substring matching stays on.
func WithFuzzyThreshold(f float64) MatcherOption {
	return func(m *Matcher) {
		if f >= 0 && f < 1 {
			m.fuzzyThreshold = f
		}
	}
}

// WithTranspositions makes an adjacent swap count as a single edit.
func WithTranspositions(enabled bool) MatcherOption {
	return func(m *Matcher) { m.transpositions = enabled }
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) MatcherOption {
	return func(m *Matcher) { m.logger = l }
}

// NewMatcher builds a matcher. Keywords are trimmed; blanks and duplicates (after folding)
// are dropped, keeping first-seen order. Returns *InvalidKeywordsError when none remain.
func NewMatcher(keywords []string, opts ...MatcherOption) (*Matcher, error) {
	m := &Matcher{transpositions: true, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	if len(keywords) == 0 {
		return nil, &InvalidKeywordsError{Reason: "at least one keyword is required"}
	}
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		raw := strings.TrimSpace(k)
		if raw == "" {
			continue
		}
		lower := strings.ToLower(raw)
		folded := Fold(raw)
		key := folded
		if key == "" {
			key = lower
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		m.terms = append(m.terms, term{raw: raw, lower: lower, folded: folded, words: len(strings.Fields(folded))})
	}
	if len(m.terms) == 0 {
		return nil, &InvalidKeywordsError{Reason: "all keywords are blank"}
	}
	return m, nil
}

// Keywords returns the effective keyword list in order.
func (m *Matcher) Keywords() []string {
	out := make([]string, len(m.terms))
	for i, t := range m.terms {
		out[i] = t.raw
	}
	return out
}

// Match computes the matches for seg. Score is the sum of the distinct matched keywords'
// weights (exact 2, fuzzy 1) divided by the segment's word count and scaled by 10.
// A segment without matches has score 0 and nil Matches.
func (m *Matcher) Match(seg models.Segment) models.SegmentMatches {
	result := models.SegmentMatches{Segment: seg}
	lower := strings.ToLower(seg.Text)
	folded := Fold(seg.Text)
	var foldedWords []string

	units := float64(lengthUnits(seg.Text))
	for _, t := range m.terms {
		var mt models.MatchType
		switch {
		case strings.Contains(lower, t.lower):
			mt = models.MatchExact
		case t.folded != "" && strings.Contains(folded, t.folded):
			mt = models.MatchFuzzy
		case m.fuzzyThreshold > 0 && t.folded != "":
			if foldedWords == nil {
				foldedWords = strings.Fields(folded)
			}
			if m.near(foldedWords, t) {
				mt = models.MatchFuzzy
			}
		}
		if mt == "" {
			continue
		}
		score := mt.Weight() / units * densityScale
		result.Matches = append(result.Matches, models.Match{
			SegmentIndex: seg.Index,
			Keyword:      t.raw,
			Type:         mt,
			Score:        score,
		})
		result.Score += score
	}
	if len(result.Matches) > 0 {
		m.logger.Debug("segment matched",
			zap.Int("segment", seg.Index),
			zap.Int("keywords", len(result.Matches)),
			zap.Float64("score", result.Score),
		)
	}
	return result
}

// near reports whether some run of words in the folded text is within the edit budget of t.
func (m *Matcher) near(words []string, t term) bool {
	n := t.words
	if n == 0 || len(words) < n {
		return false
	}
	keyLen := utf8.RuneCountInString(t.folded)
	maxDist := int(m.fuzzyThreshold * float64(keyLen))
	if maxDist < 1 {
		return false
	}
	for i := 0; i+n <= len(words); i++ {
		window := strings.Join(words[i:i+n], " ")
		if d := utf8.RuneCountInString(window) - keyLen; d > maxDist || -d > maxDist {
			continue
		}
		if editDistance(window, t.folded, m.transpositions) <= maxDist {
			return true
		}
	}
	return false
}

// lengthUnits is the word count used to normalize scores. Ideographic scripts have no
// spaces, so each such rune counts as a word.
func lengthUnits(text string) int {
	n := 0
	inWord := false
	for _, r := range text {
		switch {
		case utils.IsWide(r):
			n++
			inWord = false
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			inWord = false
		default:
			if !inWord {
				n++
				inWord = true
			}
		}
	}
	if n == 0 {
		return 1
	}
	return n
}

// Rank keeps segments with a positive score and orders them by descending score,
// then by document order.
func Rank(matches []models.SegmentMatches) []models.SegmentMatches {
	out := make([]models.SegmentMatches, 0, len(matches))
	for _, sm := range matches {
		if sm.Score > 0 {
			out = append(out, sm)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Segment.Index < out[j].Segment.Index
	})
	return out
}
