// Package tagging assigns categories, tags, and titles to matched segments from a static rule table.
package tagging

import (
	"sort"
	"strings"

	"github.com/hyperjump/digest/internal/keyword"
	"github.com/hyperjump/digest/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultCategory is used when no rule, or more than one rule, claims the matched keywords.
const DefaultCategory = "General"

// Rule maps keywords to a category and the tags that category implies.
type Rule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Tags     []string `yaml:"tags"`
}

// Labels are the tagging results for one segment.
type Labels struct {
	Title    string
	Category string
	Tags     []string
}

// Tagger labels segments. It holds no mutable state; the same matches always yield the same labels.
type Tagger struct {
	rules           []Rule
	byKeyword       map[string][]int // folded keyword -> rule indexes
	defaultCategory string
	title           cases.Caser
}

// NewTagger builds a tagger over rules. Rules without a name or keywords are ignored.
// An empty defaultCategory means DefaultCategory.
func NewTagger(rules []Rule, defaultCategory string) *Tagger {
	if strings.TrimSpace(defaultCategory) == "" {
		defaultCategory = DefaultCategory
	}
	t := &Tagger{
		byKeyword:       make(map[string][]int),
		defaultCategory: defaultCategory,
		title:           cases.Title(language.Und),
	}
	for _, r := range rules {
		if strings.TrimSpace(r.Name) == "" || len(r.Keywords) == 0 {
			continue
		}
		idx := len(t.rules)
		t.rules = append(t.rules, r)
		for _, k := range r.Keywords {
			key := keyword.Fold(k)
			if key == "" {
				continue
			}
			if !containsInt(t.byKeyword[key], idx) {
				t.byKeyword[key] = append(t.byKeyword[key], idx)
			}
		}
	}
	return t
}

// Label computes title, category, and tags for a matched segment.
func (t *Tagger) Label(sm models.SegmentMatches) Labels {
	ruleHits := make(map[int]struct{})
	tagSet := make(map[string]struct{})
	for _, m := range sm.Matches {
		tagSet[strings.ToLower(m.Keyword)] = struct{}{}
		for _, idx := range t.byKeyword[keyword.Fold(m.Keyword)] {
			ruleHits[idx] = struct{}{}
		}
	}

	category := t.defaultCategory
	if len(ruleHits) == 1 {
		for idx := range ruleHits {
			rule := t.rules[idx]
			category = rule.Name
			for _, tag := range rule.Tags {
				if tag = strings.TrimSpace(tag); tag != "" {
					tagSet[strings.ToLower(tag)] = struct{}{}
				}
			}
		}
	}

	tags := make([]string, 0, len(tagSet))
	for tag := range tagSet {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	return Labels{
		Title:    t.title.String(primaryKeyword(sm.Matches)),
		Category: category,
		Tags:     tags,
	}
}

// primaryKeyword picks the first exact match, falling back to the first match.
func primaryKeyword(matches []models.Match) string {
	for _, m := range matches {
		if m.Type == models.MatchExact {
			return m.Keyword
		}
	}
	if len(matches) > 0 {
		return matches[0].Keyword
	}
	return ""
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
