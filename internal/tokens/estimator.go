// Package tokens estimates token cost and enforces the per-run token budget.
//
// Costs are estimates from a fixed tokens-per-word ratio, not counts from a real tokenizer.
// Runes of scripts written without spaces (Han, kana, Hangul) count one token each.
package tokens

import (
	"math"
	"unicode"

	"github.com/hyperjump/digest/internal/models"
	"github.com/hyperjump/digest/pkg/utils"
)

// DefaultTokensPerWord is the average tokens per English word for common BPE tokenizers.
const DefaultTokensPerWord = 1.33

// Estimator converts text into an estimated token cost.
type Estimator struct {
	tokensPerWord float64
}

// NewEstimator returns an estimator. tokensPerWord <= 0 uses DefaultTokensPerWord.
func NewEstimator(tokensPerWord float64) *Estimator {
	if tokensPerWord <= 0 {
		tokensPerWord = DefaultTokensPerWord
	}
	return &Estimator{tokensPerWord: tokensPerWord}
}

// Cost returns the estimated token count of text. Any non-blank text costs at least 1.
func (e *Estimator) Cost(text string) int {
	words, wide := 0, 0
	inWord := false
	for _, r := range text {
		switch {
		case utils.IsWide(r):
			wide++
			inWord = false
		case unicode.IsSpace(r):
			inWord = false
		default:
			if !inWord {
				words++
				inWord = true
			}
		}
	}
	cost := int(math.Ceil(float64(words)*e.tokensPerWord)) + wide
	if cost == 0 && (words > 0 || wide > 0) {
		cost = 1
	}
	return cost
}

// Estimate prices every segment and compares the total against the budget.
// It never fails on budget grounds; the outcome is carried in Recommendation.
func (e *Estimator) Estimate(segs []models.Segment, budget int, warnThreshold float64) models.TokenEstimate {
	est := models.TokenEstimate{
		PerSegment:       make(map[int]int, len(segs)),
		Budget:           budget,
		WarningThreshold: warnThreshold,
	}
	for _, s := range segs {
		c := e.Cost(s.Text)
		est.PerSegment[s.Index] = c
		est.Cumulative += c
	}
	est.Recommendation = Recommend(est.Cumulative, budget, warnThreshold)
	return est
}

// Recommend classifies total against the budget: block at or above budget, warn at or above
// warnThreshold × budget, proceed otherwise.
func Recommend(total, budget int, warnThreshold float64) models.Recommendation {
	switch {
	case total >= budget:
		return models.RecommendBlock
	case float64(total) >= warnThreshold*float64(budget):
		return models.RecommendWarn
	default:
		return models.RecommendProceed
	}
}
