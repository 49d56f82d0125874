// Package rerank provides reranking adapters that re-score retrieval
// candidates with a secondary relevance function.
package rerank

import (
	"context"
	"sort"
	"strings"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
)

// Ensure Lexical implements the interface.
var _ driven.Reranker = (*Lexical)(nil)

// Lexical re-scores candidates by query term overlap. It runs locally
// with no external service, making it the default reranker.
type Lexical struct{}

// NewLexical creates a lexical term-overlap reranker.
func NewLexical() *Lexical {
	return &Lexical{}
}

// Rerank scores each candidate by the fraction of query terms it
// contains, sorts by that score, and truncates to topN. When the query
// yields no usable terms the original vector order is preserved.
func (r *Lexical) Rerank(ctx context.Context, query string, candidates []domain.CandidateResult, topN int) ([]domain.CandidateResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(candidates) {
		topN = len(candidates)
	}

	queryTerms := tokenize(query)

	out := make([]domain.CandidateResult, len(candidates))
	copy(out, candidates)

	if len(queryTerms) > 0 {
		scores := make([]float64, len(out))
		for i, c := range out {
			scores[i] = termOverlap(queryTerms, c.Text)
		}
		order := make([]int, len(out))
		for i := range order {
			order[i] = i
		}
		// Stable so ties keep the vector order.
		sort.SliceStable(order, func(a, b int) bool {
			return scores[order[a]] > scores[order[b]]
		})
		reordered := make([]domain.CandidateResult, len(out))
		for i, idx := range order {
			reordered[i] = out[idx]
			reordered[i].Score = scores[idx]
		}
		out = reordered
	}

	return out[:topN], nil
}

// ModelName returns the name of the reranking model being used.
func (r *Lexical) ModelName() string {
	return "lexical-overlap"
}

// tokenize splits text into lowercase alphanumeric terms of length >= 2.
func tokenize(text string) map[string]int {
	terms := make(map[string]int)
	var word strings.Builder
	flush := func() {
		if word.Len() >= 2 {
			terms[strings.ToLower(word.String())]++
		}
		word.Reset()
	}
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return terms
}

// termOverlap returns the fraction of query terms present in the document.
func termOverlap(queryTerms map[string]int, doc string) float64 {
	docTerms := tokenize(doc)
	if len(docTerms) == 0 {
		return 0
	}
	matches := 0
	for term := range queryTerms {
		if _, ok := docTerms[term]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(queryTerms))
}
