package domain

import (
	"fmt"
	"strings"
)

// RetrievalPolicy configures a retrieval call. There is no silent
// fallback: callers either supply a policy or ask for the configured
// default explicitly, and the policy actually applied is echoed back
// with the results.
type RetrievalPolicy struct {
	// TopK caps the number of returned candidates. Must be positive.
	TopK int

	// ScoreThreshold excludes candidates below this canonical
	// similarity. Valid range is [0,1].
	ScoreThreshold float64

	// RerankEnabled turns on the secondary re-scoring pass.
	RerankEnabled bool

	// RerankTopN caps the candidate count after reranking. Clamped to
	// TopK; rerank must never increase the result count.
	RerankTopN int
}

// Validate checks the policy and normalises RerankTopN.
func (p *RetrievalPolicy) Validate() error {
	if p.TopK <= 0 {
		return fmt.Errorf("%w: topK must be positive, got %d", ErrInvalidInput, p.TopK)
	}
	if p.ScoreThreshold < 0 || p.ScoreThreshold > 1 {
		return fmt.Errorf("%w: scoreThreshold must be in [0,1], got %g", ErrInvalidInput, p.ScoreThreshold)
	}
	if p.RerankTopN <= 0 || p.RerankTopN > p.TopK {
		p.RerankTopN = p.TopK
	}
	return nil
}

// RetrievalResult is the outcome of a tuned retrieval call.
type RetrievalResult struct {
	// Candidates are the final ranked hits, strictly descending by score.
	Candidates []CandidateResult

	// Applied is the policy that actually produced the candidates,
	// returned for auditability.
	Applied RetrievalPolicy

	// Reranked reports whether the rerank pass ran.
	Reranked bool
}

// Context joins the candidate texts into a single prompt context,
// capped at maxChars. Zero or negative maxChars means no cap.
func (r RetrievalResult) Context(maxChars int) string {
	if len(r.Candidates) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		parts = append(parts, c.Text)
	}
	ctx := strings.Join(parts, "\n\n")
	if maxChars > 0 && len(ctx) > maxChars {
		ctx = ctx[:maxChars]
	}
	return ctx
}
