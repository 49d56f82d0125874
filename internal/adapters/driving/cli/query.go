package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
)

var (
	queryTopK       int
	queryThreshold  float64
	queryRerank     bool
	queryRerankTopN int
	queryJSON       bool
	queryFilters    []string
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Retrieve documents by semantic similarity",
	Long: `Embeds the query text and returns the most similar indexed chunks.

Without tuning flags the configured default retrieval policy applies.
Filters restrict candidates by metadata, e.g. --filter source=wiki.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "maximum number of results")
	queryCmd.Flags().Float64Var(&queryThreshold, "threshold", 0, "minimum similarity score in [0,1]")
	queryCmd.Flags().BoolVar(&queryRerank, "rerank", false, "re-score candidates with the reranker")
	queryCmd.Flags().IntVar(&queryRerankTopN, "rerank-top-n", 0, "result cap after reranking")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	queryCmd.Flags().StringArrayVar(&queryFilters, "filter", nil, "metadata equality filter key=value (repeatable)")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	policy := queryPolicy(cmd)
	filters, err := parseFilters(queryFilters)
	if err != nil {
		return err
	}

	result, err := queryService.Query(cmd.Context(), args[0], policy, filters)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return outputQueryJSON(cmd, result)
	}
	return outputQueryTable(cmd, result)
}

// queryPolicy builds a policy from the tuning flags, or nil when no
// tuning flag was given so the configured default applies.
func queryPolicy(cmd *cobra.Command) *domain.RetrievalPolicy {
	tuned := cmd.Flags().Changed("top-k") ||
		cmd.Flags().Changed("threshold") ||
		cmd.Flags().Changed("rerank") ||
		cmd.Flags().Changed("rerank-top-n")
	if !tuned {
		return nil
	}

	policy := &domain.RetrievalPolicy{
		TopK:           queryTopK,
		ScoreThreshold: queryThreshold,
		RerankEnabled:  queryRerank,
		RerankTopN:     queryRerankTopN,
	}
	if policy.TopK <= 0 {
		policy.TopK = 5
	}
	return policy
}

// parseFilters turns key=value arguments into equality filters.
func parseFilters(raw []string) ([]domain.Filter, error) {
	filters := make([]domain.Filter, 0, len(raw))
	for _, r := range raw {
		key, value, ok := strings.Cut(r, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: filter must be key=value, got %q", domain.ErrInvalidFilter, r)
		}
		filters = append(filters, domain.Filter{
			Field: key,
			Op:    domain.FilterEq,
			Value: value,
		})
	}
	return filters, nil
}

func outputQueryJSON(cmd *cobra.Command, result *domain.RetrievalResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputQueryTable(cmd *cobra.Command, result *domain.RetrievalResult) error {
	if len(result.Candidates) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Printf("Results (top-k=%d, threshold=%.2f, reranked=%t):\n",
		result.Applied.TopK, result.Applied.ScoreThreshold, result.Reranked)
	cmd.Println()
	for i, c := range result.Candidates {
		snippet := c.Text
		if len(snippet) > 120 {
			snippet = snippet[:120] + "..."
		}
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, c.ChunkID, c.Score)
		cmd.Printf("      Document: %s\n", c.DocumentID)
		cmd.Printf("      %s\n", snippet)
		cmd.Println()
	}
	return nil
}
