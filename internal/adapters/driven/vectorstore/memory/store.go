// Package memory provides an in-memory vector store. It is the
// reference implementation of the VectorStore contract, used in tests
// and as a scratch backend for local experiments.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

type entry struct {
	documentID string
	vector     []float32
	text       string
	metadata   map[string]any
}

// Store is an in-memory implementation of driven.VectorStore using
// brute-force cosine similarity.
type Store struct {
	mu        sync.RWMutex
	dimension int
	modelID   string
	entries   map[string]entry
}

// NewStore creates an in-memory vector store with a fixed dimension.
func NewStore(dimension int) *Store {
	return &Store{
		dimension: dimension,
		entries:   make(map[string]entry),
	}
}

// Upsert stores vectors keyed by chunk ID, replacing prior entries.
func (s *Store) Upsert(_ context.Context, items []domain.EmbeddingUpsert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The first non-empty ModelID pins the index to its embedding model.
	pin := s.modelID
	for _, item := range items {
		if len(item.Vector) != s.dimension {
			return fmt.Errorf("%w: expected %d, got %d",
				domain.ErrDimensionMismatch, s.dimension, len(item.Vector))
		}
		if item.ModelID == "" {
			continue
		}
		if pin == "" {
			pin = item.ModelID
		} else if item.ModelID != pin {
			return fmt.Errorf("%w: index pinned to %q, got %q",
				domain.ErrModelMismatch, pin, item.ModelID)
		}
	}
	s.modelID = pin
	for _, item := range items {
		s.entries[item.ChunkID] = entry{
			documentID: item.DocumentID,
			vector:     item.Vector,
			text:       item.Text,
			metadata:   item.Metadata,
		}
	}
	return nil
}

// Query returns the top-k entries by canonical similarity.
func (s *Store) Query(_ context.Context, vector []float32, params domain.QueryParams) ([]domain.CandidateResult, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d",
			domain.ErrDimensionMismatch, s.dimension, len(vector))
	}
	if err := domain.ValidateFilters(params.Filters); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]domain.CandidateResult, 0, len(s.entries))
	for chunkID, e := range s.entries {
		if !matchesFilters(e, params.Filters) {
			continue
		}
		score := canonicalCosine(vector, e.vector)
		if score < params.ScoreThreshold {
			continue
		}
		results = append(results, domain.CandidateResult{
			ChunkID:    chunkID,
			DocumentID: e.documentID,
			Score:      score,
			Text:       e.text,
			Metadata:   e.metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].ChunkID < results[j].ChunkID
		}
		return results[i].Score > results[j].Score
	})

	if params.TopK > 0 && len(results) > params.TopK {
		results = results[:params.TopK]
	}
	return results, nil
}

// DeleteByDocument removes every entry belonging to the document.
func (s *Store) DeleteByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for chunkID, e := range s.entries {
		if e.documentID == documentID {
			delete(s.entries, chunkID)
		}
	}
	return nil
}

// Name identifies the backend.
func (s *Store) Name() string {
	return "memory"
}

// Dimension returns the configured vector dimension.
func (s *Store) Dimension() int {
	return s.dimension
}

// Close releases resources.
func (s *Store) Close() error {
	return nil
}

// Count returns the number of stored vectors.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// CountByDocument returns the number of stored vectors for a document.
func (s *Store) CountByDocument(documentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	for _, e := range s.entries {
		if e.documentID == documentID {
			n++
		}
	}
	return n
}

// matchesFilters applies the closed filter grammar to an entry.
func matchesFilters(e entry, filters []domain.Filter) bool {
	for _, f := range filters {
		var val any
		if f.Field == "document_id" {
			val = e.documentID
		} else {
			val = e.metadata[f.Field]
		}

		switch f.Op {
		case domain.FilterEq:
			if !looseEqual(val, f.Value) {
				return false
			}
		case domain.FilterIn:
			found := false
			for _, v := range f.Values {
				if looseEqual(val, v) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case domain.FilterRange:
			n, ok := toFloat(val)
			if !ok || n < f.Min || n > f.Max {
				return false
			}
		}
	}
	return true
}

// looseEqual compares metadata values across numeric representations,
// since JSON round-trips turn ints into float64.
func looseEqual(a, b any) bool {
	if a == b {
		return true
	}
	fa, oka := toFloat(a)
	fb, okb := toFloat(b)
	return oka && okb && fa == fb
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// canonicalCosine maps cosine similarity from [-1,1] into the
// canonical [0,1] range shared by every backend.
func canonicalCosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na += va * va
		nb += vb * vb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return (cos + 1) / 2
}
