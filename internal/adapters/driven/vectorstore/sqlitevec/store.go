// Package sqlitevec provides a SQLite-backed vector store.
//
// Vectors are stored as little-endian float32 BLOBs next to their
// metadata; similarity is brute-force cosine computed in-process. This
// is the relational-extension-backed backend: durable, dependency-free
// at runtime, and fast enough for collections up to a few hundred
// thousand chunks.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Store is a SQLite-backed implementation of driven.VectorStore.
type Store struct {
	db        *sql.DB
	path      string
	modelID   string
	dimension int
}

// NewStore opens (or creates) the vector database in the given data
// directory. If dataDir is empty, defaults to ~/.vectra/data. The
// index is pinned to (modelID, dimension) in a persisted meta row;
// reopening with a different model or dimension fails rather than
// mixing incompatible vectors. An empty modelID adopts whatever model
// the index was pinned to.
func NewStore(dataDir, modelID string, dimension int) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".vectra", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "vectors.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath, modelID: modelID, dimension: dimension}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.checkMeta(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS vectors (
			chunk_id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			embedding BLOB NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}'
		);
		CREATE INDEX IF NOT EXISTS idx_vectors_document ON vectors(document_id);
		CREATE TABLE IF NOT EXISTS index_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			model_id TEXT NOT NULL,
			dimension INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating vectors schema: %w", err)
	}
	return nil
}

// checkMeta pins the index to (model_id, dimension) on first open and
// rejects reopening under an incompatible configuration.
func (s *Store) checkMeta() error {
	var storedModel string
	var storedDim int
	err := s.db.QueryRow(`SELECT model_id, dimension FROM index_meta WHERE id = 1`).
		Scan(&storedModel, &storedDim)
	if err == sql.ErrNoRows {
		_, err = s.db.Exec(`INSERT INTO index_meta (id, model_id, dimension) VALUES (1, ?, ?)`,
			s.modelID, s.dimension)
		if err != nil {
			return fmt.Errorf("writing index meta: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading index meta: %w", err)
	}

	if storedDim != s.dimension {
		return fmt.Errorf("%w: index created with dimension %d, configured %d",
			domain.ErrDimensionMismatch, storedDim, s.dimension)
	}
	switch {
	case s.modelID == "":
		s.modelID = storedModel
	case storedModel == "":
		if _, err := s.db.Exec(`UPDATE index_meta SET model_id = ? WHERE id = 1`, s.modelID); err != nil {
			return fmt.Errorf("updating index meta: %w", err)
		}
	case storedModel != s.modelID:
		return fmt.Errorf("%w: index pinned to %q, configured %q",
			domain.ErrModelMismatch, storedModel, s.modelID)
	}
	return nil
}

// Upsert stores a batch of chunk vectors in one transaction.
func (s *Store) Upsert(ctx context.Context, items []domain.EmbeddingUpsert) error {
	if len(items) == 0 {
		return nil
	}
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin upsert: %v", domain.ErrBackendUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (chunk_id, document_id, embedding, text, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			document_id = excluded.document_id,
			embedding = excluded.embedding,
			text = excluded.text,
			metadata = excluded.metadata
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		metaJSON, err := json.Marshal(item.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata: %w", err)
		}
		blob := encodeVector(item.Vector)
		if _, err := stmt.ExecContext(ctx, item.ChunkID, item.DocumentID, blob, item.Text, string(metaJSON)); err != nil {
			return fmt.Errorf("%w: upserting chunk %s: %v", domain.ErrBackendUnavailable, item.ChunkID, err)
		}
	}

	if pin != s.modelID {
		if _, err := tx.ExecContext(ctx, `UPDATE index_meta SET model_id = ? WHERE id = 1`, pin); err != nil {
			return fmt.Errorf("%w: pinning index model: %v", domain.ErrBackendUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit upsert: %v", domain.ErrBackendUnavailable, err)
	}
	s.modelID = pin
	return nil
}

// Query scans candidate rows and ranks them by cosine similarity.
// A document_id equality filter is pushed into SQL; the remaining
// predicates are applied to the metadata JSON in-process.
func (s *Store) Query(ctx context.Context, vector []float32, params domain.QueryParams) ([]domain.CandidateResult, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d",
			domain.ErrDimensionMismatch, s.dimension, len(vector))
	}
	if err := domain.ValidateFilters(params.Filters); err != nil {
		return nil, err
	}

	query := `SELECT chunk_id, document_id, embedding, text, metadata FROM vectors`
	var conditions []string
	var args []any
	var metaFilters []domain.Filter
	for _, f := range params.Filters {
		if f.Field == "document_id" && f.Op == domain.FilterEq {
			conditions = append(conditions, `document_id = ?`)
			args = append(args, fmt.Sprint(f.Value))
			continue
		}
		metaFilters = append(metaFilters, f)
	}
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, ` AND `)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying vectors: %v", domain.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	var results []domain.CandidateResult
	for rows.Next() {
		var chunkID, documentID, text, metaJSON string
		var blob []byte
		if err := rows.Scan(&chunkID, &documentID, &blob, &text, &metaJSON); err != nil {
			return nil, fmt.Errorf("scanning vector row: %w", err)
		}

		stored, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding vector for chunk %s: %w", chunkID, err)
		}

		var metadata map[string]any
		if err := json.Unmarshal([]byte(metaJSON), &metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata for chunk %s: %w", chunkID, err)
		}

		if !matchesFilters(documentID, metadata, metaFilters) {
			continue
		}

		score := canonicalCosine(vector, stored)
		if score < params.ScoreThreshold {
			continue
		}

		results = append(results, domain.CandidateResult{
			ChunkID:    chunkID,
			DocumentID: documentID,
			Score:      score,
			Text:       text,
			Metadata:   metadata,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating vectors: %v", domain.ErrBackendUnavailable, err)
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

// DeleteByDocument removes every vector belonging to the document.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("%w: deleting document %s: %v", domain.ErrBackendUnavailable, documentID, err)
	}
	return nil
}

// Name identifies the backend.
func (s *Store) Name() string {
	return "sqlitevec"
}

// Dimension returns the configured vector dimension.
func (s *Store) Dimension() int {
	return s.dimension
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// matchesFilters applies the closed filter grammar to a row.
func matchesFilters(documentID string, metadata map[string]any, filters []domain.Filter) bool {
	for _, f := range filters {
		var val any
		if f.Field == "document_id" {
			val = documentID
		} else {
			val = metadata[f.Field]
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
// since the JSON round-trip turns ints into float64.
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
	if len(a) != len(b) {
		return 0
	}
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
