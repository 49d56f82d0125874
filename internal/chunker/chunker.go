// Package chunker splits document text into retrieval-sized chunks.
//
// Splitting is recursive and structural: paragraph boundaries are
// preferred over line boundaries, lines over word boundaries, and only
// text with no usable structure falls back to a fixed sliding window.
// Form feeds are treated as page breaks so chunks carry a page range.
package chunker

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// DefaultMaxChunks is the default ceiling on chunks per document.
const DefaultMaxChunks = 5000

// separators are tried in order; the first one present in the text is
// used. The empty separator means character-level sliding window.
var separators = []string{"\n\n", "\n", " ", ""}

// Chunker splits document content into overlapping chunks.
type Chunker struct {
	chunkSize int
	overlap   int
	maxChunks int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithMaxChunks sets the hard ceiling on chunks per document.
func WithMaxChunks(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxChunks = n
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		maxChunks: DefaultMaxChunks,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

// Chunk splits the text into chunks for the given document. Exceeding
// the chunk ceiling fails with domain.ErrDocumentTooLarge rather than
// silently truncating.
func (c *Chunker) Chunk(doc *domain.Document, text string) ([]domain.Chunk, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	// Pages first, so every chunk stays within one page and carries
	// its page number. Documents without form feeds are one page.
	pages := strings.Split(text, "\f")

	var chunks []domain.Chunk
	position := 0
	for pageIdx, page := range pages {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}

		pageNo := 0
		if len(pages) > 1 {
			pageNo = pageIdx + 1
		}

		for _, piece := range c.split(page, separators) {
			chunks = append(chunks, domain.Chunk{
				ID:         uuid.New().String(),
				DocumentID: doc.ID,
				Text:       piece,
				TokenCount: estimateTokens(piece),
				PageStart:  pageNo,
				PageEnd:    pageNo,
				Position:   position,
				Metadata:   make(map[string]any),
			})
			position++

			if len(chunks) > c.maxChunks {
				return nil, fmt.Errorf("%w: document %s exceeds %d chunks",
					domain.ErrDocumentTooLarge, doc.ID, c.maxChunks)
			}
		}
	}

	return chunks, nil
}

// split recursively divides text using the first separator it contains.
func (c *Chunker) split(text string, seps []string) []string {
	if len(text) <= c.chunkSize {
		return []string{text}
	}
	if len(seps) == 0 {
		return c.window(text)
	}

	sep := seps[0]
	if sep == "" {
		return c.window(text)
	}
	if !strings.Contains(text, sep) {
		return c.split(text, seps[1:])
	}

	parts := strings.Split(text, sep)
	var out []string
	current := ""

	flush := func() {
		if strings.TrimSpace(current) != "" {
			out = append(out, current)
		}
		// Carry the tail of the finished chunk as overlap
		if c.overlap > 0 && len(current) > c.overlap {
			current = current[len(current)-c.overlap:]
		} else {
			current = ""
		}
	}

	for _, part := range parts {
		if part == "" {
			continue
		}

		candidate := part
		if current != "" {
			candidate = current + sep + part
		}
		if len(candidate) <= c.chunkSize {
			current = candidate
			continue
		}

		flush()

		if len(part) <= c.chunkSize {
			if current != "" && len(current)+len(sep)+len(part) <= c.chunkSize {
				current = current + sep + part
			} else {
				current = part
			}
			continue
		}

		// Part is itself oversized: recurse with finer separators.
		current = ""
		out = append(out, c.split(part, seps[1:])...)
	}

	if strings.TrimSpace(current) != "" {
		out = append(out, current)
	}
	return out
}

// window is the unstructured fallback: fixed-size chunks advancing by
// (chunkSize - overlap) characters.
func (c *Chunker) window(text string) []string {
	step := c.chunkSize - c.overlap
	if step <= 0 {
		step = c.chunkSize
	}

	var out []string
	for start := 0; start < len(text); start += step {
		end := start + c.chunkSize
		if end > len(text) {
			end = len(text)
		}
		out = append(out, text[start:end])
	}
	return out
}

// estimateTokens approximates token count at four characters per token.
// Exact accounting is the embedding gateway's concern.
func estimateTokens(text string) int {
	n := (len(text) + 3) / 4
	if n == 0 {
		n = 1
	}
	return n
}
