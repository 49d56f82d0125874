package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
)

func TestChunk_EmptyContent(t *testing.T) {
	c := New()
	chunks, err := c.Chunk(&domain.Document{ID: "d1"}, "   \n ")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunk_SmallDocumentSingleChunk(t *testing.T) {
	c := New(WithChunkSize(500), WithOverlap(100))
	chunks, err := c.Chunk(&domain.Document{ID: "d1"}, "short text")
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, "d1", chunks[0].DocumentID)
	assert.Equal(t, "short text", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Position)
	assert.NotEmpty(t, chunks[0].ID)
	assert.Equal(t, 3, chunks[0].TokenCount)
}

// TestChunk_WindowCount checks the deterministic sliding-window count
// for text with no structural boundaries: ceil(len / (size - overlap)).
func TestChunk_WindowCount(t *testing.T) {
	c := New(WithChunkSize(500), WithOverlap(100))
	text := strings.Repeat("a", 1000)

	chunks, err := c.Chunk(&domain.Document{ID: "d1"}, text)
	require.NoError(t, err)

	// step = 400, starts at 0, 400, 800
	require.Len(t, chunks, 3)
	assert.Equal(t, 500, len(chunks[0].Text))
	assert.Equal(t, 500, len(chunks[1].Text))
	assert.Equal(t, 200, len(chunks[2].Text))

	// Consecutive windows share the overlap region
	assert.Equal(t, chunks[0].Text[400:], chunks[1].Text[:100])

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Position)
	}
}

func TestChunk_PrefersParagraphBoundaries(t *testing.T) {
	c := New(WithChunkSize(100), WithOverlap(0))
	para1 := strings.Repeat("x", 80)
	para2 := strings.Repeat("y", 80)
	text := para1 + "\n\n" + para2

	chunks, err := c.Chunk(&domain.Document{ID: "d1"}, text)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	// Paragraphs stay intact instead of being cut at character 100
	assert.Equal(t, para1, chunks[0].Text)
	assert.Equal(t, para2, chunks[1].Text)
}

func TestChunk_PageRanges(t *testing.T) {
	c := New(WithChunkSize(500), WithOverlap(0))
	text := "page one text\fpage two text\fpage three text"

	chunks, err := c.Chunk(&domain.Document{ID: "d1"}, text)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for i, ch := range chunks {
		assert.Equal(t, i+1, ch.PageStart)
		assert.Equal(t, i+1, ch.PageEnd)
	}
}

func TestChunk_NoPageBreaksMeansNoPageRange(t *testing.T) {
	c := New()
	chunks, err := c.Chunk(&domain.Document{ID: "d1"}, "plain text")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Zero(t, chunks[0].PageStart)
	assert.Zero(t, chunks[0].PageEnd)
}

func TestChunk_MaxChunksExceeded(t *testing.T) {
	c := New(WithChunkSize(10), WithOverlap(0), WithMaxChunks(3))
	text := strings.Repeat("a", 100)

	chunks, err := c.Chunk(&domain.Document{ID: "d1"}, text)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDocumentTooLarge)
	assert.Nil(t, chunks)
}

func TestNew_OverlapClampedToChunkSize(t *testing.T) {
	c := New(WithChunkSize(100), WithOverlap(150))
	assert.Equal(t, 25, c.overlap)
}
