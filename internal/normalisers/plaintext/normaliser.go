// Package plaintext handles documents that are already plain text.
package plaintext

import (
	"context"
	"strings"

	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser passes plain text through with line ending normalisation.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// MimeTypes returns the media types this normaliser handles.
func (n *Normaliser) MimeTypes() []string {
	return []string{"text/plain"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise converts raw bytes to text with unix line endings.
func (n *Normaliser) Normalise(_ context.Context, _ string, raw []byte) (string, error) {
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	return strings.TrimSpace(text), nil
}
