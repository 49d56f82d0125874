package normalisers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/vectra-cli/internal/core/domain"
	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry dispatches normalisation by media type. When multiple
// normalisers claim the same type, the highest priority wins.
type Registry struct {
	mu     sync.RWMutex
	byMime map[string]driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byMime: make(map[string]driven.Normaliser)}
}

// Register adds a normaliser for each media type it declares.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, mime := range n.MimeTypes() {
		current, ok := r.byMime[mime]
		if ok && current.Priority() >= n.Priority() {
			continue
		}
		r.byMime[mime] = n
	}
}

// Normalise extracts text using the normaliser registered for mime.
func (r *Registry) Normalise(ctx context.Context, mime, name string, raw []byte) (string, error) {
	r.mu.RLock()
	n, ok := r.byMime[mime]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: no normaliser for %q", domain.ErrUnsupportedType, mime)
	}
	return n.Normalise(ctx, name, raw)
}

// SupportedMimeTypes returns the registered media types, sorted.
func (r *Registry) SupportedMimeTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mimes := make([]string, 0, len(r.byMime))
	for mime := range r.byMime {
		mimes = append(mimes, mime)
	}
	sort.Strings(mimes)
	return mimes
}
