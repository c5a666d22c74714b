package processing

import (
	"fmt"
	"log/slog"
	"sync"

	apperrors "neuropipe/internal/errors"
)

// Registry holds one processor per kind, in registration order.
type Registry struct {
	mu         sync.RWMutex
	processors map[Kind]Processor
	order      []Kind
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{processors: make(map[Kind]Processor)}
}

// NewDefaultRegistry registers every built-in processor.
func NewDefaultRegistry(logger *slog.Logger, previewSize int) *Registry {
	extractor := NewExtractor(logger, previewSize)
	r := NewRegistry()
	for _, p := range []Processor{
		extractor,
		NewModifier(logger),
		NewAnnotator(logger),
		NewIndexer(logger, previewSize),
		Previewer{Extractor: extractor},
	} {
		// kinds are distinct, Register cannot fail here
		_ = r.Register(p)
	}
	return r
}

// Register adds p. A kind can only be registered once.
func (r *Registry) Register(p Processor) error {
	if p == nil {
		return apperrors.NewValidationError("cannot register nil processor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := p.Kind()
	if _, exists := r.processors[kind]; exists {
		return apperrors.NewValidationError("processor %s already registered", kind)
	}
	r.processors[kind] = p
	r.order = append(r.order, kind)
	return nil
}

// Get returns the processor for kind.
func (r *Registry) Get(kind Kind) (Processor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.processors[kind]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("processor %q", kind.DisplayName()))
	}
	return p, nil
}

// Lookup resolves a processor by any accepted name.
func (r *Registry) Lookup(name string) (Processor, error) {
	kind, err := ParseKind(name)
	if err != nil {
		return nil, err
	}
	return r.Get(kind)
}

// Kinds lists registered kinds in registration order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Kind, len(r.order))
	copy(out, r.order)
	return out
}

// Info describes a registered processor for callers building menus.
type Info struct {
	Kind       Kind        `json:"kind"`
	Name       string      `json:"name"`
	NeedsTable bool        `json:"needs_table"`
	Parameters []ParamSpec `json:"parameters"`
}

// Describe returns Info for every registered processor.
func (r *Registry) Describe() []Info {
	kinds := r.Kinds()
	out := make([]Info, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, Info{
			Kind:       k,
			Name:       k.DisplayName(),
			NeedsTable: k.NeedsTable(),
			Parameters: Describe(k),
		})
	}
	return out
}
