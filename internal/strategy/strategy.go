// Package strategy defines the Allocator interface for portfolio weight
// construction and provides a Registry for managing multiple allocator
// implementations.
package strategy

import (
	"context"
	"sort"

	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/domain"
	"github.com/nguyenngocbinh/EGP-Portfolio-Optimization/internal/series"
)

// Allocator turns an estimation window of asset returns plus the aligned
// factor returns into target portfolio weights.
type Allocator interface {
	// Name returns the unique identifier for this allocator.
	Name() string

	// Allocate computes target weights for every asset in the window. The
	// factor slice has exactly one value per window row. Warnings report
	// non-fatal degradations; a returned error means no usable weights were
	// produced.
	Allocate(ctx context.Context, window *series.Frame, factor []float64) (map[string]float64, []domain.Warning, error)
}

// Registry holds a named collection of allocators for lookup and enumeration.
type Registry struct {
	allocators map[string]Allocator
}

// NewRegistry creates an empty allocator Registry.
func NewRegistry() *Registry {
	return &Registry{
		allocators: make(map[string]Allocator),
	}
}

// Register adds an allocator to the registry, keyed by its Name().
func (r *Registry) Register(a Allocator) {
	r.allocators[a.Name()] = a
}

// Get retrieves an allocator by name. The second return value indicates
// whether the allocator was found.
func (r *Registry) Get(name string) (Allocator, bool) {
	a, ok := r.allocators[name]
	return a, ok
}

// List returns a sorted slice of all registered allocator names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.allocators))
	for name := range r.allocators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
