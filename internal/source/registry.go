package source

import (
	"context"
	"fmt"

	"github.com/JakeFAU/cerebro/internal/paper"
	"github.com/JakeFAU/cerebro/internal/venue"
)

// Registry dispatches FetchPapers to the adapter registered for a venue group.
type Registry struct {
	sources map[venue.Group]paper.Source
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[venue.Group]paper.Source)}
}

// Register binds an adapter to a venue group, replacing any previous one.
func (r *Registry) Register(group venue.Group, src paper.Source) {
	r.sources[group] = src
}

// FetchPapers implements paper.Source.
func (r *Registry) FetchPapers(ctx context.Context, name string, year int) ([]paper.Paper, error) {
	group, err := venue.GroupOf(name)
	if err != nil {
		return nil, err
	}
	src, ok := r.sources[group]
	if !ok {
		return nil, fmt.Errorf("%w: %s (group %s not registered)", venue.ErrUnknownVenue, name, group)
	}
	return src.FetchPapers(ctx, name, year)
}
