// Package refresh runs a discovery pass and merges its results into the
// persisted registry.
package refresh

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/amirbrooks/projects-docstore/internal/registry"
)

// ErrNothingToMerge means no source produced candidates and no scan roots are
// configured, so there is nothing the user could refresh.
var ErrNothingToMerge = errors.New("nothing to merge")

// Source produces one discovery batch.
type Source interface {
	Name() string
	Discover(ctx context.Context) (registry.Document, error)
}

// Store is the persistence the refresh reads from and writes back to.
type Store interface {
	ReadRegistry() (*registry.Registry, error)
	WriteRegistry(*registry.Registry) error
}

// Refresher merges its Sources, in order, into the stored registry. Earlier
// sources take precedence when filling empty fields.
type Refresher struct {
	Sources   []Source
	Describer registry.Describer
	Store     Store
	Logger    *zap.Logger
	// HasRoots reports whether folder-scan roots are configured. With roots,
	// an empty discovery still rewrites the registry.
	HasRoots bool
}

type Result struct {
	Registry        *registry.Registry
	Patches         []registry.Patch
	AddedProjects   int
	AddedGroups     int
	FilledFields    int
	Described       int
	EnrichFailures  int
	SourceFailures  int
	SourcesWithData int
}

// Run gathers every source, merges and enriches, and writes the result. A
// failing source is logged and treated as an empty batch.
func (r *Refresher) Run(ctx context.Context) (Result, error) {
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	var res Result

	batches := make([]registry.Batch, 0, len(r.Sources))
	for _, src := range r.Sources {
		doc, err := src.Discover(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			res.SourceFailures++
			log.Warn("discovery source failed", zap.String("source", src.Name()), zap.Error(err))
			continue
		}
		if !doc.IsEmpty() {
			res.SourcesWithData++
		}
		log.Debug("discovery source done",
			zap.String("source", src.Name()),
			zap.Int("projects", len(doc.Projects)),
			zap.Int("groups", len(doc.Groups)))
		batches = append(batches, registry.Batch{Source: src.Name(), Document: doc})
	}
	if res.SourcesWithData == 0 && !r.HasRoots {
		return res, ErrNothingToMerge
	}

	base, err := r.Store.ReadRegistry()
	if err != nil {
		return res, err
	}
	merged, patches := registry.Merge(base, batches...)
	for _, p := range patches {
		res.AddedProjects += p.Count(registry.OpAddProject)
		res.AddedGroups += p.Count(registry.OpAddGroup)
		res.FilledFields += p.Count(registry.OpFillName) + p.Count(registry.OpFillDescription)
	}

	if r.Describer != nil {
		patch, failures := registry.Enrich(ctx, merged, r.Describer)
		for _, f := range failures {
			log.Debug("description lookup failed", zap.String("path", f.Path), zap.Error(f.Err))
		}
		res.Described = len(patch.Ops)
		res.EnrichFailures = len(failures)
		patches = append(patches, patch)
	}

	if err := r.Store.WriteRegistry(merged); err != nil {
		return res, fmt.Errorf("save refreshed registry: %w", err)
	}
	res.Registry = merged
	res.Patches = patches
	log.Info("registry refreshed",
		zap.Int("added_projects", res.AddedProjects),
		zap.Int("added_groups", res.AddedGroups),
		zap.Int("filled_fields", res.FilledFields),
		zap.Int("described", res.Described))
	return res, nil
}
