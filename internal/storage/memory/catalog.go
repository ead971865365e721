package memory

import (
	"context"
	"slices"

	"github.com/xenking/fieldservice-sale/internal/domain/auth"
	"github.com/xenking/fieldservice-sale/internal/domain/fsm"
	"github.com/xenking/fieldservice-sale/internal/domain/product"
)

var (
	_ product.Repository     = (*ProductRepository)(nil)
	_ fsm.StageRepository    = (*StageRepository)(nil)
	_ fsm.LocationRepository = (*LocationRepository)(nil)
	_ auth.Repository        = (*APIKeyRepository)(nil)
)

// ProductRepository implements product.Repository in memory.
type ProductRepository struct{ s *Store }

// Upsert stores p, replacing any product with the same ID.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	return r.s.write(ctx, func(d *data) error {
		d.products[p.ID] = p
		return nil
	})
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	var (
		p  product.Product
		ok bool
	)
	r.s.read(ctx, func(d *data) { p, ok = d.products[id] })
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	r.s.read(ctx, func(d *data) {
		for _, id := range ids {
			if p, ok := d.products[id]; ok {
				out = append(out, p)
			}
		}
	})
	return out, nil
}

// StageRepository implements fsm.StageRepository in memory.
type StageRepository struct{ s *Store }

// Upsert stores st, replacing any stage with the same ID.
func (r *StageRepository) Upsert(ctx context.Context, st fsm.Stage) error {
	return r.s.write(ctx, func(d *data) error {
		d.stages[st.ID] = st
		return nil
	})
}

// GetByRef resolves a stage by its external reference.
func (r *StageRepository) GetByRef(ctx context.Context, ref string) (*fsm.Stage, error) {
	var found *fsm.Stage
	r.s.read(ctx, func(d *data) {
		for _, st := range d.stages {
			if st.Ref == ref {
				found = &st
				return
			}
		}
	})
	if found == nil {
		return nil, fsm.ErrStageNotFound
	}
	return found, nil
}

// firstStage returns the open stage with the lowest sequence.
func firstStage(d *data) string {
	var best *fsm.Stage
	for _, st := range d.stages {
		if st.IsClosed {
			continue
		}
		if best == nil || st.Sequence < best.Sequence {
			best = &st
		}
	}
	if best == nil {
		return ""
	}
	return best.ID
}

// LocationRepository implements fsm.LocationRepository in memory.
type LocationRepository struct{ s *Store }

// Upsert stores loc, replacing any location with the same ID.
func (r *LocationRepository) Upsert(ctx context.Context, loc fsm.Location) error {
	return r.s.write(ctx, func(d *data) error {
		d.locations[loc.ID] = loc
		return nil
	})
}

// GetByIDs returns locations matching any of the given IDs.
func (r *LocationRepository) GetByIDs(ctx context.Context, ids []string) ([]fsm.Location, error) {
	var out []fsm.Location
	r.s.read(ctx, func(d *data) {
		for _, id := range ids {
			if loc, ok := d.locations[id]; ok {
				out = append(out, loc)
			}
		}
	})
	return out, nil
}

// APIKeyRepository implements auth.Repository in memory.
type APIKeyRepository struct{ s *Store }

// Upsert stores info keyed by its hash.
func (r *APIKeyRepository) Upsert(ctx context.Context, info auth.APIKeyInfo) error {
	return r.s.write(ctx, func(d *data) error {
		info.Groups = slices.Clone(info.Groups)
		d.apiKeys[info.KeyHash] = info
		return nil
	})
}

// FindByHash looks up an API key by its HMAC hash.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.APIKeyInfo, error) {
	var (
		info auth.APIKeyInfo
		ok   bool
	)
	r.s.read(ctx, func(d *data) { info, ok = d.apiKeys[hash] })
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &info, nil
}
