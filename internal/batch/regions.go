package batch

import (
	"context"

	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/internal/storage"
	"go-roi-inspector/pkg/region"
)

// RegionSet names the regions of a batch: an explicit list or a template
// reference, never both.
type RegionSet struct {
	Regions  []region.Region
	Template string
}

// Resolve returns the regions, loading the template through store when
// one is referenced. The result is validated.
func (s RegionSet) Resolve(ctx context.Context, store storage.TemplateStore) ([]region.Region, error) {
	var (
		regions []region.Region
		err     error
	)
	switch {
	case len(s.Regions) > 0 && s.Template != "":
		return nil, apperrors.NewInvalidInputError("give either regions or a template, not both", nil)
	case s.Template != "":
		if store == nil {
			return nil, apperrors.NewInvalidInputError("no template store configured", nil)
		}
		regions, err = storage.LoadRegions(ctx, store, s.Template)
		if err != nil {
			return nil, err
		}
	default:
		regions = s.Regions
	}

	if len(regions) == 0 {
		return nil, apperrors.NewInvalidInputError("no regions to measure", nil)
	}
	if err := region.ValidateAll(regions); err != nil {
		return nil, err
	}
	return regions, nil
}
