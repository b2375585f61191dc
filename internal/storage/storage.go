// Package storage reads and writes region templates as raw bytes.
package storage

import (
	"context"

	"go-roi-inspector/pkg/region"
)

// MaxTemplateSize bounds a template read from any backend.
const MaxTemplateSize = 8 << 20

// TemplateStore is the byte oriented read/write pair behind template
// references. ref is backend specific: a path, a URL or a blob reference.
type TemplateStore interface {
	ReadTemplate(ctx context.Context, ref string) ([]byte, error)
	WriteTemplate(ctx context.Context, ref string, data []byte) error
}

// LoadRegions reads and parses a template.
func LoadRegions(ctx context.Context, store TemplateStore, ref string) ([]region.Region, error) {
	data, err := store.ReadTemplate(ctx, ref)
	if err != nil {
		return nil, err
	}
	return region.Deserialize(data)
}

// SaveRegions serializes regions and writes them to ref.
func SaveRegions(ctx context.Context, store TemplateStore, ref string, regions []region.Region) error {
	data, err := region.Serialize(regions)
	if err != nil {
		return err
	}
	return store.WriteTemplate(ctx, ref, data)
}
