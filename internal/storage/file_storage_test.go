package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/pkg/region"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore()
	ref := filepath.Join(t.TempDir(), "rois.json")

	require.NoError(t, store.WriteTemplate(context.Background(), ref, []byte(templateJSON)))
	data, err := store.ReadTemplate(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, templateJSON, string(data))

	// overwrite leaves no temporary files behind
	require.NoError(t, store.WriteTemplate(context.Background(), ref, []byte("[]")))
	entries, err := os.ReadDir(filepath.Dir(ref))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStoreMissing(t *testing.T) {
	_, err := NewFileStore().ReadTemplate(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	err = NewFileStore().WriteTemplate(context.Background(), filepath.Join(t.TempDir(), "no", "dir.json"), nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStorage))
}

func TestLoadAndSaveRegions(t *testing.T) {
	store := NewFileStore()
	ref := filepath.Join(t.TempDir(), "rois.json")
	ctx := context.Background()

	session := region.NewSession()
	_, err := session.Add(region.Rect{X: 1, Y: 2, W: 3, H: 4})
	require.NoError(t, err)
	_, err = session.Add(region.Circle{CX: 10, CY: 10, R: 5})
	require.NoError(t, err)

	require.NoError(t, SaveRegions(ctx, store, ref, session.Regions()))
	loaded, err := LoadRegions(ctx, store, ref)
	require.NoError(t, err)
	assert.Equal(t, session.Regions(), loaded)
}

func TestLoadRegionsMalformed(t *testing.T) {
	store := NewFileStore()
	ref := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, store.WriteTemplate(context.Background(), ref, []byte(`{"id":1}`)))

	_, err := LoadRegions(context.Background(), store, ref)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeMalformedTemplate))
}
