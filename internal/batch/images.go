package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	apperrors "go-roi-inspector/internal/errors"
)

// ListImages returns the files in folder whose extension matches exts,
// sorted by name. Subdirectories are not searched. An empty result, or a
// folder that does not exist, is a NoImagesFound error.
func ListImages(folder string, exts []string) ([]string, error) {
	opts, err := Options{Extensions: exts}.normalize()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewNoImagesFoundError(folder)
		}
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("cannot read folder %s", folder), err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if matchesExtension(entry.Name(), opts.Extensions) {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, apperrors.NewNoImagesFoundError(folder)
	}

	slices.Sort(names)
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(folder, name)
	}
	return paths, nil
}

func matchesExtension(name string, exts []string) bool {
	return slices.Contains(exts, strings.ToLower(filepath.Ext(name)))
}
