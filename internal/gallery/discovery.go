package gallery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/smercer/gallium/internal/image"
)

// Source describes one discovered collection directory and its contents.
// Identity (year and slug) is derived from the directory structure and is
// immutable once computed; renaming a directory changes identity.
type Source struct {
	Year    int
	Slug    string
	Dir     string   // absolute path of the collection directory
	Sidecar Sidecar  // zero value when absent or malformed
	Images  []string // image filenames, sorted for deterministic order
}

// Title returns the sidecar title override, or the default derived from the
// slug.
func (s Source) Title() string {
	if s.Sidecar.Title != "" {
		return s.Sidecar.Title
	}
	return DefaultTitle(s.Slug)
}

// CoverName returns the configured cover filename, or the first image
// alphabetically when no cover is configured. Empty when the collection has
// no images.
func (s Source) CoverName() string {
	if s.Sidecar.Cover != "" {
		return s.Sidecar.Cover
	}
	if len(s.Images) > 0 {
		return s.Images[0]
	}
	return ""
}

// Discover enumerates sourceRoot, which must contain numeric year
// directories each holding one directory per collection slug. A missing
// source root is a configuration error and aborts the build; a malformed
// sidecar only logs a warning and falls back to defaults. Years, slugs, and
// image filenames are all enumerated in sorted order so builds are
// reproducible across machines.
func Discover(sourceRoot string) ([]Source, error) {
	info, err := os.Stat(sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("source directory %s: %w", sourceRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path %s is not a directory", sourceRoot)
	}

	yearEntries, err := os.ReadDir(sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("reading source directory: %w", err)
	}

	var sources []Source
	for _, ye := range yearEntries {
		if !ye.IsDir() {
			continue
		}
		year, err := strconv.Atoi(ye.Name())
		if err != nil {
			// Not a year directory; ignore.
			continue
		}

		yearDir := filepath.Join(sourceRoot, ye.Name())
		slugEntries, err := os.ReadDir(yearDir)
		if err != nil {
			return nil, fmt.Errorf("reading year directory %s: %w", yearDir, err)
		}

		for _, se := range slugEntries {
			if !se.IsDir() {
				continue
			}
			dir := filepath.Join(yearDir, se.Name())

			src := Source{
				Year: year,
				Slug: se.Name(),
				Dir:  dir,
			}

			sc, err := LoadSidecar(dir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v (using defaults)\n", err)
			} else {
				src.Sidecar = sc
			}

			files, err := os.ReadDir(dir)
			if err != nil {
				return nil, fmt.Errorf("reading collection directory %s: %w", dir, err)
			}
			for _, fe := range files {
				if fe.IsDir() || !image.IsSupported(fe.Name()) {
					continue
				}
				src.Images = append(src.Images, fe.Name())
			}
			sort.Strings(src.Images)

			sources = append(sources, src)
		}
	}

	return sources, nil
}
