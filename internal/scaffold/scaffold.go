// Package scaffold creates new Gallium sites and photo collections.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// nowFunc is the function used to get the current time.
// It is a package-level variable so tests can override it.
var nowFunc = time.Now

var multiHyphen = regexp.MustCompile(`-{2,}`)

// Slugify converts a collection title into a URL-friendly slug. It
// lowercases the input, replaces spaces and underscores with hyphens,
// strips characters that are not letters, digits, or hyphens, collapses
// runs of hyphens, and trims leading/trailing hyphens. Unicode letters are
// preserved.
func Slugify(title string) string {
	s := norm.NFC.String(title)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")

	var buf strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			buf.WriteRune(r)
		}
	}
	s = multiHyphen.ReplaceAllString(buf.String(), "-")
	return strings.Trim(s, "-")
}

// NewSite creates a new gallery site directory with the standard layout:
// a gallium.yaml config, a photos/ tree seeded with one collection
// directory for the current year, and empty layouts/ and static/ dirs.
// It returns an error if the directory already exists.
func NewSite(name string) error {
	if _, err := os.Stat(name); err == nil {
		return fmt.Errorf("directory %q already exists", name)
	}

	year := nowFunc().Year()

	dirs := []string{
		filepath.Join(name, "photos", fmt.Sprintf("%d", year), "sample-collection"),
		filepath.Join(name, "layouts"),
		filepath.Join(name, "static"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %q: %w", dir, err)
		}
	}

	siteTitle := filepath.Base(name)
	config := fmt.Sprintf(`title: "%s"
baseURL: "http://localhost:1414"
description: ""

author:
  name: ""
  email: ""

images:
  quality: 80
  format: jpeg
  widths: [640, 1280, 1920, 2560]

feeds:
  rss: true
  atom: true
  limit: 20

server:
  port: 1414
  livereload: true
`, siteTitle)

	if err := os.WriteFile(filepath.Join(name, "gallium.yaml"), []byte(config), 0o644); err != nil {
		return fmt.Errorf("writing gallium.yaml: %w", err)
	}

	sidecar := `title: "Sample Collection"
# cover: favorite.jpg
# order: 1
`
	sidecarPath := filepath.Join(name, "photos", fmt.Sprintf("%d", year), "sample-collection", "gallery.yaml")
	if err := os.WriteFile(sidecarPath, []byte(sidecar), 0o644); err != nil {
		return fmt.Errorf("writing sample sidecar: %w", err)
	}

	gitignore := ".gallium/\npublic/\n"
	if err := os.WriteFile(filepath.Join(name, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	return nil
}

// NewCollection creates a photos/<year>/<slug>/ directory under root with a
// gallery.yaml sidecar carrying the given title. The year defaults to the
// current year when zero. It returns the created directory path.
func NewCollection(root, title string, year int) (string, error) {
	slug := Slugify(title)
	if slug == "" {
		return "", fmt.Errorf("title %q produces an empty slug", title)
	}
	if year == 0 {
		year = nowFunc().Year()
	}

	dir := filepath.Join(root, "photos", fmt.Sprintf("%d", year), slug)
	if _, err := os.Stat(dir); err == nil {
		return "", fmt.Errorf("collection directory %q already exists", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating collection directory: %w", err)
	}

	sidecar := fmt.Sprintf("title: %q\n", title)
	if err := os.WriteFile(filepath.Join(dir, "gallery.yaml"), []byte(sidecar), 0o644); err != nil {
		return "", fmt.Errorf("writing gallery.yaml: %w", err)
	}

	return dir, nil
}
