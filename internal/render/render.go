// Package render turns the build manifest into static HTML pages using
// embedded templates, optionally overridden by files in the site's
// layouts/ directory.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/smercer/gallium/internal/gallery"
)

//go:embed templates/*.html
var defaultTemplates embed.FS

// templateNames are the page templates the engine expects to exist, either
// embedded or overridden.
var templateNames = []string{"index.html", "collection.html"}

// SiteMeta carries the site-wide fields templates need.
type SiteMeta struct {
	Title       string
	Description string
	Author      string
	BaseURL     string
}

// indexData is the template context for the index page.
type indexData struct {
	Site     SiteMeta
	Manifest gallery.Manifest
}

// collectionData is the template context for a collection page.
type collectionData struct {
	Site       SiteMeta
	Collection gallery.Collection
}

// Engine executes page templates against manifest data.
type Engine struct {
	templates *template.Template
}

// NewEngine loads the embedded templates and overlays any same-named .html
// files found in layoutDir. A missing layout directory is not an error.
func NewEngine(layoutDir string) (*Engine, error) {
	root := template.New("")

	for _, name := range templateNames {
		content, err := defaultTemplates.ReadFile("templates/" + name)
		if err != nil {
			return nil, fmt.Errorf("loading embedded template %s: %w", name, err)
		}

		// User layouts with the same name override the embedded default.
		if layoutDir != "" {
			if userContent, err := os.ReadFile(filepath.Join(layoutDir, name)); err == nil {
				content = userContent
			}
		}

		if _, err := root.New(name).Parse(string(content)); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
	}

	return &Engine{templates: root}, nil
}

// RenderIndex renders the site index page listing every collection.
func (e *Engine) RenderIndex(site SiteMeta, manifest gallery.Manifest) ([]byte, error) {
	return e.execute("index.html", indexData{Site: site, Manifest: manifest})
}

// RenderCollection renders a single collection page.
func (e *Engine) RenderCollection(site SiteMeta, col gallery.Collection) ([]byte, error) {
	return e.execute("collection.html", collectionData{Site: site, Collection: col})
}

func (e *Engine) execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("executing template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
