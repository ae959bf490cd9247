// Package build orchestrates the full gallery generation pipeline. It
// coordinates source discovery, per-image variant processing with caching,
// manifest assembly, page rendering, and file output.
package build

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/smercer/gallium/internal/config"
	"github.com/smercer/gallium/internal/feed"
	"github.com/smercer/gallium/internal/gallery"
	"github.com/smercer/gallium/internal/image"
	"github.com/smercer/gallium/internal/render"
	"github.com/smercer/gallium/internal/seo"
)

// BuildOptions controls the behaviour of the build pipeline.
type BuildOptions struct {
	OutputDir   string
	BaseURL     string
	ProjectRoot string
	Verbose     bool
}

// BuildResult contains statistics about the completed build.
type BuildResult struct {
	Collections       int
	Photos            int
	CacheHits         int
	Fallbacks         int
	VariantsGenerated int
	FilesWritten      int
	Duration          time.Duration
	OutputSize        int64
	Pages             []string // URL paths of all rendered pages
}

// Builder coordinates the full gallery generation pipeline.
type Builder struct {
	config  *config.SiteConfig
	options BuildOptions
}

// NewBuilder creates a new Builder with the given site configuration and
// options.
func NewBuilder(cfg *config.SiteConfig, opts BuildOptions) *Builder {
	return &Builder{
		config:  cfg,
		options: opts,
	}
}

// Build executes the full pipeline and returns a BuildResult summarizing
// what was generated. The pipeline steps are:
//  1. Clean or create the output directory
//  2. Discover year/collection directories (missing source root is fatal)
//  3. Open the image cache (failure degrades to uncached processing)
//  4. Process every image through the asset pipeline
//  5. Resolve and promote each collection's cover photo
//  6. Assemble and sort the manifest, write manifest.json
//  7. Render HTML pages
//  8. Copy static passthrough files
//  9. Generate sitemap, robots.txt, and feeds
//  10. Persist the cache index (failure logged, not fatal)
func (b *Builder) Build() (*BuildResult, error) {
	start := time.Now()
	result := &BuildResult{}

	projectRoot := b.options.ProjectRoot
	if projectRoot == "" {
		var err error
		projectRoot, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determining project root: %w", err)
		}
	}

	outputDir := b.options.OutputDir
	if outputDir == "" {
		outputDir = b.config.OutputDir
	}
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(projectRoot, outputDir)
	}

	sourceRoot := b.config.SourceDir
	if !filepath.IsAbs(sourceRoot) {
		sourceRoot = filepath.Join(projectRoot, sourceRoot)
	}

	baseURL := b.options.BaseURL
	if baseURL == "" {
		baseURL = b.config.BaseURL
	}

	// Step 1: Clean output directory.
	if err := CleanDir(outputDir); err != nil {
		return nil, fmt.Errorf("cleaning output directory: %w", err)
	}

	// Step 2: Discover collections. A missing source root is the one
	// configuration error that aborts the build.
	sources, err := gallery.Discover(sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("discovering collections: %w", err)
	}

	// Step 3: Open the image cache. If it cannot be initialised the build
	// proceeds uncached; this is a best-effort optimisation.
	cacheDir := b.config.CacheDir
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(projectRoot, cacheDir)
	}
	store, err := image.OpenStore(cacheDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v (caching disabled)\n", err)
		store = nil
	}

	pipeline := NewPipeline(b.config, store, b.options.Verbose)

	// Steps 4-5: Process images and assemble collections.
	var collections []gallery.Collection
	for _, src := range sources {
		if len(src.Images) == 0 {
			fmt.Fprintf(os.Stderr, "warning: collection %d/%s has no images (skipping)\n", src.Year, src.Slug)
			continue
		}
		if b.options.Verbose {
			fmt.Printf("%d/%s (%d images)\n", src.Year, src.Slug, len(src.Images))
		}

		urlPrefix := fmt.Sprintf("/photos/%d/%s", src.Year, src.Slug)
		outDir := filepath.Join(outputDir, "photos", fmt.Sprint(src.Year), src.Slug)

		results, err := pipeline.ProcessCollection(src, outDir, urlPrefix)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			fmt.Fprintf(os.Stderr, "warning: collection %d/%s produced no photos (skipping)\n", src.Year, src.Slug)
			continue
		}

		collections = append(collections, assembleCollection(src, results))
	}

	// Step 6: Assemble and serialize the manifest.
	manifest := gallery.BuildManifest(b.config.Title, collections)

	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling manifest: %w", err)
	}
	if err := writeDirectFile(outputDir, "manifest.json", append(manifestData, '\n')); err != nil {
		return nil, fmt.Errorf("writing manifest.json: %w", err)
	}
	result.FilesWritten++

	// Step 7: Render HTML pages.
	engine, err := render.NewEngine(filepath.Join(projectRoot, "layouts"))
	if err != nil {
		return nil, fmt.Errorf("creating render engine: %w", err)
	}

	site := render.SiteMeta{
		Title:       b.config.Title,
		Description: b.config.Description,
		Author:      b.config.Author.Name,
		BaseURL:     baseURL,
	}

	indexHTML, err := engine.RenderIndex(site, manifest)
	if err != nil {
		return nil, fmt.Errorf("rendering index page: %w", err)
	}
	if err := WriteFile(outputDir, "/", indexHTML); err != nil {
		return nil, err
	}
	result.FilesWritten++
	result.Pages = append(result.Pages, "/")

	for _, col := range manifest.Collections {
		pageHTML, err := engine.RenderCollection(site, col)
		if err != nil {
			return nil, fmt.Errorf("rendering collection %s: %w", col.Slug, err)
		}
		url := collectionURL(col)
		if err := WriteFile(outputDir, url, pageHTML); err != nil {
			return nil, err
		}
		result.FilesWritten++
		result.Pages = append(result.Pages, url)
	}

	// Step 8: Copy static passthrough files.
	staticDir := filepath.Join(projectRoot, "static")
	if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
		copied, err := CopyDir(staticDir, outputDir)
		if err != nil {
			return nil, fmt.Errorf("copying static files: %w", err)
		}
		result.FilesWritten += copied
	}

	// Step 9: Generate sitemap.xml, robots.txt, and feeds.
	sitemapEntries := make([]seo.SitemapEntry, 0, len(result.Pages))
	for _, page := range result.Pages {
		sitemapEntries = append(sitemapEntries, seo.SitemapEntry{
			URL: strings.TrimRight(baseURL, "/") + page,
		})
	}
	sitemapData, err := seo.GenerateSitemap(sitemapEntries)
	if err != nil {
		return nil, fmt.Errorf("generating sitemap: %w", err)
	}
	if err := writeDirectFile(outputDir, "sitemap.xml", sitemapData); err != nil {
		return nil, fmt.Errorf("writing sitemap.xml: %w", err)
	}
	result.FilesWritten++

	robotsData := seo.GenerateRobotsTxt(strings.TrimRight(baseURL, "/") + "/sitemap.xml")
	if err := writeDirectFile(outputDir, "robots.txt", robotsData); err != nil {
		return nil, fmt.Errorf("writing robots.txt: %w", err)
	}
	result.FilesWritten++

	if b.config.Feeds.RSS || b.config.Feeds.Atom {
		items := feedItems(manifest, baseURL)
		opts := feed.Options{
			Title:       b.config.Title,
			Description: b.config.Description,
			Link:        strings.TrimRight(baseURL, "/"),
			Author:      b.config.Author.Name,
			Limit:       b.config.Feeds.Limit,
		}
		if b.config.Feeds.RSS {
			opts.FeedLink = strings.TrimRight(baseURL, "/") + "/index.xml"
			rssData, err := feed.GenerateRSS(items, opts)
			if err != nil {
				return nil, fmt.Errorf("generating RSS feed: %w", err)
			}
			if err := writeDirectFile(outputDir, "index.xml", rssData); err != nil {
				return nil, fmt.Errorf("writing index.xml: %w", err)
			}
			result.FilesWritten++
		}
		if b.config.Feeds.Atom {
			opts.FeedLink = strings.TrimRight(baseURL, "/") + "/atom.xml"
			atomData, err := feed.GenerateAtom(items, opts)
			if err != nil {
				return nil, fmt.Errorf("generating Atom feed: %w", err)
			}
			if err := writeDirectFile(outputDir, "atom.xml", atomData); err != nil {
				return nil, fmt.Errorf("writing atom.xml: %w", err)
			}
			result.FilesWritten++
		}
	}

	// Step 10: Persist the cache index. A failure only reduces caching
	// benefit on the next run.
	if store != nil {
		if err := store.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: saving cache index: %v\n", err)
		}
	}

	stats := pipeline.Stats()
	result.Collections = len(manifest.Collections)
	result.Photos = stats.Photos
	result.CacheHits = stats.CacheHits
	result.Fallbacks = stats.Fallbacks
	result.VariantsGenerated = stats.VariantsGenerated

	size, err := DirSize(outputDir)
	if err != nil {
		return nil, fmt.Errorf("calculating output size: %w", err)
	}
	result.OutputSize = size
	result.Duration = time.Since(start)

	return result, nil
}

// assembleCollection resolves the cover photo and builds the collection
// descriptor. The cover is the configured filename (or the first image
// alphabetically), falling back to the first processed photo when that
// filename produced no descriptor; it is then promoted to index 0 so it
// receives priority-load treatment in the rendered page.
func assembleCollection(src gallery.Source, results []PhotoResult) gallery.Collection {
	photos := make([]gallery.Photo, len(results))
	byName := make(map[string]gallery.Photo, len(results))
	for i, r := range results {
		photos[i] = r.Photo
		byName[r.Name] = r.Photo
	}

	cover, ok := byName[src.CoverName()]
	if !ok {
		cover = photos[0]
	}
	photos = gallery.PromoteCover(photos, cover)

	return gallery.Collection{
		Slug:   src.Slug,
		Title:  src.Title(),
		Year:   src.Year,
		Order:  src.Sidecar.Order,
		Cover:  cover,
		Photos: photos,
	}
}

// collectionURL returns the page URL for a collection.
func collectionURL(col gallery.Collection) string {
	return fmt.Sprintf("/%d/%s/", col.Year, col.Slug)
}

// feedItems converts manifest collections into feed items, preserving
// manifest order.
func feedItems(manifest gallery.Manifest, baseURL string) []feed.Item {
	base := strings.TrimRight(baseURL, "/")
	items := make([]feed.Item, 0, len(manifest.Collections))
	for _, col := range manifest.Collections {
		items = append(items, feed.Item{
			Title:      col.Title,
			Link:       base + collectionURL(col),
			CoverURL:   base + col.Cover.Src,
			Year:       col.Year,
			PhotoCount: len(col.Photos),
		})
	}
	return items
}

// writeDirectFile writes data to a named file directly in the output
// directory.
func writeDirectFile(outputDir, filename string, data []byte) error {
	filePath := filepath.Join(outputDir, filename)
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", filePath, err)
	}
	return os.WriteFile(filePath, data, 0o644)
}
