package build

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/smercer/gallium/internal/config"
	"github.com/smercer/gallium/internal/gallery"
	"github.com/smercer/gallium/internal/image"
)

// Placeholder dimensions reported for images whose headers cannot be read
// at all.
const (
	placeholderWidth  = 1200
	placeholderHeight = 800
)

// Stats counts pipeline outcomes across a run.
type Stats struct {
	Photos            int // photos represented in the manifest
	CacheHits         int // restored from cache without codec work
	Fallbacks         int // copied unmodified after a decode/encode failure
	VariantsGenerated int // variant files produced by the generator
}

// Pipeline turns source images into responsive variants plus a Photo
// descriptor, consulting the cache store first. Each image is processed
// independently: a decode or encode failure is converted into a fallback
// copy and never propagates past the pipeline, so one bad photo cannot
// break the build.
type Pipeline struct {
	widths  []int // ascending, de-duplicated
	gen     *image.Generator
	store   *image.Store // nil disables caching
	verbose bool

	mu    sync.Mutex
	stats Stats
}

// NewPipeline creates a Pipeline from the site's image configuration. A nil
// store disables caching; every image is generated fresh.
func NewPipeline(cfg *config.SiteConfig, store *image.Store, verbose bool) *Pipeline {
	return &Pipeline{
		widths: cfg.SortedWidths(),
		gen: &image.Generator{
			Quality: cfg.Images.Quality,
			Format:  cfg.Images.Format,
		},
		store:   store,
		verbose: verbose,
	}
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// PhotoResult pairs a processed Photo descriptor with its source filename,
// so the assembler can map a configured cover filename to its descriptor.
type PhotoResult struct {
	Name  string
	Photo gallery.Photo
}

// ProcessCollection processes every image in src across a bounded worker
// pool and returns the results in sorted-filename order. Only a failure to
// create the output directory is an error; per-image failures are logged
// and resolved to fallback descriptors. Images whose bytes cannot be read
// at all are dropped with a warning.
func (p *Pipeline) ProcessCollection(src gallery.Source, outDir, urlPrefix string) ([]PhotoResult, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", outDir, err)
	}

	photos := make([]gallery.Photo, len(src.Images))
	processed := make([]bool, len(src.Images))
	stems := variantStems(src.Images)

	workers := runtime.NumCPU()
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, name := range src.Images {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, name string) {
			defer wg.Done()
			defer func() { <-sem }()

			photo, ok := p.processImage(src, name, stems[name], outDir, urlPrefix)
			photos[i] = photo
			processed[i] = ok
		}(i, name)
	}
	wg.Wait()

	results := make([]PhotoResult, 0, len(src.Images))
	for i, ok := range processed {
		if ok {
			results = append(results, PhotoResult{Name: src.Images[i], Photo: photos[i]})
		}
	}

	p.mu.Lock()
	p.stats.Photos += len(results)
	p.mu.Unlock()

	return results, nil
}

// variantStems maps each source filename to the stem its variant files
// use. Sources that share a stem ("a.jpg" and "a.png") would otherwise
// emit identically named variants and overwrite each other, so colliding
// stems get the source extension folded in ("a-jpg", "a-png").
func variantStems(images []string) map[string]string {
	byStem := make(map[string][]string, len(images))
	for _, name := range images {
		stem := image.Stem(name)
		byStem[stem] = append(byStem[stem], name)
	}

	stems := make(map[string]string, len(images))
	for stem, names := range byStem {
		if len(names) == 1 {
			stems[names[0]] = stem
			continue
		}
		for _, name := range names {
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
			stems[name] = stem + "-" + ext
		}
	}
	return stems
}

// processImage runs the per-image state machine. The terminal outcomes are:
// cache hit (restore bytes, no codec work), fresh generation (variants
// committed back to the cache), or fallback copy (decode/encode failure).
func (p *Pipeline) processImage(src gallery.Source, name, stem, outDir, urlPrefix string) (gallery.Photo, bool) {
	data, err := os.ReadFile(filepath.Join(src.Dir, name))
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: reading %s: %v (skipping)\n", name, err)
		return gallery.Photo{}, false
	}

	hash := image.Fingerprint(data)
	key := image.Key(src.Year, src.Slug, name)

	// Cache hit: fingerprint matches and every cached variant file is
	// still present. Restore bytes and reuse the recorded descriptor.
	if p.store != nil {
		if entry, ok := p.store.Lookup(key); ok && p.store.Valid(key, entry, hash) {
			if err := p.store.Restore(key, entry, outDir); err == nil {
				p.mu.Lock()
				p.stats.CacheHits++
				p.mu.Unlock()
				if p.verbose {
					fmt.Printf("  %s (cached)\n", key)
				}
				return photoFromEntry(entry, urlPrefix), true
			}
			// Restore failed mid-copy; regenerate from source.
		}
	}

	img, err := image.Decode(name, data)
	if err != nil {
		return p.fallback(name, data, outDir, urlPrefix, err), true
	}

	bounds := img.Bounds()
	nativeWidth := bounds.Dx()

	// Never upscale: only configured widths the source can cover. When the
	// source is narrower than every configured width, a single native-size
	// variant guarantees at least one output.
	var widths []int
	for _, w := range p.widths {
		if w <= nativeWidth {
			widths = append(widths, w)
		}
	}
	if len(widths) == 0 {
		widths = []int{nativeWidth}
	}

	entry := &image.Entry{Hash: hash}
	for _, w := range widths {
		variant, err := p.gen.Generate(img, stem, w, outDir)
		if err != nil {
			return p.fallback(name, data, outDir, urlPrefix, err), true
		}
		entry.Files = append(entry.Files, variant.Filename)
		entry.SrcsetParts = append(entry.SrcsetParts,
			fmt.Sprintf("%s/%s %dw", urlPrefix, variant.Filename, variant.Width))
		entry.FullName = variant.Filename
		entry.FullWidth = variant.Width
		entry.FullHeight = variant.Height
	}

	p.mu.Lock()
	p.stats.VariantsGenerated += len(entry.Files)
	p.mu.Unlock()

	if p.store != nil {
		if err := p.store.Commit(key, entry, outDir); err != nil {
			// The fresh variants already exist in the output directory;
			// only future-build caching is degraded.
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}

	if p.verbose {
		fmt.Printf("  %s (%d variants)\n", key, len(entry.Files))
	}
	return photoFromEntry(entry, urlPrefix), true
}

// fallback copies the original source bytes unmodified into the output
// directory after a codec failure. Dimensions are probed from the raw
// header as a last resort, then substituted with a fixed placeholder pair.
// The file is excluded from caching but still appears in the manifest.
func (p *Pipeline) fallback(name string, data []byte, outDir, urlPrefix string, cause error) gallery.Photo {
	var decodeErr *image.DecodeError
	if errors.As(cause, &decodeErr) {
		fmt.Fprintf(os.Stderr, "warning: %v (copying original)\n", cause)
	} else {
		fmt.Fprintf(os.Stderr, "warning: %v (falling back to original)\n", cause)
	}

	if err := os.WriteFile(filepath.Join(outDir, name), data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "warning: copying original %s: %v\n", name, err)
	}

	width, height, err := image.ProbeDimensions(data)
	if err != nil {
		width, height = placeholderWidth, placeholderHeight
	}

	p.mu.Lock()
	p.stats.Fallbacks++
	p.mu.Unlock()

	src := urlPrefix + "/" + name
	return gallery.Photo{
		Src:    src,
		Srcset: fmt.Sprintf("%s %dw", src, width),
		Width:  width,
		Height: height,
	}
}

// photoFromEntry converts a cache entry's descriptor fields into a Photo.
func photoFromEntry(e *image.Entry, urlPrefix string) gallery.Photo {
	return gallery.Photo{
		Src:    urlPrefix + "/" + e.FullName,
		Srcset: strings.Join(e.SrcsetParts, ", "),
		Width:  e.FullWidth,
		Height: e.FullHeight,
	}
}
