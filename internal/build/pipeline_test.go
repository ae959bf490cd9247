package build

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smercer/gallium/internal/config"
	"github.com/smercer/gallium/internal/gallery"
	galliumimage "github.com/smercer/gallium/internal/image"
)

// writeJPEG writes a plain-colour JPEG of the given dimensions to path.
func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 90, G: 120, B: 60, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: 60, B: 150, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func testConfig() *config.SiteConfig {
	cfg := config.Default()
	cfg.Title = "Test Gallery"
	cfg.Images.Widths = []int{640, 1280, 1920, 2560}
	return cfg
}

// makeSource creates a collection directory with the given image files and
// returns a matching Source.
func makeSource(t *testing.T, root string, year int, slug string, images map[string][2]int) gallery.Source {
	t.Helper()
	dir := filepath.Join(root, "photos", "2024", slug)
	var names []string
	for name, size := range images {
		writeJPEG(t, filepath.Join(dir, name), size[0], size[1])
		names = append(names, name)
	}
	src := gallery.Source{Year: year, Slug: slug, Dir: dir, Images: names}
	return src
}

func TestProcessCollection_FreshVariants(t *testing.T) {
	root := t.TempDir()
	src := makeSource(t, root, 2024, "dunes", map[string][2]int{
		"walk.jpg": {1600, 800},
	})

	p := NewPipeline(testConfig(), nil, false)
	outDir := filepath.Join(root, "out")
	results, err := p.ProcessCollection(src, outDir, "/photos/2024/dunes")
	if err != nil {
		t.Fatalf("ProcessCollection: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results; want 1", len(results))
	}

	photo := results[0].Photo
	// Only widths the source covers: 640 and 1280, never 1920/2560.
	want := "/photos/2024/dunes/walk-640w.jpg 640w, /photos/2024/dunes/walk-1280w.jpg 1280w"
	if photo.Srcset != want {
		t.Errorf("srcset = %q\nwant     %q", photo.Srcset, want)
	}
	if photo.Src != "/photos/2024/dunes/walk-1280w.jpg" {
		t.Errorf("src = %q; want the largest variant", photo.Src)
	}
	if photo.Width != 1280 || photo.Height != 640 {
		t.Errorf("size = %dx%d; want 1280x640", photo.Width, photo.Height)
	}

	for _, name := range []string{"walk-640w.jpg", "walk-1280w.jpg"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("variant %s not written: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "walk-1920w.jpg")); err == nil {
		t.Error("upscaled 1920w variant written for a 1600px source")
	}

	stats := p.Stats()
	if stats.VariantsGenerated != 2 || stats.Photos != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestProcessCollection_SharedStemsStayDistinct(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "photos", "2024", "pair")
	writeJPEG(t, filepath.Join(dir, "a.jpg"), 800, 600)
	writePNG(t, filepath.Join(dir, "a.png"), 800, 600)
	src := gallery.Source{Year: 2024, Slug: "pair", Dir: dir, Images: []string{"a.jpg", "a.png"}}

	p := NewPipeline(testConfig(), nil, false)
	outDir := filepath.Join(root, "out")
	results, err := p.ProcessCollection(src, outDir, "/photos/2024/pair")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results; want 2", len(results))
	}

	srcs := map[string]string{}
	for _, r := range results {
		srcs[r.Name] = r.Photo.Src
	}
	if srcs["a.jpg"] == srcs["a.png"] {
		t.Fatalf("both sources map to %q; variants overwrote each other", srcs["a.jpg"])
	}
	if !strings.Contains(srcs["a.jpg"], "a-jpg-") {
		t.Errorf("a.jpg src = %q; want extension folded into stem", srcs["a.jpg"])
	}
	if !strings.Contains(srcs["a.png"], "a-png-") {
		t.Errorf("a.png src = %q; want extension folded into stem", srcs["a.png"])
	}

	for _, name := range []string{"a-jpg-640w.jpg", "a-png-640w.jpg"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("variant %s not written: %v", name, err)
		}
	}
}

func TestProcessCollection_NativeWidthFallback(t *testing.T) {
	root := t.TempDir()
	src := makeSource(t, root, 2024, "tiny", map[string][2]int{
		"small.jpg": {500, 400},
	})

	p := NewPipeline(testConfig(), nil, false)
	outDir := filepath.Join(root, "out")
	results, err := p.ProcessCollection(src, outDir, "/photos/2024/tiny")
	if err != nil {
		t.Fatal(err)
	}

	photo := results[0].Photo
	if photo.Src != "/photos/2024/tiny/small-500w.jpg" {
		t.Errorf("src = %q; want single native-width variant", photo.Src)
	}
	if photo.Srcset != "/photos/2024/tiny/small-500w.jpg 500w" {
		t.Errorf("srcset = %q", photo.Srcset)
	}
	if photo.Width != 500 || photo.Height != 400 {
		t.Errorf("size = %dx%d; want native 500x400", photo.Width, photo.Height)
	}
}

func TestProcessCollection_CorruptImageFallsBack(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "photos", "2024", "mixed")
	writeJPEG(t, filepath.Join(dir, "good.jpg"), 800, 600)
	if err := os.WriteFile(filepath.Join(dir, "bad.jpg"), []byte("not an image at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	src := gallery.Source{Year: 2024, Slug: "mixed", Dir: dir, Images: []string{"bad.jpg", "good.jpg"}}

	p := NewPipeline(testConfig(), nil, false)
	outDir := filepath.Join(root, "out")
	results, err := p.ProcessCollection(src, outDir, "/photos/2024/mixed")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results; want 2 (corrupt image still listed)", len(results))
	}

	var bad gallery.Photo
	for _, r := range results {
		if r.Name == "bad.jpg" {
			bad = r.Photo
		}
	}
	if bad.Src != "/photos/2024/mixed/bad.jpg" {
		t.Errorf("fallback src = %q; want original filename", bad.Src)
	}
	if bad.Width != 1200 || bad.Height != 800 {
		t.Errorf("fallback size = %dx%d; want placeholder 1200x800", bad.Width, bad.Height)
	}
	copied, err := os.ReadFile(filepath.Join(outDir, "bad.jpg"))
	if err != nil {
		t.Fatalf("fallback copy missing: %v", err)
	}
	if string(copied) != "not an image at all" {
		t.Error("fallback copy does not match original bytes")
	}

	stats := p.Stats()
	if stats.Fallbacks != 1 {
		t.Errorf("Fallbacks = %d; want 1", stats.Fallbacks)
	}
}

func TestProcessCollection_CacheHitSkipsCodec(t *testing.T) {
	root := t.TempDir()
	src := makeSource(t, root, 2024, "dunes", map[string][2]int{
		"walk.jpg": {1600, 800},
	})
	store, err := galliumimage.OpenStore(filepath.Join(root, "cache"))
	if err != nil {
		t.Fatal(err)
	}

	// First build populates the cache.
	p1 := NewPipeline(testConfig(), store, false)
	out1 := filepath.Join(root, "out1")
	first, err := p1.ProcessCollection(src, out1, "/photos/2024/dunes")
	if err != nil {
		t.Fatal(err)
	}
	if s := p1.Stats(); s.CacheHits != 0 || s.VariantsGenerated != 2 {
		t.Fatalf("first run stats = %+v", s)
	}

	// Second build restores without generating.
	p2 := NewPipeline(testConfig(), store, false)
	out2 := filepath.Join(root, "out2")
	second, err := p2.ProcessCollection(src, out2, "/photos/2024/dunes")
	if err != nil {
		t.Fatal(err)
	}
	if s := p2.Stats(); s.CacheHits != 1 || s.VariantsGenerated != 0 {
		t.Errorf("second run stats = %+v; want pure cache hit", s)
	}
	if second[0].Photo != first[0].Photo {
		t.Errorf("cached descriptor = %+v; want identical to fresh %+v", second[0].Photo, first[0].Photo)
	}
	if _, err := os.Stat(filepath.Join(out2, "walk-1280w.jpg")); err != nil {
		t.Errorf("restored variant missing: %v", err)
	}
}

func TestProcessCollection_SelfHealsAfterMissingCacheFile(t *testing.T) {
	root := t.TempDir()
	src := makeSource(t, root, 2024, "dunes", map[string][2]int{
		"walk.jpg": {1600, 800},
	})
	cacheDir := filepath.Join(root, "cache")
	store, err := galliumimage.OpenStore(cacheDir)
	if err != nil {
		t.Fatal(err)
	}

	p1 := NewPipeline(testConfig(), store, false)
	if _, err := p1.ProcessCollection(src, filepath.Join(root, "out1"), "/photos/2024/dunes"); err != nil {
		t.Fatal(err)
	}

	// Remove one mirrored variant; the entry must stop validating and the
	// full set regenerates.
	if err := os.Remove(filepath.Join(cacheDir, "2024", "dunes", "walk-1280w.jpg")); err != nil {
		t.Fatal(err)
	}

	p2 := NewPipeline(testConfig(), store, false)
	if _, err := p2.ProcessCollection(src, filepath.Join(root, "out2"), "/photos/2024/dunes"); err != nil {
		t.Fatal(err)
	}
	if s := p2.Stats(); s.CacheHits != 0 || s.VariantsGenerated != 2 {
		t.Errorf("stats after cache damage = %+v; want full regeneration", s)
	}
	// The mirror is repaired for the next build.
	if _, err := os.Stat(filepath.Join(cacheDir, "2024", "dunes", "walk-1280w.jpg")); err != nil {
		t.Errorf("cache mirror not repaired: %v", err)
	}
}

func TestProcessCollection_ChangedContentRegenerates(t *testing.T) {
	root := t.TempDir()
	src := makeSource(t, root, 2024, "dunes", map[string][2]int{
		"walk.jpg": {1600, 800},
	})
	store, err := galliumimage.OpenStore(filepath.Join(root, "cache"))
	if err != nil {
		t.Fatal(err)
	}

	p1 := NewPipeline(testConfig(), store, false)
	if _, err := p1.ProcessCollection(src, filepath.Join(root, "out1"), "/photos/2024/dunes"); err != nil {
		t.Fatal(err)
	}

	// Re-export the image with different content, same filename.
	writeJPEG(t, filepath.Join(src.Dir, "walk.jpg"), 1400, 700)

	p2 := NewPipeline(testConfig(), store, false)
	results, err := p2.ProcessCollection(src, filepath.Join(root, "out2"), "/photos/2024/dunes")
	if err != nil {
		t.Fatal(err)
	}
	if s := p2.Stats(); s.CacheHits != 0 {
		t.Errorf("CacheHits = %d; want 0 after content change", s.CacheHits)
	}
	if results[0].Photo.Width != 1280 {
		t.Errorf("Width = %d; want 1280", results[0].Photo.Width)
	}
	if !strings.Contains(results[0].Photo.Srcset, "640w") {
		t.Errorf("srcset = %q", results[0].Photo.Srcset)
	}
}
