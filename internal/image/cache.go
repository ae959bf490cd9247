package image

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"
)

// indexFileName is the durable cache index inside the cache directory.
const indexFileName = "index.json"

// Store manages generated variants on disk so that unchanged source images
// are not re-encoded across builds. The index is loaded once at startup,
// mutated during the run, and persisted once at the end; variant bytes are
// mirrored under the cache directory in per-collection subdirectories. All
// methods are safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	dir   string
	index map[string]*Entry
}

// Entry records the processing state of a single source image. It is keyed
// by "<year>/<slug>/<filename>" and its JSON field names are part of the
// on-disk index format.
type Entry struct {
	Hash        string   `json:"hash"`        // SHA-256 of the source bytes
	Files       []string `json:"files"`       // variant filenames, ascending by width
	SrcsetParts []string `json:"srcsetParts"` // "<path> <width>w" fragments, same order
	FullName    string   `json:"fullName"`    // widest variant filename
	FullWidth   int      `json:"fullWidth"`
	FullHeight  int      `json:"fullHeight"`
}

// Key builds the cache key for a source image.
func Key(year int, slug, filename string) string {
	return fmt.Sprintf("%d/%s/%s", year, slug, filename)
}

// OpenStore creates a Store rooted at cacheDir and loads the index file if
// one exists. A missing or unreadable index starts empty; only a failure to
// create the cache directory itself is an error.
func OpenStore(cacheDir string) (*Store, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	s := &Store{
		dir:   cacheDir,
		index: make(map[string]*Entry),
	}

	data, err := os.ReadFile(filepath.Join(cacheDir, indexFileName))
	if err != nil {
		// First run, or the index was removed. Start empty.
		return s, nil
	}

	var index map[string]*Entry
	if err := json.Unmarshal(data, &index); err != nil {
		// Corrupt index. Start empty; stale variant files are harmless.
		return s, nil
	}
	if index != nil {
		s.index = index
	}
	return s, nil
}

// Lookup returns the entry for key, if one is recorded. The entry must still
// be checked with Valid before restoration.
func (s *Store) Lookup(key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.index[key]
	return e, ok
}

// Valid reports whether entry may be restored for the source identified by
// key and hash. The fingerprint must match and every recorded variant file
// must still be physically present in the cache area. The index is never
// trusted on its own; re-verifying presence is what lets a partially
// deleted cache heal itself by regeneration.
func (s *Store) Valid(key string, entry *Entry, hash string) bool {
	if entry == nil || entry.Hash != hash || len(entry.Files) == 0 {
		return false
	}
	dir := filepath.Join(s.dir, filepath.FromSlash(path.Dir(key)))
	for _, name := range entry.Files {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

// Restore copies every variant recorded in entry from the cache area into
// destDir, byte for byte. It never invokes the variant generator.
func (s *Store) Restore(key string, entry *Entry, destDir string) error {
	srcDir := filepath.Join(s.dir, filepath.FromSlash(path.Dir(key)))
	for _, name := range entry.Files {
		if err := copyFile(filepath.Join(srcDir, name), filepath.Join(destDir, name)); err != nil {
			return fmt.Errorf("restoring cached variant %s: %w", name, err)
		}
	}
	return nil
}

// Commit records entry under key and mirrors its variant files from srcDir
// into the cache area. The entry is recorded even if mirroring fails; a
// mirror gap only degrades the next build (the entry fails Valid and the
// variants are regenerated), so callers treat the returned error as a
// warning.
func (s *Store) Commit(key string, entry *Entry, srcDir string) error {
	s.mu.Lock()
	s.index[key] = entry
	s.mu.Unlock()

	cacheDir := filepath.Join(s.dir, filepath.FromSlash(path.Dir(key)))
	for _, name := range entry.Files {
		if err := copyFile(filepath.Join(srcDir, name), filepath.Join(cacheDir, name)); err != nil {
			return fmt.Errorf("mirroring variant %s into cache: %w", name, err)
		}
	}
	return nil
}

// Save persists the index to the cache directory. It is called once, after
// all lookups and commits for the run have finished.
func (s *Store) Save() error {
	s.mu.Lock()
	data, err := json.MarshalIndent(s.index, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshalling cache index: %w", err)
	}
	return os.WriteFile(filepath.Join(s.dir, indexFileName), data, 0o644)
}

// Len returns the number of recorded entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// copyFile copies a single file from src to dst, creating parent directories
// as needed.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
