package gallery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// sidecarNames are the per-collection configuration files recognised inside
// a collection directory, in lookup order.
var sidecarNames = []string{"gallery.yaml", "gallery.yml", "gallery.toml"}

// Sidecar is the optional per-collection configuration. Every field has a
// documented default: Title falls back to the titleised slug, Cover to the
// first image alphabetically, and a nil Order sorts after all collections
// with an explicit order.
type Sidecar struct {
	Title string `yaml:"title" toml:"title"`
	Cover string `yaml:"cover" toml:"cover"`
	Order *int   `yaml:"order" toml:"order"`
}

// LoadSidecar reads the sidecar configuration from dir, if one exists.
// A missing sidecar returns a zero value and no error; a malformed one
// returns the zero value together with the parse error so the caller can
// warn and continue with defaults.
func LoadSidecar(dir string) (Sidecar, error) {
	for _, name := range sidecarNames {
		p := filepath.Join(dir, name)
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}

		var sc Sidecar
		if filepath.Ext(name) == ".toml" {
			if err := toml.Unmarshal(data, &sc); err != nil {
				return Sidecar{}, fmt.Errorf("parsing %s: %w", p, err)
			}
		} else {
			if err := yaml.Unmarshal(data, &sc); err != nil {
				return Sidecar{}, fmt.Errorf("parsing %s: %w", p, err)
			}
		}
		return sc, nil
	}
	return Sidecar{}, nil
}

// titleCaser capitalises each word; language-neutral casing keeps slugs
// deterministic across machines.
var titleCaser = cases.Title(language.Und)

// DefaultTitle derives a display title from a collection slug: hyphens and
// underscores become spaces and each word is capitalised.
func DefaultTitle(slug string) string {
	s := strings.NewReplacer("-", " ", "_", " ").Replace(slug)
	return titleCaser.String(s)
}
