// Package gallery models photo collections: discovery of the source tree,
// per-collection sidecar configuration, and the manifest handed to the
// rendering layer.
package gallery

// Photo is the externally visible shape of one processed source image.
// Field names are part of the manifest.json format.
type Photo struct {
	Src    string `json:"src"`    // path of the canonical (widest) variant
	Srcset string `json:"srcset"` // "<path> <width>w, ..." ascending by width
	Width  int    `json:"width"`  // canonical variant width
	Height int    `json:"height"` // canonical variant height
}

// Collection is one output gallery. Photos are in discovery order except
// that the cover photo is always at index 0.
type Collection struct {
	Slug   string  `json:"slug"`
	Title  string  `json:"title"`
	Year   int     `json:"year"`
	Order  *int    `json:"order,omitempty"` // explicit sort order, nil when unset
	Cover  Photo   `json:"cover"`
	Photos []Photo `json:"photos"`
}

// Site holds site-wide manifest fields.
type Site struct {
	Title string `json:"title"`
}

// Manifest is the single atomic output of a build run.
type Manifest struct {
	Site        Site         `json:"site"`
	Collections []Collection `json:"collections"`
}

// PromoteCover returns photos with cover moved to index 0. The relative
// order of all other photos is preserved. Photos are matched by Src; if
// cover is not found the slice is returned unchanged.
func PromoteCover(photos []Photo, cover Photo) []Photo {
	idx := -1
	for i, p := range photos {
		if p.Src == cover.Src {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return photos
	}
	promoted := make([]Photo, 0, len(photos))
	promoted = append(promoted, photos[idx])
	promoted = append(promoted, photos[:idx]...)
	promoted = append(promoted, photos[idx+1:]...)
	return promoted
}
