package gallery

import "sort"

// BuildManifest assembles the final manifest from the site title and the
// processed collections. The full collection set must be present before
// calling; ordering requires global knowledge and the result is never
// emitted incrementally.
func BuildManifest(siteTitle string, collections []Collection) Manifest {
	sorted := make([]Collection, len(collections))
	copy(sorted, collections)
	SortCollections(sorted)
	return Manifest{
		Site:        Site{Title: siteTitle},
		Collections: sorted,
	}
}

// SortCollections sorts in place by the manifest's total order: ascending
// explicit order first (collections without an explicit order sort after
// all that have one), then descending year, then ascending title with a
// case-sensitive compare as the final tiebreak.
func SortCollections(collections []Collection) {
	sort.SliceStable(collections, func(i, j int) bool {
		a, b := collections[i], collections[j]

		switch {
		case a.Order != nil && b.Order == nil:
			return true
		case a.Order == nil && b.Order != nil:
			return false
		case a.Order != nil && b.Order != nil && *a.Order != *b.Order:
			return *a.Order < *b.Order
		}

		if a.Year != b.Year {
			return a.Year > b.Year
		}
		return a.Title < b.Title
	})
}
