package adapters

import (
	"fmt"
	"sort"
	"strings"

	"kinorium-scraper/internal/types"
)

// DefaultGenres maps the catalog's Ukrainian genre names to its category IDs.
// The site changes these without notice; keep the table in sync by hand.
var DefaultGenres = map[string]string{
	"фантастика":     "6",
	"комедія":        "1",
	"драма":          "2",
	"трилер":         "3",
	"бойовик":        "4",
	"жахи":           "5",
	"мелодрама":      "7",
	"детектив":       "8",
	"пригоди":        "9",
	"фентезі":        "10",
	"мультфільм":     "11",
	"документальний": "12",
	"біографія":      "13",
	"історичний":     "14",
	"військовий":     "15",
	"вестерн":        "16",
	"кримінал":       "17",
	"мюзикл":         "18",
	"сімейний":       "19",
	"спорт":          "20",
}

// GenreResolver is a read-only genre name to category lookup.
// It is safe for concurrent use because it is never mutated after construction.
type GenreResolver struct {
	byName map[string]string
	byID   map[string]string
	names  []string
}

// NewGenreResolver copies table into a new resolver
func NewGenreResolver(table map[string]string) (*GenreResolver, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("genre table is empty")
	}
	byName := make(map[string]string, len(table))
	byID := make(map[string]string, len(table))
	names := make([]string, 0, len(table))
	for name, id := range table {
		id = strings.TrimSpace(id)
		if name == "" || id == "" {
			return nil, fmt.Errorf("genre table has an empty entry (%q: %q)", name, id)
		}
		if other, ok := byID[id]; ok {
			return nil, fmt.Errorf("genres %q and %q share category %q", other, name, id)
		}
		byName[name] = id
		byID[id] = name
		names = append(names, name)
	}
	sort.Strings(names)
	return &GenreResolver{byName: byName, byID: byID, names: names}, nil
}

// Resolve looks name up exactly. Surrounding whitespace is ignored but case
// and diacritics are significant.
func (g *GenreResolver) Resolve(name string) (types.CategoryRef, error) {
	name = strings.TrimSpace(name)
	id, ok := g.byName[name]
	if !ok {
		return types.CategoryRef{}, fmt.Errorf("%w: %q", types.ErrUnknownGenre, name)
	}
	return types.CategoryRef{Name: name, ID: id}, nil
}

// Name returns the genre name for a category ID
func (g *GenreResolver) Name(id string) (string, bool) {
	name, ok := g.byID[id]
	return name, ok
}

// Names returns the vocabulary in sorted order
func (g *GenreResolver) Names() []string {
	return append([]string(nil), g.names...)
}
