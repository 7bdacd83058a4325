package adapters

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"kinorium-scraper/internal/types"
)

const (
	maxGenres    = 5
	maxActors    = 10
	maxCountries = 3
)

var (
	filmPathRe = regexp.MustCompile(`^/(\d+)(?:/|$)`)
	yearRe     = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	numberRe   = regexp.MustCompile(`-?\d+(?:\.\d+)?(?:[eE][-+]?\d+)?`)

	// ranking badges the listing renders inside film links
	titleBadges = []string{"топ-500", "топ-250"}
)

// KinoriumAdapter maps kinorium.com pages to film records
type KinoriumAdapter struct {
	*BaseAdapter
}

// NewKinoriumAdapter creates a new Kinorium adapter
func NewKinoriumAdapter(config *types.Config, logger types.Logger) (*KinoriumAdapter, error) {
	base, err := NewBaseAdapter(config, logger)
	if err != nil {
		return nil, err
	}
	return &KinoriumAdapter{BaseAdapter: base}, nil
}

// GetSiteName returns the catalog host
func (k *KinoriumAdapter) GetSiteName() string {
	return k.base.Host
}

// ListingURL returns the genre listing page of a category
func (k *KinoriumAdapter) ListingURL(ref types.CategoryRef) string {
	return k.BaseURL() + fmt.Sprintf(k.config.GenreListingPath, url.PathEscape(ref.ID))
}

// SearchURL returns the site search page for a film name
func (k *KinoriumAdapter) SearchURL(query string) string {
	return k.BaseURL() + "/search/?q=" + url.QueryEscape(strings.TrimSpace(query))
}

// CanonicalFilmURL returns {base}/{id}/ for a link to a film page.
// Links to other hosts are rejected unless anyHost is set.
func (k *KinoriumAdapter) CanonicalFilmURL(href string, anyHost bool) (string, bool) {
	u, err := k.ResolveURL(href)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if !anyHost && !strings.EqualFold(u.Host, k.base.Host) {
		return "", false
	}
	m := filmPathRe.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	return k.BaseURL() + "/" + m[1] + "/", true
}

// IsFilmURL reports whether u points at a film detail page of this site
func (k *KinoriumAdapter) IsFilmURL(u string) bool {
	_, ok := k.CanonicalFilmURL(u, false)
	return ok
}

// ExtractSummaryList returns the films linked from a listing or search page,
// in page order and without duplicates.
func (k *KinoriumAdapter) ExtractSummaryList(html string) ([]types.FilmSummary, error) {
	doc, err := k.ParseHTML(html)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrParse, err)
	}

	films := []types.FilmSummary{}
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		filmURL, ok := k.CanonicalFilmURL(href, false)
		if !ok || seen[filmURL] {
			return
		}

		title := cleanTitle(s.Text())
		if utf8.RuneCountInString(title) <= 2 {
			return
		}

		seen[filmURL] = true
		films = append(films, types.FilmSummary{Title: title, URL: filmURL})
	})

	k.logger.Debugf("Found %d film links", len(films))
	return films, nil
}

// ExtractDetail builds a FilmDetail from a film page. Every field is read
// independently; only a missing title or canonical URL is an error.
func (k *KinoriumAdapter) ExtractDetail(html string) (types.FilmDetail, error) {
	doc, err := k.ParseHTML(html)
	if err != nil {
		return types.FilmDetail{}, fmt.Errorf("%w: %v", types.ErrParse, err)
	}

	title, ok := k.extractTitle(doc)
	if !ok {
		return types.FilmDetail{}, fmt.Errorf("%w: film title not found on page", types.ErrParse)
	}
	canonical, ok := k.extractCanonicalURL(doc)
	if !ok {
		return types.FilmDetail{}, fmt.Errorf("%w: canonical film URL not found on page", types.ErrParse)
	}

	director := k.extractDirector(doc)
	return types.FilmDetail{
		Title:       title,
		URL:         canonical,
		Year:        k.extractYear(doc),
		Rating:      k.extractRating(doc),
		Genres:      k.ExtractTexts(doc, `a[href*="/genre/"]`, maxGenres),
		Director:    director,
		Actors:      k.extractActors(doc, director),
		Country:     k.ExtractTexts(doc, `a[href*="/country/"]`, maxCountries),
		Duration:    optional(k.ExtractText(doc, `[itemprop="duration"]`, ".duration")),
		Description: optional(k.ExtractText(doc, `[itemprop="description"]`, ".film_description", ".description")),
		PosterURL:   k.extractPoster(doc),
	}, nil
}

func (k *KinoriumAdapter) extractTitle(doc *goquery.Document) (string, bool) {
	return k.ExtractText(doc, "h1", ".film_title")
}

func (k *KinoriumAdapter) extractCanonicalURL(doc *goquery.Document) (string, bool) {
	candidates := []struct{ selector, attr string }{
		{`link[rel="canonical"]`, "href"},
		{`meta[property="og:url"]`, "content"},
	}
	for _, c := range candidates {
		href, ok := k.ExtractAttribute(doc, c.attr, c.selector)
		if !ok {
			continue
		}
		if canonical, ok := k.CanonicalFilmURL(href, true); ok {
			return canonical, true
		}
	}
	return "", false
}

func (k *KinoriumAdapter) extractYear(doc *goquery.Document) *int {
	var candidates []string
	if v, ok := k.ExtractAttribute(doc, "content", `[itemprop="datePublished"]`); ok {
		candidates = append(candidates, v)
	}
	if v, ok := k.ExtractText(doc, `[itemprop="datePublished"]`, "time"); ok {
		candidates = append(candidates, v)
	}
	for _, c := range candidates {
		if year, ok := parseYear(c); ok {
			return &year
		}
	}
	return nil
}

func (k *KinoriumAdapter) extractRating(doc *goquery.Document) *float64 {
	var candidates []string
	if v, ok := k.ExtractAttribute(doc, "content", `[itemprop="ratingValue"]`); ok {
		candidates = append(candidates, v)
	}
	if v, ok := k.ExtractText(doc, `[itemprop="ratingValue"]`, ".rating_value"); ok {
		candidates = append(candidates, v)
	}
	// the first candidate carrying a number decides
	for _, c := range candidates {
		if rating, found := parseRating(c); found {
			return rating
		}
	}
	return nil
}

func (k *KinoriumAdapter) extractDirector(doc *goquery.Document) *string {
	return optional(k.ExtractText(doc, `[itemprop="director"] [itemprop="name"]`))
}

func (k *KinoriumAdapter) extractActors(doc *goquery.Document, director *string) []string {
	actors := k.ExtractTexts(doc, `[itemprop="actor"] [itemprop="name"]`, maxActors)
	if len(actors) > 0 {
		return actors
	}

	people := k.ExtractTexts(doc, `a[href*="/name/"]`, 0)
	actors = []string{}
	for _, name := range people {
		if director != nil && name == *director {
			continue
		}
		actors = append(actors, name)
		if len(actors) == maxActors {
			break
		}
	}
	return actors
}

func (k *KinoriumAdapter) extractPoster(doc *goquery.Document) *string {
	src, ok := k.ExtractAttribute(doc, "src", `[itemprop="image"]`)
	if !ok {
		src, ok = k.ExtractAttribute(doc, "content", `[itemprop="image"]`, `meta[property="og:image"]`)
	}
	if !ok {
		return nil
	}
	u, err := k.ResolveURL(src)
	if err != nil {
		return nil
	}
	poster := u.String()
	return &poster
}

// SelectBestMatch picks the search result for query: an exact case-insensitive
// title match if there is one, else the first result.
func SelectBestMatch(results []types.FilmSummary, query string) (types.FilmSummary, bool) {
	if len(results) == 0 {
		return types.FilmSummary{}, false
	}
	query = collapseSpace(query)
	for _, r := range results {
		if strings.EqualFold(r.Title, query) {
			return r, true
		}
	}
	return results[0], true
}

func cleanTitle(text string) string {
	title := text
	for _, badge := range titleBadges {
		title = strings.ReplaceAll(title, badge, "")
	}
	return collapseSpace(title)
}

func parseYear(text string) (int, bool) {
	m := yearRe.FindString(text)
	if m == "" {
		return 0, false
	}
	year, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return year, true
}

// parseRating reports found=true when text carries a number at all; the
// returned pointer is nil if that number is outside [0,10].
func parseRating(text string) (rating *float64, found bool) {
	text = strings.NewReplacer(",", ".", "\u2212", "-").Replace(text)
	m := numberRe.FindString(text)
	if m == "" {
		return nil, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil, false
	}
	if v < 0 || v > 10 {
		return nil, true
	}
	return &v, true
}

func optional(value string, ok bool) *string {
	if !ok {
		return nil
	}
	return &value
}
