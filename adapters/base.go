package adapters

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"kinorium-scraper/internal/types"
)

// BaseAdapter provides the selector helpers shared by site adapters.
// Every helper is side-effect free: the same document always gives the same result.
type BaseAdapter struct {
	config *types.Config
	logger types.Logger
	base   *url.URL
}

// NewBaseAdapter creates a new base adapter for config.BaseURL
func NewBaseAdapter(config *types.Config, logger types.Logger) (*BaseAdapter, error) {
	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", config.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", config.BaseURL)
	}
	return &BaseAdapter{
		config: config,
		logger: logger,
		base:   base,
	}, nil
}

// ParseHTML parses HTML content into a goquery document
func (b *BaseAdapter) ParseHTML(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// ExtractText returns the trimmed text of the first element matching one of
// the selectors, trying them in order.
func (b *BaseAdapter) ExtractText(doc *goquery.Document, selectors ...string) (string, bool) {
	for _, selector := range selectors {
		element := doc.Find(selector).First()
		if element.Length() == 0 {
			continue
		}
		if text := collapseSpace(element.Text()); text != "" {
			return text, true
		}
	}
	return "", false
}

// ExtractAttribute returns the first non-empty value of attribute on elements
// matching one of the selectors.
func (b *BaseAdapter) ExtractAttribute(doc *goquery.Document, attribute string, selectors ...string) (string, bool) {
	for _, selector := range selectors {
		var value string
		doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if v, ok := s.Attr(attribute); ok && strings.TrimSpace(v) != "" {
				value = strings.TrimSpace(v)
				return false
			}
			return true
		})
		if value != "" {
			return value, true
		}
	}
	return "", false
}

// ExtractTexts collects up to limit distinct non-empty texts of elements matching selector
func (b *BaseAdapter) ExtractTexts(doc *goquery.Document, selector string, limit int) []string {
	values := []string{}
	seen := make(map[string]bool)
	doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := collapseSpace(s.Text())
		if text == "" || seen[text] {
			return true
		}
		seen[text] = true
		values = append(values, text)
		return limit <= 0 || len(values) < limit
	})
	return values
}

// ResolveURL makes href absolute against the base URL.
// Protocol-relative links get the https scheme.
func (b *BaseAdapter) ResolveURL(href string) (*url.URL, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil, fmt.Errorf("empty URL")
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, err
	}
	return b.base.ResolveReference(ref), nil
}

// BaseURL returns the site root without a trailing slash
func (b *BaseAdapter) BaseURL() string {
	return strings.TrimRight(b.base.String(), "/")
}

// Config returns the config field of the BaseAdapter
func (b *BaseAdapter) Config() *types.Config {
	return b.config
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
