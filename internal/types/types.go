package types

import (
	"context"
	"time"
)

// FilmSummary is one entry of a genre listing page
type FilmSummary struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// FilmDetail is the normalized record extracted from a film page.
// Optional fields are nil when the page does not carry them.
type FilmDetail struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Year        *int     `json:"year,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	Genres      []string `json:"genres"`
	Director    *string  `json:"director,omitempty"`
	Actors      []string `json:"actors"`
	Country     []string `json:"country"`
	Duration    *string  `json:"duration,omitempty"`
	Description *string  `json:"description,omitempty"`
	PosterURL   *string  `json:"poster_url,omitempty"`
}

// CategoryRef is the catalog's internal identifier for a genre
type CategoryRef struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// ScrapingMethod records which fetch strategy produced a persisted record
type ScrapingMethod string

const (
	MethodLightweight ScrapingMethod = "lightweight"
	MethodRendered    ScrapingMethod = "rendered"
)

// PersistedResult is a FilmDetail as stored by the result store
type PersistedResult struct {
	FilmDetail
	ID             int64          `json:"id"`
	Genre          string         `json:"genre,omitempty"`
	ScrapedAt      time.Time      `json:"scraped_at"`
	ScrapingMethod ScrapingMethod `json:"scraping_method"`
}

// GenreListing is the response to a genre scrape
type GenreListing struct {
	Genre string        `json:"genre"`
	Films []FilmSummary `json:"films"`
	Count int           `json:"count"`
}

// FilmDetailResult is the response to a film detail scrape
type FilmDetailResult struct {
	Film           FilmDetail     `json:"film"`
	ScrapedAt      time.Time      `json:"scraped_at"`
	ScrapingMethod ScrapingMethod `json:"scraping_method"`
}

// InteractiveAck acknowledges that a film page was shown in a visible browser
type InteractiveAck struct {
	Status    string `json:"status"`
	URL       string `json:"url,omitempty"`
	FilmTitle string `json:"film_title"`
	Message   string `json:"message"`
}

// Target addresses a page for a fetch strategy. Exactly one of URL and Query is set.
type Target struct {
	URL   string
	Query string
}

// Fetcher retrieves the HTML of a target page
type Fetcher interface {
	Fetch(ctx context.Context, target Target) (string, error)
}

// ResultStore persists successful scrapes
type ResultStore interface {
	Save(ctx context.Context, record FilmDetail, method ScrapingMethod) (*PersistedResult, error)
	SaveListing(ctx context.Context, genre string, films []FilmSummary, method ScrapingMethod) error
}

// Config holds the configuration for the scraper
type Config struct {
	AppName      string
	Host         string
	Port         string
	DatabasePath string

	BaseURL          string
	GenreListingPath string
	GenresFile       string

	RequestTimeout  time.Duration
	BrowserTimeout  time.Duration
	RequestDeadline time.Duration
	StoreTimeout    time.Duration
	ConnectRetries  int

	UseHeadlessBrowser bool
	BrowserPoolSize    int
	ChromePath         string
	UserAgent          string
	AcceptLanguage     string

	SearchReadySelector string
	DetailReadySelector string
	ListingLimit        int
	InteractiveLinger   time.Duration

	LogLevel string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		AppName:      "Kinorium Scraper API",
		Host:         "0.0.0.0",
		Port:         "8000",
		DatabasePath: "./scraper.db",

		BaseURL:          "https://ua.kinorium.com",
		GenreListingPath: "/genre/%s/",

		RequestTimeout:  30 * time.Second,
		BrowserTimeout:  60 * time.Second,
		RequestDeadline: 90 * time.Second,
		StoreTimeout:    10 * time.Second,
		ConnectRetries:  1,

		UseHeadlessBrowser: true,
		BrowserPoolSize:    2,
		UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		AcceptLanguage:     "uk-UA,uk;q=0.9,en;q=0.5",

		SearchReadySelector: "main, #content, .search-page",
		DetailReadySelector: "h1",
		ListingLimit:        50,
		InteractiveLinger:   30 * time.Second,

		LogLevel: "info",
	}
}

// Logger defines the logging interface
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}
