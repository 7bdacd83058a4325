package extractor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"kinorium-scraper/internal/types"
	"kinorium-scraper/utils"
)

const leonDetailHTML = `<html><head>
  <link rel="canonical" href="https://ua.kinorium.com/92470/">
</head><body>
  <h1>Леон</h1>
  <time itemprop="datePublished">1994</time>
  <span itemprop="ratingValue">8.7</span>
  <a href="/genre/3/">трилер</a>
  <div itemprop="director"><span itemprop="name">Люк Бессон</span></div>
  <div itemprop="actor"><span itemprop="name">Жан Рено</span></div>
</body></html>`

const leonSearchHTML = `<html><body><main>
  <a href="/100/">Леон-кілер</a>
  <a href="/92470/">Леон</a>
  <a href="/200/">Леон і Ко</a>
</main></body></html>`

const emptySearchHTML = `<html><body><main><p>За запитом нічого не знайдено</p></main></body></html>`

// fakeSite serves canned pages to fake browser tabs, keyed by requested URL
type fakeSite struct {
	mu      sync.Mutex
	pages   map[string]utils.Page
	visited []string
	opened  int32
	closed  int32
	navErr  error
}

func newFakeSite() *fakeSite {
	return &fakeSite{pages: make(map[string]utils.Page)}
}

func (f *fakeSite) serve(requested string, page utils.Page) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[requested] = page
}

func (f *fakeSite) open(ctx context.Context) (utils.Session, error) {
	atomic.AddInt32(&f.opened, 1)
	return &fakeTab{site: f}, nil
}

func (f *fakeSite) history() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.visited...)
}

type fakeTab struct {
	site *fakeSite
}

func (t *fakeTab) Navigate(ctx context.Context, url, readySelector string) (*utils.Page, error) {
	t.site.mu.Lock()
	defer t.site.mu.Unlock()
	t.site.visited = append(t.site.visited, url)
	if t.site.navErr != nil {
		return nil, t.site.navErr
	}
	page, ok := t.site.pages[url]
	if !ok {
		return nil, fmt.Errorf("%w: no fixture for %s", types.ErrUpstream, url)
	}
	if page.URL == "" {
		page.URL = url
	}
	return &page, nil
}

func (t *fakeTab) Close() { atomic.AddInt32(&t.site.closed, 1) }

type fetcherFunc func(ctx context.Context, target types.Target) (string, error)

func (f fetcherFunc) Fetch(ctx context.Context, target types.Target) (string, error) {
	return f(ctx, target)
}

type fakeStore struct {
	mu       sync.Mutex
	saved    []types.FilmDetail
	methods  []types.ScrapingMethod
	listings map[string][]types.FilmSummary
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{listings: make(map[string][]types.FilmSummary)}
}

func (s *fakeStore) Save(ctx context.Context, record types.FilmDetail, method types.ScrapingMethod) (*types.PersistedResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, record)
	s.methods = append(s.methods, method)
	if s.err != nil {
		return nil, s.err
	}
	return &types.PersistedResult{FilmDetail: record, ID: int64(len(s.saved)), ScrapingMethod: method}, nil
}

func (s *fakeStore) SaveListing(ctx context.Context, genre string, films []types.FilmSummary, method types.ScrapingMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[genre] = films
	return s.err
}

func (s *fakeStore) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}
