package extractor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kinorium-scraper/adapters"
	"kinorium-scraper/internal/types"
	"kinorium-scraper/utils"
)

const comedyListingHTML = `<html><body><div class="filmList">
  <a href="/501/">Кін-дза-дза! топ-250</a>
  <a href="/501/">Кін-дза-дза!</a>
  <a href="/502/">Діамантова рука</a>
  <a href="/503/">Іван Васильович змінює професію топ-500</a>
  <a href="/genre/1/">комедія</a>
</div></body></html>`

func newTestOrchestrator(t *testing.T, config *types.Config, strategies Strategies, store types.ResultStore) *Orchestrator {
	t.Helper()
	logger := logrus.New()
	genres, err := adapters.NewGenreResolver(adapters.DefaultGenres)
	require.NoError(t, err)
	adapter, err := adapters.NewKinoriumAdapter(config, logger)
	require.NoError(t, err)
	return NewOrchestrator(config, logger, genres, adapter, strategies, store)
}

func requireKind(t *testing.T, err error, kind types.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	var scrapeErr *types.ScrapeError
	require.True(t, errors.As(err, &scrapeErr), "error %v is not classified", err)
	assert.Equal(t, kind, scrapeErr.Kind)
}

func TestScrapeGenre_ListsFilmsFromCategoryPage(t *testing.T) {
	var requested atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested.Store(r.URL.Path)
		w.Write([]byte(comedyListingHTML))
	}))
	defer server.Close()

	config := types.DefaultConfig()
	config.BaseURL = server.URL
	logger := logrus.New()
	client := utils.NewHTTPClient(config, logger)
	store := newFakeStore()
	o := newTestOrchestrator(t, config, Strategies{Listing: NewLightweightStrategy(client, logger)}, store)
	o.OnClose(client.Close)

	listing, err := o.ScrapeGenre(context.Background(), "комедія")

	require.NoError(t, err)
	assert.Equal(t, "/genre/1/", requested.Load())
	assert.Equal(t, "комедія", listing.Genre)
	assert.Equal(t, 3, listing.Count)
	require.Len(t, listing.Films, 3)

	filmURL := regexp.MustCompile(`^` + regexp.QuoteMeta(server.URL) + `/\d+/$`)
	for _, film := range listing.Films {
		assert.NotEmpty(t, film.Title)
		assert.Regexp(t, filmURL, film.URL)
	}
	assert.Equal(t, "Іван Васильович змінює професію", listing.Films[2].Title)

	o.Close()
	assert.Len(t, store.listings["комедія"], 3)
}

func TestScrapeGenre_ListingLimit(t *testing.T) {
	config := types.DefaultConfig()
	config.ListingLimit = 2
	listing := fetcherFunc(func(ctx context.Context, target types.Target) (string, error) {
		return comedyListingHTML, nil
	})
	o := newTestOrchestrator(t, config, Strategies{Listing: listing}, nil)
	defer o.Close()

	result, err := o.ScrapeGenre(context.Background(), "комедія")

	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Len(t, result.Films, 2)
}

func TestScrapeGenre_UnknownGenreDoesNotFetch(t *testing.T) {
	var calls int32
	listing := fetcherFunc(func(ctx context.Context, target types.Target) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", nil
	})
	o := newTestOrchestrator(t, types.DefaultConfig(), Strategies{Listing: listing}, nil)
	defer o.Close()

	_, err := o.ScrapeGenre(context.Background(), "comedy")

	requireKind(t, err, types.KindUnknownGenre)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestScrapeGenre_UpstreamStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	config := types.DefaultConfig()
	config.BaseURL = server.URL
	logger := logrus.New()
	client := utils.NewHTTPClient(config, logger)
	defer client.Close()
	o := newTestOrchestrator(t, config, Strategies{Listing: NewLightweightStrategy(client, logger)}, nil)
	defer o.Close()

	_, err := o.ScrapeGenre(context.Background(), "драма")

	requireKind(t, err, types.KindUpstreamError)
}

func TestScrapeFilmDetail_RenderedSearch(t *testing.T) {
	config := types.DefaultConfig()
	logger := logrus.New()
	adapter, err := adapters.NewKinoriumAdapter(config, logger)
	require.NoError(t, err)

	site := newFakeSite()
	site.serve(adapter.SearchURL("Леон"), utils.Page{HTML: leonSearchHTML})
	site.serve("https://ua.kinorium.com/92470/", utils.Page{HTML: leonDetailHTML})
	pool := utils.NewSessionPool(2, site.open, logger)

	store := newFakeStore()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	o := newTestOrchestrator(t, config, Strategies{Detail: NewRenderedStrategy(pool, adapter, config, logger)}, store)
	o.now = func() time.Time { return fixed }
	o.OnClose(pool.Close)

	result, err := o.ScrapeFilmDetail(context.Background(), "Леон")

	require.NoError(t, err)
	assert.Equal(t, "Леон", result.Film.Title)
	assert.Equal(t, "https://ua.kinorium.com/92470/", result.Film.URL)
	require.NotNil(t, result.Film.Year)
	assert.Equal(t, 1994, *result.Film.Year)
	require.NotNil(t, result.Film.Rating)
	assert.GreaterOrEqual(t, *result.Film.Rating, 0.0)
	assert.LessOrEqual(t, *result.Film.Rating, 10.0)
	assert.Equal(t, types.MethodRendered, result.ScrapingMethod)
	assert.Equal(t, fixed, result.ScrapedAt)

	o.Close()
	assert.Equal(t, 1, store.savedCount())
	assert.Equal(t, []types.ScrapingMethod{types.MethodRendered}, store.methods)
	assert.Equal(t, 2, pool.Stats().Available)
}

func TestScrapeFilmDetail_NonExistentFilmIsNotFound(t *testing.T) {
	config := types.DefaultConfig()
	logger := logrus.New()
	adapter, err := adapters.NewKinoriumAdapter(config, logger)
	require.NoError(t, err)

	site := newFakeSite()
	site.serve(adapter.SearchURL("Ззззшшшщщщ 3000"), utils.Page{HTML: emptySearchHTML})
	pool := utils.NewSessionPool(1, site.open, logger)
	defer pool.Close()

	store := newFakeStore()
	o := newTestOrchestrator(t, config, Strategies{Detail: NewRenderedStrategy(pool, adapter, config, logger)}, store)

	result, err := o.ScrapeFilmDetail(context.Background(), "Ззззшшшщщщ 3000")

	assert.Nil(t, result)
	requireKind(t, err, types.KindNotFound)
	o.Close()
	assert.Equal(t, 0, store.savedCount())
}

func TestScrapeFilmDetail_ParseErrorIsTerminal(t *testing.T) {
	var calls int32
	detail := fetcherFunc(func(ctx context.Context, target types.Target) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "<html><body><p>layout changed</p></body></html>", nil
	})
	o := newTestOrchestrator(t, types.DefaultConfig(), Strategies{Detail: detail}, nil)
	defer o.Close()

	_, err := o.ScrapeFilmDetail(context.Background(), "Леон")

	requireKind(t, err, types.KindParseError)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestScrapeFilmDetail_DeadlineBeatsHangingStrategy(t *testing.T) {
	config := types.DefaultConfig()
	config.RequestDeadline = 30 * time.Millisecond
	release := make(chan struct{})
	defer close(release)
	// ignores ctx on purpose
	detail := fetcherFunc(func(ctx context.Context, target types.Target) (string, error) {
		<-release
		return leonDetailHTML, nil
	})
	o := newTestOrchestrator(t, config, Strategies{Detail: detail}, nil)
	defer o.Close()

	start := time.Now()
	result, err := o.ScrapeFilmDetail(context.Background(), "Леон")

	assert.Nil(t, result)
	requireKind(t, err, types.KindTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestScrapeFilmDetail_DeadlineWhileWaitingForSession(t *testing.T) {
	config := types.DefaultConfig()
	config.RequestDeadline = 30 * time.Millisecond
	logger := logrus.New()
	adapter, err := adapters.NewKinoriumAdapter(config, logger)
	require.NoError(t, err)

	site := newFakeSite()
	pool := utils.NewSessionPool(1, site.open, logger)
	defer pool.Close()

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = pool.With(context.Background(), func(s utils.Session) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	o := newTestOrchestrator(t, config, Strategies{Detail: NewRenderedStrategy(pool, adapter, config, logger)}, nil)
	defer o.Close()

	_, err = o.ScrapeFilmDetail(context.Background(), "Леон")

	requireKind(t, err, types.KindTimeout)
}

func TestScrapeFilmDetail_StoreFailureDoesNotAffectResponse(t *testing.T) {
	detail := fetcherFunc(func(ctx context.Context, target types.Target) (string, error) {
		return leonDetailHTML, nil
	})
	store := newFakeStore()
	store.err = errors.New("database is locked")
	o := newTestOrchestrator(t, types.DefaultConfig(), Strategies{Detail: detail}, store)

	result, err := o.ScrapeFilmDetail(context.Background(), "Леон")

	require.NoError(t, err)
	assert.Equal(t, "Леон", result.Film.Title)
	o.Close()
	assert.Equal(t, 1, store.savedCount())
}

func TestScrapeFilmDetail_StrategyPanicIsClassified(t *testing.T) {
	detail := fetcherFunc(func(ctx context.Context, target types.Target) (string, error) {
		panic("browser crashed")
	})
	o := newTestOrchestrator(t, types.DefaultConfig(), Strategies{Detail: detail}, nil)
	defer o.Close()

	_, err := o.ScrapeFilmDetail(context.Background(), "Леон")

	requireKind(t, err, types.KindUpstreamError)
}

func TestScrapeFilmDetail_EmptyName(t *testing.T) {
	o := newTestOrchestrator(t, types.DefaultConfig(), Strategies{}, nil)
	defer o.Close()

	_, err := o.ScrapeFilmDetail(context.Background(), "   ")

	requireKind(t, err, types.KindNotFound)
}

func TestOpenInteractive_NoDisplayMakesNoNetworkCall(t *testing.T) {
	config := types.DefaultConfig()
	logger := logrus.New()
	adapter, err := adapters.NewKinoriumAdapter(config, logger)
	require.NoError(t, err)

	site := newFakeSite()
	pool := utils.NewSessionPool(1, site.open, logger)
	defer pool.Close()
	interactive := NewInteractiveStrategy(pool, adapter, config, logger, false)
	o := newTestOrchestrator(t, config, Strategies{Interactive: interactive}, nil)
	defer o.Close()

	ack, err := o.OpenInteractive(context.Background(), "Леон")

	assert.Nil(t, ack)
	requireKind(t, err, types.KindEnvironmentUnsupported)
	assert.Equal(t, int32(0), atomic.LoadInt32(&site.opened))
	assert.Empty(t, site.history())
}

func TestOpenInteractive_NotConfigured(t *testing.T) {
	o := newTestOrchestrator(t, types.DefaultConfig(), Strategies{}, nil)
	defer o.Close()

	_, err := o.OpenInteractive(context.Background(), "Леон")

	requireKind(t, err, types.KindEnvironmentUnsupported)
}

func TestOpenInteractive_Acknowledges(t *testing.T) {
	config := types.DefaultConfig()
	config.InteractiveLinger = time.Millisecond
	logger := logrus.New()
	adapter, err := adapters.NewKinoriumAdapter(config, logger)
	require.NoError(t, err)

	site := newFakeSite()
	site.serve(adapter.SearchURL("Леон"), utils.Page{URL: "https://ua.kinorium.com/92470/", HTML: leonDetailHTML})
	pool := utils.NewSessionPool(1, site.open, logger)
	defer pool.Close()
	store := newFakeStore()
	o := newTestOrchestrator(t, config, Strategies{Interactive: NewInteractiveStrategy(pool, adapter, config, logger, true)}, store)

	ack, err := o.OpenInteractive(context.Background(), "Леон")

	require.NoError(t, err)
	assert.Equal(t, "success", ack.Status)
	assert.Equal(t, "Леон", ack.FilmTitle)
	assert.Equal(t, "https://ua.kinorium.com/92470/", ack.URL)
	assert.Contains(t, ack.Message, "Леон")
	o.Close()
	assert.Equal(t, 0, store.savedCount())
}

func TestOrchestrator_CloseRunsClosersInReverse(t *testing.T) {
	o := newTestOrchestrator(t, types.DefaultConfig(), Strategies{}, nil)
	var order []string
	o.OnClose(func() { order = append(order, "pool") })
	o.OnClose(func() { order = append(order, "browser") })

	o.Close()
	o.Close()

	assert.Equal(t, []string{"browser", "pool"}, order)
}
