package extractor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"kinorium-scraper/adapters"
	"kinorium-scraper/internal/types"
)

type requestState string

const (
	stateReceived         requestState = "received"
	stateStrategySelected requestState = "strategy_selected"
	stateFetching         requestState = "fetching"
	stateExtracting       requestState = "extracting"
	stateSucceeded        requestState = "succeeded"
	stateFailed           requestState = "failed"
)

// Strategies binds each request kind to the fetch strategy that serves it
type Strategies struct {
	Listing     types.Fetcher
	Detail      types.Fetcher
	Interactive types.Fetcher
}

// Orchestrator runs scrape requests end to end: strategy selection, the
// overall deadline, extraction, error classification and the handoff to the
// result store.
type Orchestrator struct {
	config     *types.Config
	logger     types.Logger
	genres     *adapters.GenreResolver
	adapter    *adapters.KinoriumAdapter
	strategies Strategies
	store      types.ResultStore
	now        func() time.Time

	nextID  uint64
	saves   sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	closers []func()
}

// NewOrchestrator creates a new orchestrator. store may be nil, in which case
// results are not persisted.
func NewOrchestrator(config *types.Config, logger types.Logger, genres *adapters.GenreResolver, adapter *adapters.KinoriumAdapter, strategies Strategies, store types.ResultStore) *Orchestrator {
	return &Orchestrator{
		config:     config,
		logger:     logger,
		genres:     genres,
		adapter:    adapter,
		strategies: strategies,
		store:      store,
		now:        time.Now,
	}
}

// OnClose registers fn to run after in-flight saves finish on Close
func (o *Orchestrator) OnClose(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closers = append(o.closers, fn)
}

// Genres returns the genre resolver in use
func (o *Orchestrator) Genres() *adapters.GenreResolver {
	return o.genres
}

// ScrapeGenre resolves name and lists the films of that genre
func (o *Orchestrator) ScrapeGenre(ctx context.Context, name string) (*types.GenreListing, error) {
	req := o.begin("genre", name)
	ctx, cancel := context.WithTimeout(ctx, o.config.RequestDeadline)
	defer cancel()

	ref, err := o.genres.Resolve(name)
	if err != nil {
		return nil, req.fail(err)
	}
	req.to(stateStrategySelected, "lightweight, category %s", ref.ID)

	listingURL := o.adapter.ListingURL(ref)
	req.to(stateFetching, "%s", listingURL)
	html, err := o.fetch(ctx, o.strategies.Listing, types.Target{URL: listingURL})
	if err != nil {
		return nil, req.fail(err)
	}

	req.to(stateExtracting, "%d bytes", len(html))
	films, err := o.adapter.ExtractSummaryList(html)
	if err != nil {
		return nil, req.fail(err)
	}
	if limit := o.config.ListingLimit; limit > 0 && len(films) > limit {
		films = films[:limit]
	}

	req.succeed("%d films", len(films))
	o.persist("genre listing "+ref.Name, func(ctx context.Context) error {
		return o.store.SaveListing(ctx, ref.Name, films, types.MethodLightweight)
	})

	return &types.GenreListing{
		Genre: ref.Name,
		Films: films,
		Count: len(films),
	}, nil
}

// ScrapeFilmDetail searches the catalog for name and extracts the film page
func (o *Orchestrator) ScrapeFilmDetail(ctx context.Context, name string) (*types.FilmDetailResult, error) {
	req := o.begin("film", name)
	ctx, cancel := context.WithTimeout(ctx, o.config.RequestDeadline)
	defer cancel()

	query := strings.TrimSpace(name)
	if query == "" {
		return nil, req.fail(fmt.Errorf("%w: empty film name", types.ErrNotFound))
	}
	req.to(stateStrategySelected, "rendered")

	req.to(stateFetching, "%s", query)
	html, err := o.fetch(ctx, o.strategies.Detail, types.Target{Query: query})
	if err != nil {
		return nil, req.fail(err)
	}

	req.to(stateExtracting, "%d bytes", len(html))
	film, err := o.adapter.ExtractDetail(html)
	if err != nil {
		return nil, req.fail(err)
	}

	req.succeed("%q %s", film.Title, film.URL)
	o.persist("film "+film.URL, func(ctx context.Context) error {
		_, err := o.store.Save(ctx, film, types.MethodRendered)
		return err
	})

	return &types.FilmDetailResult{
		Film:           film,
		ScrapedAt:      o.now().UTC(),
		ScrapingMethod: types.MethodRendered,
	}, nil
}

// OpenInteractive shows the film page for name in a visible browser window
func (o *Orchestrator) OpenInteractive(ctx context.Context, name string) (*types.InteractiveAck, error) {
	req := o.begin("interactive", name)
	ctx, cancel := context.WithTimeout(ctx, o.config.RequestDeadline)
	defer cancel()

	if o.strategies.Interactive == nil {
		return nil, req.fail(fmt.Errorf("%w: interactive browser is not configured", types.ErrEnvironmentUnsupported))
	}
	query := strings.TrimSpace(name)
	if query == "" {
		return nil, req.fail(fmt.Errorf("%w: empty film name", types.ErrNotFound))
	}
	req.to(stateStrategySelected, "interactive")

	req.to(stateFetching, "%s", query)
	html, err := o.fetch(ctx, o.strategies.Interactive, types.Target{Query: query})
	if err != nil {
		return nil, req.fail(err)
	}

	ack := &types.InteractiveAck{
		Status:    "success",
		FilmTitle: query,
	}
	req.to(stateExtracting, "%d bytes", len(html))
	// the window has already been shown; a page we cannot read is still acknowledged
	if film, err := o.adapter.ExtractDetail(html); err == nil {
		ack.FilmTitle = film.Title
		ack.URL = film.URL
	} else {
		o.logger.Warnf("Interactive page for %q could not be parsed: %v", query, err)
	}
	ack.Message = fmt.Sprintf("Browser window was opened for %q", ack.FilmTitle)

	req.succeed("%s", ack.URL)
	return ack, nil
}

// fetch runs the strategy in its own goroutine so the request deadline holds
// even when a strategy does not honour ctx.
func (o *Orchestrator) fetch(ctx context.Context, fetcher types.Fetcher, target types.Target) (string, error) {
	if fetcher == nil {
		return "", fmt.Errorf("%w: no fetch strategy configured", types.ErrUpstream)
	}

	type fetchResult struct {
		html string
		err  error
	}
	done := make(chan fetchResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: fmt.Errorf("%w: fetch strategy panicked: %v", types.ErrUpstream, r)}
			}
		}()
		html, err := fetcher.Fetch(ctx, target)
		done <- fetchResult{html: html, err: err}
	}()

	select {
	case res := <-done:
		return res.html, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("%w: request deadline: %v", types.ErrTimeout, ctx.Err())
	}
}

// persist saves in the background with its own timeout. Store failures are
// logged and never reach the caller.
func (o *Orchestrator) persist(what string, save func(ctx context.Context) error) {
	if o.store == nil {
		return
	}
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		o.logger.Warnf("Not persisting %s: orchestrator closed", what)
		return
	}
	o.saves.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.saves.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Errorf("Persisting %s panicked: %v", what, r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), o.config.StoreTimeout)
		defer cancel()
		if err := save(ctx); err != nil {
			o.logger.Errorf("Failed to persist %s: %v", what, err)
			return
		}
		o.logger.Debugf("Persisted %s", what)
	}()
}

// Close waits for in-flight saves, then releases registered resources
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	closers := o.closers
	o.closers = nil
	o.mu.Unlock()

	o.saves.Wait()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

type request struct {
	o       *Orchestrator
	id      uint64
	kind    string
	subject string
	start   time.Time
}

func (o *Orchestrator) begin(kind, subject string) *request {
	r := &request{
		o:       o,
		id:      atomic.AddUint64(&o.nextID, 1),
		kind:    kind,
		subject: subject,
		start:   time.Now(),
	}
	o.logger.Infof("Starting %s scrape #%d for %q", kind, r.id, subject)
	r.to(stateReceived, "")
	return r
}

func (r *request) to(state requestState, format string, args ...interface{}) {
	r.o.logger.Debugf("[%s #%d] %s %s", r.kind, r.id, state, fmt.Sprintf(format, args...))
}

func (r *request) succeed(format string, args ...interface{}) {
	r.to(stateSucceeded, format, args...)
	r.o.logger.Infof("%s scrape #%d completed in %v", r.kind, r.id, time.Since(r.start))
}

// fail classifies err and logs the terminal state
func (r *request) fail(err error) error {
	scrapeErr := types.Classify(err)
	r.to(stateFailed, "%s: %v", scrapeErr.Kind, err)
	if scrapeErr.Kind == types.KindUnknownGenre || scrapeErr.Kind == types.KindNotFound {
		r.o.logger.Infof("%s scrape #%d for %q: %v", r.kind, r.id, r.subject, scrapeErr)
	} else {
		r.o.logger.Warnf("%s scrape #%d for %q failed after %v: %v", r.kind, r.id, r.subject, time.Since(r.start), scrapeErr)
	}
	return scrapeErr
}
