package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kinorium-scraper/adapters"
	"kinorium-scraper/internal/types"
	"kinorium-scraper/utils"
)

// SessionRunner runs fn with a checked-out browser session.
// *utils.SessionPool is the production implementation.
type SessionRunner interface {
	With(ctx context.Context, fn func(utils.Session) error) error
}

// LightweightStrategy fetches server-rendered pages with a plain HTTP GET
type LightweightStrategy struct {
	client *utils.HTTPClient
	logger types.Logger
}

// NewLightweightStrategy creates a lightweight strategy over client
func NewLightweightStrategy(client *utils.HTTPClient, logger types.Logger) *LightweightStrategy {
	return &LightweightStrategy{client: client, logger: logger}
}

// Fetch returns the raw HTML at target.URL. Scripts are never executed.
func (l *LightweightStrategy) Fetch(ctx context.Context, target types.Target) (string, error) {
	if target.URL == "" {
		return "", fmt.Errorf("%w: lightweight fetch needs a URL", types.ErrUpstream)
	}
	l.logger.Debugf("Lightweight fetch: %s", target.URL)
	body, err := l.client.Get(ctx, target.URL)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// RenderedStrategy drives a pooled browser tab: it searches the catalog when
// given a query, follows the best search result and returns the settled HTML
// of the film page.
type RenderedStrategy struct {
	pool    SessionRunner
	adapter *adapters.KinoriumAdapter
	config  *types.Config
	logger  types.Logger

	visible          bool
	displayAvailable bool
}

// NewRenderedStrategy creates a headless rendered strategy
func NewRenderedStrategy(pool SessionRunner, adapter *adapters.KinoriumAdapter, config *types.Config, logger types.Logger) *RenderedStrategy {
	return &RenderedStrategy{
		pool:    pool,
		adapter: adapter,
		config:  config,
		logger:  logger,
	}
}

// NewInteractiveStrategy creates a rendered strategy over a visible browser pool.
// displayAvailable is the environment's answer to whether a window can be shown;
// without one every Fetch fails with ErrEnvironmentUnsupported.
func NewInteractiveStrategy(pool SessionRunner, adapter *adapters.KinoriumAdapter, config *types.Config, logger types.Logger, displayAvailable bool) *RenderedStrategy {
	r := NewRenderedStrategy(pool, adapter, config, logger)
	r.visible = true
	r.displayAvailable = displayAvailable
	return r
}

// Fetch returns the HTML of the film page for target. A target with a URL is
// opened directly; a query goes through the site search first.
func (r *RenderedStrategy) Fetch(ctx context.Context, target types.Target) (string, error) {
	if r.visible && !r.displayAvailable {
		return "", fmt.Errorf("%w: no display surface for a visible browser", types.ErrEnvironmentUnsupported)
	}
	if target.URL == "" && strings.TrimSpace(target.Query) == "" {
		return "", fmt.Errorf("%w: empty search query", types.ErrNotFound)
	}

	var html string
	err := r.pool.With(ctx, func(s utils.Session) error {
		page, err := r.open(ctx, s, target)
		if err != nil {
			return err
		}
		html = page.HTML
		if r.visible {
			r.linger(ctx, page.URL)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return html, nil
}

func (r *RenderedStrategy) open(ctx context.Context, s utils.Session, target types.Target) (*utils.Page, error) {
	if target.URL != "" {
		return s.Navigate(ctx, target.URL, r.config.DetailReadySelector)
	}

	searchURL := r.adapter.SearchURL(target.Query)
	r.logger.Debugf("Searching for %q: %s", target.Query, searchURL)
	page, err := s.Navigate(ctx, searchURL, r.config.SearchReadySelector)
	if err != nil {
		return nil, err
	}

	// the site jumps straight to the film page on a unique hit
	if r.adapter.IsFilmURL(page.URL) {
		return page, nil
	}

	results, err := r.adapter.ExtractSummaryList(page.HTML)
	if err != nil {
		return nil, err
	}
	best, ok := adapters.SelectBestMatch(results, target.Query)
	if !ok {
		return nil, fmt.Errorf("%w: no search results for %q", types.ErrNotFound, target.Query)
	}
	r.logger.Debugf("Picked %q (%s) out of %d results", best.Title, best.URL, len(results))

	return s.Navigate(ctx, best.URL, r.config.DetailReadySelector)
}

// linger keeps the visible window on the page until InteractiveLinger
// elapses or the request ends.
func (r *RenderedStrategy) linger(ctx context.Context, pageURL string) {
	if r.config.InteractiveLinger <= 0 {
		return
	}
	r.logger.Infof("Showing %s for %v", pageURL, r.config.InteractiveLinger)
	timer := time.NewTimer(r.config.InteractiveLinger)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		r.logger.Debugf("Interactive window closed early: %v", ctx.Err())
	}
}
