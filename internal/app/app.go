package app

import (
	"fmt"

	"kinorium-scraper/adapters"
	"kinorium-scraper/extractor"
	"kinorium-scraper/internal/config"
	"kinorium-scraper/internal/store"
	"kinorium-scraper/internal/types"
	"kinorium-scraper/utils"
)

// Options selects the optional parts of the runtime
type Options struct {
	// Persist opens the result store and saves successful scrapes
	Persist bool
	// DisplayAvailable overrides display detection for the interactive browser
	DisplayAvailable *bool
}

// App is the wired scraper: strategies, browsers, orchestrator and store
type App struct {
	Config       *types.Config
	Genres       *adapters.GenreResolver
	Adapter      *adapters.KinoriumAdapter
	Orchestrator *extractor.Orchestrator
	Store        *store.SQLiteStore
}

// New wires every component from cfg. Browsers start lazily on first use.
func New(cfg *types.Config, logger types.Logger, opts Options) (*App, error) {
	genres, err := config.LoadGenres(cfg.GenresFile)
	if err != nil {
		return nil, err
	}
	adapter, err := adapters.NewKinoriumAdapter(cfg, logger)
	if err != nil {
		return nil, err
	}

	var resultStore types.ResultStore
	var sqlite *store.SQLiteStore
	if opts.Persist {
		sqlite, err = store.NewSQLiteStore(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("open result store %s: %w", cfg.DatabasePath, err)
		}
		resultStore = sqlite
	}

	displayAvailable := utils.DisplayAvailable()
	if opts.DisplayAvailable != nil {
		displayAvailable = *opts.DisplayAvailable
	}

	client := utils.NewHTTPClient(cfg, logger)
	browser := utils.NewBrowser(cfg, logger, cfg.UseHeadlessBrowser)
	pool := browser.NewSessionPool()
	visible := utils.NewBrowser(cfg, logger, false)
	visiblePool := utils.NewSessionPool(1, visible.NewSession, logger)

	strategies := extractor.Strategies{
		Listing:     extractor.NewLightweightStrategy(client, logger),
		Detail:      extractor.NewRenderedStrategy(pool, adapter, cfg, logger),
		Interactive: extractor.NewInteractiveStrategy(visiblePool, adapter, cfg, logger, displayAvailable),
	}
	orchestrator := extractor.NewOrchestrator(cfg, logger, genres, adapter, strategies, resultStore)
	orchestrator.OnClose(client.Close)
	orchestrator.OnClose(browser.Close)
	orchestrator.OnClose(pool.Close)
	orchestrator.OnClose(visible.Close)
	orchestrator.OnClose(visiblePool.Close)
	if sqlite != nil {
		orchestrator.OnClose(func() {
			if err := sqlite.Close(); err != nil {
				logger.Errorf("Failed to close result store: %v", err)
			}
		})
	}

	logger.Debugf("Scraper wired (headless=%v, pool=%d, display=%v, persist=%v)",
		cfg.UseHeadlessBrowser, cfg.BrowserPoolSize, displayAvailable, opts.Persist)

	return &App{
		Config:       cfg,
		Genres:       genres,
		Adapter:      adapter,
		Orchestrator: orchestrator,
		Store:        sqlite,
	}, nil
}

// Close flushes pending saves and releases browsers, connections and the store
func (a *App) Close() {
	a.Orchestrator.Close()
}
