package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/playmaker-hq/teamscout/internal/fetch"
	"github.com/playmaker-hq/teamscout/internal/scraper"
	"github.com/playmaker-hq/teamscout/internal/store"
)

// openStore builds the configured store backend and runs migrations.
func openStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	switch cfg.Store.Driver {
	case "sqlite", "":
		s, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		st = s
	case "postgres":
		s, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
		if err != nil {
			return nil, err
		}
		st = s
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// newScraperRegistry builds all scrapers over one shared fetch client.
func newScraperRegistry() *scraper.Registry {
	client := fetch.New(fetch.Options{
		UserAgent:    cfg.Scrape.UserAgent,
		Timeout:      cfg.Scrape.Timeout,
		MaxRetries:   cfg.Scrape.MaxRetries,
		RetryDelay:   cfg.Scrape.RetryDelay,
		RateLimiters: fetch.DefaultRateLimiters(),
	})

	r := scraper.NewRegistry()
	r.Register(scraper.NewMLBMiLBScraper(client))
	r.Register(scraper.NewNFLScraper(client))
	r.Register(scraper.NewWNBAScraper(client))
	return r
}
