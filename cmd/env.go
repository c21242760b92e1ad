package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sustain-group/esg-cli/internal/store"
	"github.com/sustain-group/esg-cli/internal/webcontent"
)

// initStore opens the configured backend and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.Path)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initWebExtractor builds the website fetcher with the configured timeout.
func initWebExtractor() *webcontent.Extractor {
	timeout := time.Duration(cfg.Web.TimeoutSecs) * time.Second
	if timeout <= 0 {
		return webcontent.NewExtractor()
	}
	return webcontent.NewExtractorWithClient(&http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	})
}
