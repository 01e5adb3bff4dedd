package main

import (
	"context"
	"errors"
	"time"

	"github.com/akinalp/runeshop/docstore"
	"github.com/akinalp/runeshop/docstore/redisfeed"
	"github.com/akinalp/runeshop/pkg/logger"
)

const (
	sessionCleanupInterval = time.Hour
	feedRetryDelay         = 5 * time.Second
)

// startBackgroundJobs runs until ctx is cancelled:
//   - the Redis listener that refreshes local subscriptions (feed may be nil)
//   - the sweep of expired refresh-token sessions
func startBackgroundJobs(ctx context.Context, feed *redisfeed.Feed, store *docstore.SQLStore, repos *Repositories) {
	log := logger.Module("jobs")

	if feed != nil {
		go func() {
			for {
				err := feed.Listen(ctx, store.Notify)
				if ctx.Err() != nil {
					return
				}
				if err != nil && !errors.Is(err, context.Canceled) {
					log.Error().Err(err).Msg("change feed listener stopped, retrying")
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(feedRetryDelay):
				}
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := repos.Session.DeleteExpired(ctx)
				if err != nil {
					log.Error().Err(err).Msg("failed to delete expired sessions")
					continue
				}
				if n > 0 {
					log.Info().Int64("sessions", n).Msg("expired sessions deleted")
				}
			}
		}
	}()
}
