// Package main is the runeshop support-chat server.
//
// Wire-up order:
//
//	config → logger → database → change feed → document store → repositories
//	→ hub → services → handlers → routes → CORS → HTTP server → graceful shutdown
//
// There are no globals: everything is built here and passed down.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/akinalp/runeshop/config"
	"github.com/akinalp/runeshop/database"
	"github.com/akinalp/runeshop/docstore"
	"github.com/akinalp/runeshop/docstore/redisfeed"
	"github.com/akinalp/runeshop/middleware"
	"github.com/akinalp/runeshop/pkg/logger"
	"github.com/akinalp/runeshop/ws"
)

func main() {
	// ─── 1. Config & logging ───
	log := logger.Module("main")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.Log.Level)
	log = logger.Module("main")
	log.Info().Int("port", cfg.Server.Port).Str("driver", cfg.Database.Driver).Msg("runeshop starting")

	// ─── 2. Database ───
	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	// ─── 3. Document store (+ Redis change feed) ───
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var storeOpts []docstore.Option
	var feed *redisfeed.Feed
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}

		feed = redisfeed.New(rdb, cfg.Redis.Channel)
		storeOpts = append(storeOpts, docstore.WithChangeFeed(feed))
	} else {
		log.Info().Msg("REDIS_URL not set, change notifications stay in-process")
	}
	store := docstore.NewSQLStore(db, storeOpts...)

	// ─── 4. Repositories, hub, services, handlers ───
	repos := initRepositories(db)

	hub := ws.NewHub()
	go hub.Run()

	limiters := initRateLimiters(cfg)
	defer limiters.Close()

	svcs := initServices(cfg, repos, store, limiters)
	h := initHandlers(cfg, db, svcs, repos, limiters, hub)

	startBackgroundJobs(ctx, feed, store, repos)

	// ─── 5. Routes & CORS ───
	authMw := middleware.NewAuthMiddleware(svcs.Auth, repos.User)
	defer authMw.Close()

	mux := http.NewServeMux()
	initRoutes(mux, h, authMw)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	// ─── 6. HTTP server ───
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      corsHandler.Handler(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr()).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// ─── 7. Graceful shutdown ───
	<-done
	log.Info().Msg("shutting down...")

	// sockets first so chat sessions stop before the store goes away
	hub.Shutdown()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped gracefully")
}

func openDatabase(cfg *config.Config) (*database.DB, error) {
	migrations, err := database.Migrations(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver == database.DriverPgx {
		return database.NewPostgres(cfg.Database.URL, migrations)
	}
	return database.New(cfg.Database.Path, migrations)
}
