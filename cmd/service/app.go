package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/we-are-mortensen/meet-artist-vote-app/internal/channel"
	"github.com/we-are-mortensen/meet-artist-vote-app/internal/config"
	"github.com/we-are-mortensen/meet-artist-vote-app/internal/hostauth"
	"github.com/we-are-mortensen/meet-artist-vote-app/internal/realtime"
	"github.com/we-are-mortensen/meet-artist-vote-app/internal/vote"
)

type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build wires storage, the vote channel transport and both routers. The hub
// and the channel bindings live until ctx is done.
func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	store, err := openStore(ctx, cfg, a)
	if err != nil {
		a.close()
		return nil, err
	}

	transport, err := openTransport(cfg, a)
	if err != nil {
		a.close()
		return nil, err
	}

	hosts := hostauth.NewIssuer(cfg.HostTokenSecret, cfg.HostTokenTTL)

	hub := realtime.NewHub()
	go hub.Run(ctx)
	rooms := realtime.NewRooms(ctx, store, transport, hub, logger)
	live := realtime.NewServer(hub, rooms, store, hosts, realtime.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		SendTimeout:    cfg.SendTimeout,
	}, logger)

	api := vote.NewServer(store, live, hosts, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Mount("/realtime", live.Router())
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Mount("/", api.Router())
	})

	a.handler = r
	return a, nil
}

// storeBackend is what both database backends provide.
type storeBackend interface {
	vote.Store
	realtime.Store
}

func openStore(ctx context.Context, cfg config.Config, a *app) (storeBackend, error) {
	switch cfg.DatabaseType {
	case config.DatabaseSQLite:
		db, err := vote.OpenSQLite(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err := vote.MigrateSQLite(ctx, db); err != nil {
			return nil, err
		}
		return vote.NewSQLiteStore(db), nil
	default:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("pg: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("pg: %w", err)
		}
		if err := vote.AutoMigrate(ctx, pool); err != nil {
			return nil, err
		}
		return vote.NewPostgresStore(pool), nil
	}
}

// openTransport uses Redis when configured so several instances share one
// vote channel per poll.
func openTransport(cfg config.Config, a *app) (channel.Transport, error) {
	if cfg.RedisURL == "" {
		t := channel.NewMemoryTransport()
		a.closers = append(a.closers, t.Close)
		return t, nil
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	return channel.NewRedisTransport(rdb), nil
}
