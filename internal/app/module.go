// Package app composes the client out of its providers and lifecycle
// hooks.
package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/thegoddo/ripple/internal/api"
	"github.com/thegoddo/ripple/internal/archive"
	"github.com/thegoddo/ripple/internal/bus"
	"github.com/thegoddo/ripple/internal/config"
	"github.com/thegoddo/ripple/internal/delivery"
	"github.com/thegoddo/ripple/internal/directory"
	"github.com/thegoddo/ripple/internal/lock"
	"github.com/thegoddo/ripple/internal/logging"
	"github.com/thegoddo/ripple/internal/presence"
	"github.com/thegoddo/ripple/internal/profile"
	"github.com/thegoddo/ripple/internal/store"
	"github.com/thegoddo/ripple/internal/timeline"
	"github.com/thegoddo/ripple/internal/transport"
	"github.com/thegoddo/ripple/internal/tui"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
}

// Module returns the fx module for the client, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("ripple",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideConfig,
			provideLock,
			provideStore,
			provideClient,
			provideSession,
			provideDirectory,
			provideTimeline,
			provideTracker,
			provideDelivery,
			provideArchiver,
			provideApp,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config (run with a valid ~/.ripple/config.toml): %w", err)
	}
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server_url is not set in %s", profile.ConfigPath())
	}
	return cfg, nil
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.CacheDBPath(p.Profile)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideClient(cfg *config.Config, logger *zap.Logger) *api.Client {
	return api.NewClient(cfg.ServerURL, cfg.Token, logger)
}

func provideSession(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *transport.Session {
	return transport.NewSession(wsURL(cfg.ServerURL), cfg.Token, b, logger)
}

func provideDirectory(client *api.Client, session *transport.Session, b *bus.Bus, logger *zap.Logger) *directory.Directory {
	return directory.New(client, session, b, logger)
}

func provideTimeline(client *api.Client, b *bus.Bus, logger *zap.Logger) *timeline.Timeline {
	return timeline.New(client, b, logger)
}

func provideTracker(b *bus.Bus, logger *zap.Logger) *presence.Tracker {
	return presence.NewTracker(b, logger)
}

func provideDelivery(session *transport.Session, client *api.Client, b *bus.Bus, logger *zap.Logger) *delivery.Coordinator {
	return delivery.NewCoordinator(session, client, b, logger)
}

func provideArchiver(db *store.DB, b *bus.Bus, logger *zap.Logger) *archive.Archiver {
	return archive.New(db, b, logger)
}

func provideApp(p Params, cfg *config.Config, dir *directory.Directory, tl *timeline.Timeline, tracker *presence.Tracker, d *delivery.Coordinator, client *api.Client, db *store.DB, b *bus.Bus, logger *zap.Logger) *tui.App {
	return tui.NewApp(tui.Params{
		Profile:   p.Profile,
		Sound:     cfg.Sound,
		Directory: dir,
		Timeline:  tl,
		Tracker:   tracker,
		Delivery:  d,
		Client:    client,
		DB:        db,
		Bus:       b,
		Logger:    logger,
	})
}

func registerLifecycle(lc fx.Lifecycle, client *api.Client, session *transport.Session, dir *directory.Directory, tl *timeline.Timeline, tracker *presence.Tracker, d *delivery.Coordinator, archiver *archive.Archiver, tuiApp *tui.App, db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			identity, err := client.Me(ctx)
			if err != nil {
				return fmt.Errorf("authenticate: %w", err)
			}
			logger.Info("authenticated", zap.String("user_id", identity.ID), zap.String("username", identity.Username))

			d.SetIdentity(identity)
			archiver.SetIdentity(identity.ID)
			tuiApp.SetIdentity(identity)

			// Reducers first, so nothing published at connect time is
			// missed.
			dir.Start(context.Background())
			tl.Start(context.Background())
			tracker.Start(context.Background())
			archiver.Start(context.Background())

			if err := session.Connect(ctx, identity); err != nil {
				return err
			}

			if err := dir.Load(ctx); err != nil {
				// Degraded start: seed the sidebar from the local archive
				// so cached history stays reachable.
				logger.Warn("conversation hydration failed, seeding from archive", zap.Error(err))
				rows, derr := db.ListConversations(200, 0)
				if derr != nil {
					return err
				}
				dir.Seed(archive.Conversations(rows))
				return nil
			}
			archiver.IngestConversations(dir.Snapshot())
			return nil
		},
		OnStop: func(context.Context) error {
			archiver.Stop()
			tracker.Stop()
			tl.Stop()
			dir.Stop()
			session.Disconnect()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}

// wsURL derives the live event endpoint from the REST base URL: the /api
// suffix comes off and the scheme flips to WebSocket.
func wsURL(serverURL string) string {
	u := strings.TrimSuffix(strings.TrimSuffix(serverURL, "/"), "/api")
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}
