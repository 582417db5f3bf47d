// Package app assembles the quest engine, its hook subscribers and the HTTP
// surface from already-opened infrastructure.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/trailmate/server/audit"
	"github.com/trailmate/server/cache"
	"github.com/trailmate/server/config"
	"github.com/trailmate/server/game/feed"
	"github.com/trailmate/server/game/leaderboard"
	"github.com/trailmate/server/game/notify"
	"github.com/trailmate/server/game/quest"
	"github.com/trailmate/server/plugin/hook"
	"github.com/trailmate/server/resource"
	"github.com/trailmate/server/scheduler"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store backends selectable via quest.store.
const (
	StoreDB     = "db"
	StoreMemory = "memory"
)

// Scheduler task names.
const (
	TaskLeaderboardRefresh = "leaderboard_refresh"
	TaskLeaderboardWarmup  = "leaderboard_warmup"
)

// App holds every long-lived service.
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Cache    cache.Cache
	PubSub   cache.PubSub
	Hooks    *hook.HookCenter
	Quests   *quest.Service
	Board    *leaderboard.Board
	Feed     *feed.Feed
	Notifier *notify.Notifier
	Audit    *audit.Service
	Sched    *scheduler.Scheduler

	logger *zap.Logger
}

// New wires the services. db must already be migrated.
func New(cfg *config.Config, db *gorm.DB, c cache.Cache, ps cache.PubSub, logger *zap.Logger, opts ...quest.Option) (*App, error) {
	catalog := quest.NewCatalog()
	if err := resource.LoadCatalog(catalog, cfg.Quest.CatalogPath); err != nil {
		return nil, fmt.Errorf("app: quest catalog: %w", err)
	}
	logger.Info("quest catalog loaded",
		zap.Int("quests", catalog.Len()),
		zap.String("path", cfg.Quest.CatalogPath))

	var store quest.Store
	switch cfg.Quest.Store {
	case StoreMemory:
		store = quest.NewMemoryStore()
	case StoreDB, "":
		store = quest.NewGormStore(db)
	default:
		return nil, fmt.Errorf("app: unknown quest store %q", cfg.Quest.Store)
	}

	hooks := hook.NewHookCenter()
	a := &App{
		Config:   cfg,
		DB:       db,
		Cache:    c,
		PubSub:   ps,
		Hooks:    hooks,
		Quests:   quest.NewService(catalog, store, hooks, logger, opts...),
		Board:    leaderboard.New(db, c, logger),
		Feed:     feed.New(c, cfg.Quest.FeedLength, logger),
		Notifier: notify.New(ps, logger),
		Audit:    audit.New(db, logger),
		Sched:    scheduler.New(logger),
		logger:   logger,
	}
	a.Board.Attach(hooks)
	a.Feed.Attach(hooks)
	a.Notifier.Attach(hooks)
	return a, nil
}

// StartBackground registers the periodic tasks.
func (a *App) StartBackground() {
	refresh := func(ctx context.Context) error {
		n, err := a.Board.Refresh(ctx)
		if err == nil {
			a.logger.Debug("leaderboard refreshed", zap.Int("entries", n))
		}
		return err
	}
	a.Sched.AddDelay(TaskLeaderboardWarmup, time.Second, refresh)
	if every := a.Config.Quest.LeaderboardRefresh; every > 0 {
		a.Sched.AddTicker(TaskLeaderboardRefresh, every, refresh)
	}
}

// Close detaches the quest subscribers, stops background work and flushes
// the activity journal.
func (a *App) Close(ctx context.Context) {
	a.Board.Detach(a.Hooks)
	a.Feed.Detach(a.Hooks)
	a.Notifier.Detach(a.Hooks)
	a.Sched.Stop()
	a.Audit.Stop(ctx)
}
