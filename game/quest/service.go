// Package quest tracks per-user quest progress driven by activity events.
package quest

import (
	"context"
	"errors"
	"time"

	"github.com/trailmate/server/plugin/hook"
	"go.uber.org/zap"
)

// Completion describes one quest reaching its total for a user.
type Completion struct {
	UserID      string    `json:"userId"`
	QuestID     string    `json:"questId"`
	Title       string    `json:"title"`
	Points      int       `json:"points"`
	TotalPoints int       `json:"totalPoints"`
	CompletedAt time.Time `json:"completedAt"`
	Manual      bool      `json:"manual,omitempty"`
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for lastUpdated and completedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service owns the quest ledger. All mutations of one user are serialized.
type Service struct {
	catalog *Catalog
	store   Store
	hooks   *hook.HookCenter
	locks   *userLocks
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a quest Service. hooks may be nil.
func NewService(catalog *Catalog, store Store, hooks *hook.HookCenter, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		catalog: catalog,
		store:   store,
		hooks:   hooks,
		locks:   newUserLocks(),
		logger:  logger,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Catalog returns the definitions the service tracks.
func (s *Service) Catalog() *Catalog { return s.catalog }

// fire runs a hook chain. Interruption only matters for BeforeActivityTrack,
// which Track checks itself.
func (s *Service) fire(ctx context.Context, event string, data interface{}) error {
	if s.hooks == nil || !s.hooks.Has(event) {
		return nil
	}
	_, err := s.hooks.Trigger(ctx, event, data)
	if err != nil && !errors.Is(err, hook.ErrInterrupt) {
		s.logger.Warn("hook failed", zap.String("event", event), zap.Error(err))
	}
	return err
}

func (s *Service) fireCompletions(ctx context.Context, done []Completion) {
	for _, c := range done {
		s.logger.Info("quest completed",
			zap.String("user_id", c.UserID),
			zap.String("quest_id", c.QuestID),
			zap.Int("points", c.Points),
			zap.Bool("manual", c.Manual))
		_ = s.fire(ctx, hook.OnQuestComplete, c)
	}
}
