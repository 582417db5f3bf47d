// Package scheduler runs named background jobs such as the leaderboard rebuild.
package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is the function signature for scheduled tasks. The context is
// cancelled when the task is removed or the scheduler stops.
type TaskFn func(ctx context.Context) error

// TaskInfo is a snapshot of one task for the admin API.
type TaskInfo struct {
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval,omitempty"`
	OneShot  bool          `json:"oneShot,omitempty"`
	Runs     int64         `json:"runs"`
	Failures int64         `json:"failures"`
	LastRun  *time.Time    `json:"lastRun,omitempty"`
	LastErr  string        `json:"lastError,omitempty"`
}

type task struct {
	info   TaskInfo
	fn     TaskFn
	cancel context.CancelFunc
	timer  *time.Timer
}

// Scheduler manages periodic and delayed tasks.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]*task
	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New creates a new Scheduler.
func New(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tasks:  make(map[string]*task),
		ctx:    ctx,
		stop:   cancel,
		logger: logger,
	}
}

// AddTicker registers a task to run on a fixed interval.
// If a task with the same name exists, it is replaced.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return
	}
	s.removeLocked(name)

	ctx, cancel := context.WithCancel(s.ctx)
	t := &task{info: TaskInfo{Name: name, Interval: interval}, fn: fn, cancel: cancel}
	s.tasks[name] = t

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.run(ctx, t)
			case <-ctx.Done():
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

// AddDelay runs fn once after the given delay.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return
	}
	s.removeLocked(name)

	ctx, cancel := context.WithCancel(s.ctx)
	t := &task{info: TaskInfo{Name: name, OneShot: true}, fn: fn, cancel: cancel}
	s.tasks[name] = t
	s.wg.Add(1)
	t.timer = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.run(ctx, t)
		s.mu.Lock()
		if s.tasks[name] == t {
			delete(s.tasks, name)
		}
		s.mu.Unlock()
	})
}

// RunNow executes a registered task immediately on the caller's goroutine.
// It returns false if no task has that name.
func (s *Scheduler) RunNow(name string) bool {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.run(s.ctx, t)
	return true
}

func (s *Scheduler) run(ctx context.Context, t *task) {
	if ctx.Err() != nil {
		return
	}
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("scheduler task panicked",
					zap.String("task", t.info.Name),
					zap.Any("recover", r))
				err = errPanicked
			}
		}()
		err = t.fn(ctx)
	}()

	now := time.Now()
	s.mu.Lock()
	t.info.Runs++
	t.info.LastRun = &now
	t.info.LastErr = ""
	if err != nil {
		t.info.Failures++
		t.info.LastErr = err.Error()
	}
	s.mu.Unlock()
	if err != nil && !errors.Is(err, errPanicked) {
		s.logger.Warn("scheduler task failed", zap.String("task", t.info.Name), zap.Error(err))
	}
}

// Remove stops and removes a ticker or delay task by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
}

func (s *Scheduler) removeLocked(name string) {
	t, ok := s.tasks[name]
	if !ok {
		return
	}
	t.cancel()
	if t.timer != nil && t.timer.Stop() {
		// the callback will never run, so release its slot here
		s.wg.Done()
	}
	delete(s.tasks, name)
}

// Stop stops all tasks and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for name := range s.tasks {
		s.removeLocked(name)
	}
	s.stop()
	s.mu.Unlock()
	s.wg.Wait()
}

// ListTickers returns the names of all registered ticker tasks.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name, t := range s.tasks {
		if !t.info.OneShot {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Tasks returns a snapshot of every registered task, sorted by name.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		info := t.info
		if info.LastRun != nil {
			at := *info.LastRun
			info.LastRun = &at
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
