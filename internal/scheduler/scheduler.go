// Package scheduler owns every deferred action of the bot: keyed one-shot
// tasks (feedback deadlines, channel teardown) and cron-driven recurring jobs.
package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Tasks runs keyed one-shot callbacks. Scheduling a key that is already
// pending replaces the earlier task.
type Tasks struct {
	mu      sync.Mutex
	pending map[string]*task
	seq     uint64
	stopped bool
	logger  *zap.Logger
}

type task struct {
	id    uint64
	timer *time.Timer
}

// NewTasks creates an empty task set.
func NewTasks(logger *zap.Logger) *Tasks {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tasks{pending: make(map[string]*task), logger: logger}
}

// After runs fn once d has elapsed unless key is cancelled first. It reports
// false when the set has been stopped.
func (s *Tasks) After(key string, d time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if prev, ok := s.pending[key]; ok {
		prev.timer.Stop()
	}
	s.seq++
	t := &task{id: s.seq}
	t.timer = time.AfterFunc(d, func() { s.fire(key, t.id, fn) })
	s.pending[key] = t
	return true
}

func (s *Tasks) fire(key string, id uint64, fn func()) {
	s.mu.Lock()
	current, ok := s.pending[key]
	if !ok || current.id != id {
		// cancelled or replaced after the timer already fired
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked", zap.String("key", key), zap.Any("panic", r))
		}
	}()
	fn()
}

// Cancel drops a pending task and reports whether one was pending.
func (s *Tasks) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.pending[key]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(s.pending, key)
	return true
}

// Pending reports whether key is scheduled and has not started.
func (s *Tasks) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Len counts pending tasks.
func (s *Tasks) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels everything pending and rejects further scheduling.
func (s *Tasks) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for key, t := range s.pending {
		t.timer.Stop()
		delete(s.pending, key)
	}
}
