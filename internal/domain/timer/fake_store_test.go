package timer

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryStore struct {
	mu        sync.Mutex
	timers    map[Scope]Timer
	reminders map[string]bool
	updates   int
}

func newMemoryStore(timers ...Timer) *memoryStore {
	s := &memoryStore{timers: map[Scope]Timer{}, reminders: map[string]bool{}}
	for _, t := range timers {
		s.timers[t.Scope] = t
	}
	return s
}

func (s *memoryStore) Get(ctx context.Context, scope Scope) (Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[scope]
	if !ok {
		return Timer{}, ErrNotFound
	}
	return t, nil
}

func (s *memoryStore) List(ctx context.Context) ([]Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Timer, 0, len(s.timers))
	for _, t := range s.timers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scope < out[j].Scope })
	return out, nil
}

func (s *memoryStore) Count(ctx context.Context, scope Scope) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[scope]; ok {
		return 1, nil
	}
	return 0, nil
}

func (s *memoryStore) Insert(ctx context.Context, t Timer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[t.Scope]; ok {
		return ErrConflict
	}
	s.timers[t.Scope] = t
	return nil
}

func (s *memoryStore) Update(ctx context.Context, t Timer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[t.Scope]; !ok {
		return ErrNotFound
	}
	s.timers[t.Scope] = t
	s.updates++
	return nil
}

func (s *memoryStore) MarkReminded(ctx context.Context, scope Scope, day time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(scope) + dateOf(day).Format("2006-01-02")
	if s.reminders[key] {
		return false, nil
	}
	s.reminders[key] = true
	return true, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
