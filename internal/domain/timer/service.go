package timer

import (
	"context"
	"errors"
	"time"
)

// Service is the keyed timer store: every scope owns exactly one timer,
// which can be rewritten but never added twice or removed.
type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) GetOrCreate(ctx context.Context, scope Scope) (Timer, error) {
	if !scope.Valid() {
		return Timer{}, ErrInvalidScope
	}
	t, err := s.store.Get(ctx, scope)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Timer{}, err
	}
	if err := s.store.Insert(ctx, Timer{Scope: scope}); err != nil && !errors.Is(err, ErrConflict) {
		return Timer{}, err
	}
	return s.store.Get(ctx, scope)
}

func (s *Service) Get(ctx context.Context, scope Scope) (Timer, error) {
	if !scope.Valid() {
		return Timer{}, ErrInvalidScope
	}
	return s.store.Get(ctx, scope)
}

func (s *Service) List(ctx context.Context) ([]Timer, error) {
	return s.store.List(ctx)
}

func (s *Service) Update(ctx context.Context, scope Scope, start, end, remind time.Time) (Timer, error) {
	if err := validateWindow(start, end, remind); err != nil {
		return Timer{}, err
	}
	current, err := s.GetOrCreate(ctx, scope)
	if err != nil {
		return Timer{}, err
	}
	current.StartDate = start
	current.EndDate = end
	current.RemindDate = remind
	if err := s.store.Update(ctx, current); err != nil {
		return Timer{}, err
	}
	return current, nil
}

// Add creates the timer for a scope that has none yet.
func (s *Service) Add(ctx context.Context, t Timer) error {
	if !t.Scope.Valid() {
		return ErrInvalidScope
	}
	if t.Configured() {
		if err := validateWindow(t.StartDate, t.EndDate, t.RemindDate); err != nil {
			return err
		}
	}
	count, err := s.store.Count(ctx, t.Scope)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrConflict
	}
	return s.store.Insert(ctx, t)
}

// Remove never deletes: the last timer of a scope must stay.
func (s *Service) Remove(ctx context.Context, scope Scope) error {
	if !scope.Valid() {
		return ErrInvalidScope
	}
	count, err := s.store.Count(ctx, scope)
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// Ensure provisions all scopes; used at startup.
func (s *Service) Ensure(ctx context.Context) error {
	for _, scope := range Scopes {
		if _, err := s.GetOrCreate(ctx, scope); err != nil {
			return err
		}
	}
	return nil
}

// ClaimReminder records that the reminder of scope went out on day. It
// returns false when that day was already claimed.
func (s *Service) ClaimReminder(ctx context.Context, scope Scope, day time.Time) (bool, error) {
	if !scope.Valid() {
		return false, ErrInvalidScope
	}
	return s.store.MarkReminded(ctx, scope, day)
}
