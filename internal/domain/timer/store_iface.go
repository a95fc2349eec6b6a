package timer

import (
	"context"
	"time"
)

type StoreAPI interface {
	Get(ctx context.Context, scope Scope) (Timer, error)
	List(ctx context.Context) ([]Timer, error)
	Count(ctx context.Context, scope Scope) (int, error)
	Insert(ctx context.Context, t Timer) error
	Update(ctx context.Context, t Timer) error
	MarkReminded(ctx context.Context, scope Scope, day time.Time) (bool, error)
}
