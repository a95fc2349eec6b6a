package timer

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

func (s *Store) Get(ctx context.Context, scope Scope) (Timer, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT scope, start_date, end_date, remind_date, updated_at
    FROM appraisal_timers
    WHERE scope = $1
  `, string(scope))
	t, err := scanTimer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Timer{}, ErrNotFound
	}
	return t, err
}

func (s *Store) List(ctx context.Context) ([]Timer, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT scope, start_date, end_date, remind_date, updated_at
    FROM appraisal_timers
    ORDER BY scope
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Timer
	for rows.Next() {
		t, err := scanTimer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context, scope Scope) (int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM appraisal_timers WHERE scope = $1", string(scope)).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) Insert(ctx context.Context, t Timer) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO appraisal_timers (scope, start_date, end_date, remind_date)
    VALUES ($1,$2,$3,$4)
  `, string(t.Scope), nullDate(t.StartDate), nullDate(t.EndDate), nullDate(t.RemindDate))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}

func (s *Store) Update(ctx context.Context, t Timer) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE appraisal_timers
    SET start_date = $1, end_date = $2, remind_date = $3, updated_at = now()
    WHERE scope = $4
  `, nullDate(t.StartDate), nullDate(t.EndDate), nullDate(t.RemindDate), string(t.Scope))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkReminded(ctx context.Context, scope Scope, day time.Time) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    INSERT INTO timer_reminders (scope, reminded_on)
    VALUES ($1,$2)
    ON CONFLICT (scope, reminded_on) DO NOTHING
  `, string(scope), dateOf(day))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanTimer(row pgx.Row) (Timer, error) {
	var t Timer
	var scope string
	var start, end, remind *time.Time
	if err := row.Scan(&scope, &start, &end, &remind, &t.UpdatedAt); err != nil {
		return Timer{}, err
	}
	t.Scope = Scope(scope)
	if start != nil {
		t.StartDate = *start
	}
	if end != nil {
		t.EndDate = *end
	}
	if remind != nil {
		t.RemindDate = *remind
	}
	return t, nil
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
