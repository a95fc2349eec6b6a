package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"appraisal/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) Lookup(ctx context.Context, role, workspace, subWorkspace string) (Permission, error) {
	var p Permission
	err := s.DB.QueryRow(ctx, `
    SELECT can_view, can_create, can_edit, can_delete
    FROM role_permissions
    WHERE role = $1 AND workspace = $2 AND sub_workspace = $3
  `, role, workspace, subWorkspace).Scan(&p.View, &p.Create, &p.Edit, &p.Delete)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, ErrPermissionNotFound
	}
	return p, err
}

func (s *Store) Upsert(ctx context.Context, g Grant) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO role_permissions (role, workspace, sub_workspace, can_view, can_create, can_edit, can_delete)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    ON CONFLICT (role, workspace, sub_workspace)
    DO UPDATE SET can_view = EXCLUDED.can_view,
                  can_create = EXCLUDED.can_create,
                  can_edit = EXCLUDED.can_edit,
                  can_delete = EXCLUDED.can_delete,
                  updated_at = now()
  `, g.Role, g.Workspace, g.SubWorkspace, g.View, g.Create, g.Edit, g.Delete)
	return err
}

// SeedMissing inserts grants that have no row yet, leaving edited rows alone.
func (s *Store) SeedMissing(ctx context.Context, grants []Grant) error {
	batch := &pgx.Batch{}
	for _, g := range grants {
		batch.Queue(`
      INSERT INTO role_permissions (role, workspace, sub_workspace, can_view, can_create, can_edit, can_delete)
      VALUES ($1,$2,$3,$4,$5,$6,$7)
      ON CONFLICT (role, workspace, sub_workspace) DO NOTHING
    `, g.Role, g.Workspace, g.SubWorkspace, g.View, g.Create, g.Edit, g.Delete)
	}
	return s.DB.SendBatch(ctx, batch).Close()
}
