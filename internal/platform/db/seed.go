package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"appraisal/internal/domain/rbac"
	"appraisal/internal/domain/timer"
	"appraisal/internal/platform/config"
)

// Seed installs the role permission matrix and the three timer rows.
// Existing rows are never overwritten.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	grants, err := loadGrants(cfg.RolePermissionsFile)
	if err != nil {
		return err
	}
	if err := rbac.NewStore(pool).SeedMissing(ctx, grants); err != nil {
		return fmt.Errorf("seed role permissions: %w", err)
	}
	if err := timer.NewService(timer.NewStore(pool)).Ensure(ctx); err != nil {
		return fmt.Errorf("seed timers: %w", err)
	}
	slog.Info("seed complete", "grants", len(grants))
	return nil
}

func loadGrants(path string) ([]rbac.Grant, error) {
	if path == "" {
		return rbac.DefaultGrants()
	}
	return rbac.LoadMatrix(path)
}
