package rbac

import (
	"context"
	"errors"
)

var ErrPermissionNotFound = errors.New("role permission not configured")

// Permission is the view/create/edit/delete grant a role holds on one
// sub-workspace.
type Permission struct {
	View   bool `json:"view" yaml:"view"`
	Create bool `json:"create" yaml:"create"`
	Edit   bool `json:"edit" yaml:"edit"`
	Delete bool `json:"delete" yaml:"delete"`
}

// CanAct is the capability test used for appraisal stages: create or edit.
func (p Permission) CanAct() bool {
	return p.Create || p.Edit
}

func (p Permission) Allows(action string) bool {
	switch action {
	case ActionView:
		return p.View
	case ActionCreate:
		return p.Create
	case ActionEdit:
		return p.Edit
	case ActionDelete:
		return p.Delete
	}
	return false
}

const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
)

type Grant struct {
	Role         string
	Workspace    string
	SubWorkspace string
	Permission
}

type Lookup interface {
	Lookup(ctx context.Context, role, workspace, subWorkspace string) (Permission, error)
}
