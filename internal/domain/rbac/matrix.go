package rbac

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_matrix.yaml
var defaultMatrix []byte

// matrixFile is role -> workspace -> sub-workspace -> allowed actions.
type matrixFile struct {
	Roles map[string]map[string]map[string][]string `yaml:"roles"`
}

func DefaultGrants() ([]Grant, error) {
	return ParseMatrix(defaultMatrix)
}

func LoadMatrix(path string) ([]Grant, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseMatrix(raw)
}

func ParseMatrix(raw []byte) ([]Grant, error) {
	var file matrixFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse role matrix: %w", err)
	}

	var grants []Grant
	for role, workspaces := range file.Roles {
		for workspace, subs := range workspaces {
			for sub, actions := range subs {
				g := Grant{Role: role, Workspace: workspace, SubWorkspace: sub}
				for _, action := range actions {
					switch strings.ToLower(strings.TrimSpace(action)) {
					case ActionView:
						g.View = true
					case ActionCreate:
						g.Create = true
					case ActionEdit:
						g.Edit = true
					case ActionDelete:
						g.Delete = true
					default:
						return nil, fmt.Errorf("role %s: unknown action %q on %s/%s", role, action, workspace, sub)
					}
				}
				grants = append(grants, g)
			}
		}
	}
	sort.Slice(grants, func(i, j int) bool {
		a, b := grants[i], grants[j]
		if a.Role != b.Role {
			return a.Role < b.Role
		}
		if a.Workspace != b.Workspace {
			return a.Workspace < b.Workspace
		}
		return a.SubWorkspace < b.SubWorkspace
	})
	return grants, nil
}

// StaticLookup answers lookups from an in-memory grant list.
type StaticLookup map[string]Permission

func NewStaticLookup(grants []Grant) StaticLookup {
	out := StaticLookup{}
	for _, g := range grants {
		out[key(g.Role, g.Workspace, g.SubWorkspace)] = g.Permission
	}
	return out
}

func (l StaticLookup) Lookup(ctx context.Context, role, workspace, subWorkspace string) (Permission, error) {
	p, ok := l[key(role, workspace, subWorkspace)]
	if !ok {
		return Permission{}, ErrPermissionNotFound
	}
	return p, nil
}

func key(role, workspace, sub string) string {
	return role + "\x00" + workspace + "\x00" + sub
}
