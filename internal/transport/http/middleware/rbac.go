package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"appraisal/internal/domain/appraisal"
	"appraisal/internal/domain/rbac"
	"appraisal/internal/transport/http/api"
)

func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission admits callers whose role grants action on the given
// sub-workspace of the appraisal workspace.
func RequirePermission(lookup rbac.Lookup, subWorkspace, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
				return
			}

			perm, err := lookup.Lookup(r.Context(), user.Role, appraisal.Workspace, subWorkspace)
			if err != nil && !errors.Is(err, rbac.ErrPermissionNotFound) {
				slog.Error("permission lookup failed", "role", user.Role, "subWorkspace", subWorkspace, "err", err)
				api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", GetRequestID(r.Context()))
				return
			}
			if !perm.Allows(action) {
				api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", GetRequestID(r.Context()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
