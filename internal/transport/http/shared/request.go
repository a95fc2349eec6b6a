package shared

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// AuditRecorder is the audit trail writer used by the write handlers.
type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, entityType, entityID, requestID, ip string, before, after any) error
}

func ClientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if value := strings.TrimSpace(first); value != "" {
			return value
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Audit writes one audit event; failures are logged and never surface to
// the caller.
func Audit(r *http.Request, rec AuditRecorder, actorID, action, entityType, entityID, requestID string, before, after any) {
	if rec == nil {
		return
	}
	if err := rec.Record(r.Context(), actorID, action, entityType, entityID, requestID, ClientIP(r), before, after); err != nil {
		slog.Warn("audit record failed", "action", action, "entityId", entityID, "err", err)
	}
}
