package rbac

import (
	"log/slog"
	"net/http"

	"github.com/trialdesk/trialdesk/internal/platform/httpx"
	"github.com/trialdesk/trialdesk/internal/shared"
)

// Middleware wires authorization helpers for HTTP handlers. It expects an
// authenticated principal in the request context.
type Middleware struct {
	Logger *slog.Logger
}

// Require ensures the current principal holds the permission, or the
// wildcard. Rejections include the required permission name.
func (m Middleware) Require(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if !principal.HasPermission(perm) {
				if m.Logger != nil {
					m.Logger.Warn("permission denied",
						slog.String("user_id", principal.ID),
						slog.String("required", perm),
					)
				}
				httpx.RespondError(w, &shared.PermissionError{Required: perm})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny ensures the current principal holds at least one of the
// permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			for _, perm := range perms {
				if principal.HasPermission(perm) {
					next.ServeHTTP(w, r)
					return
				}
			}
			if m.Logger != nil {
				m.Logger.Warn("permission denied",
					slog.String("user_id", principal.ID),
					slog.String("required", perms[0]),
				)
			}
			httpx.RespondError(w, &shared.PermissionError{Required: perms[0]})
		})
	}
}
