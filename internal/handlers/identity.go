package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/stackmartapp/stackmart/internal/services"
)

type contextKey string

const identityKey contextKey = "identity"

// sessionHeader carries the anonymous cart session for guests.
const sessionHeader = "X-Session-ID"

// Identity resolves the caller on every request: a bearer token becomes an
// authenticated identity, otherwise the session header names an anonymous
// cart. A bad token fails the request rather than downgrading it.
func (h *Handlers) Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := services.Identity{
			SessionID: strings.TrimSpace(r.Header.Get(sessionHeader)),
		}

		if raw, ok := bearerToken(r); ok {
			verified, err := h.authService.VerifyToken(raw)
			if err != nil {
				h.respondErrorCode(w, r, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}
			verified.SessionID = identity.SessionID
			identity = verified
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects anonymous callers.
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identityFromContext(r.Context()).UserID == nil {
			h.respondErrorCode(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects everyone but admins.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := identityFromContext(r.Context())
		if identity.UserID == nil {
			h.respondErrorCode(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if !identity.IsAdmin {
			h.respondErrorCode(w, r, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func identityFromContext(ctx context.Context) services.Identity {
	if identity, ok := ctx.Value(identityKey).(services.Identity); ok {
		return identity
	}
	return services.Identity{}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
