package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/storefront-labs/frontdesk/libs/auth"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
)

type actorKey struct{}

// Identity resolves the caller from a bearer token, or from gateway
// headers when the service sits behind a trusted gateway.
type Identity struct {
	secret       string
	trustHeaders bool
}

func NewIdentity(jwtSecret string, trustGatewayHeaders bool) *Identity {
	return &Identity{secret: jwtSecret, trustHeaders: trustGatewayHeaders}
}

func (i *Identity) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := i.resolve(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{
				"code":    "UNAUTHENTICATED",
				"message": "missing or invalid credentials",
			}})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func (i *Identity) resolve(r *http.Request) (model.Actor, bool) {
	if token, ok := auth.BearerToken(r.Header.Get("Authorization")); ok && i.secret != "" {
		claims, err := auth.ParseAndVerifyHS256(token, i.secret)
		if err != nil {
			return model.Actor{}, false
		}
		return model.Actor{ID: claims.Subject, Role: model.Role(claims.Role)}, true
	}
	if !i.trustHeaders {
		return model.Actor{}, false
	}
	id := strings.TrimSpace(r.Header.Get("X-User-Id"))
	role := model.Role(strings.ToLower(strings.TrimSpace(r.Header.Get("X-Role"))))
	if id == "" || (role != model.RoleAdmin && role != model.RoleCustomer) {
		return model.Actor{}, false
	}
	return model.Actor{ID: id, Role: role}, true
}

func actorFrom(ctx context.Context) model.Actor {
	actor, _ := ctx.Value(actorKey{}).(model.Actor)
	return actor
}
