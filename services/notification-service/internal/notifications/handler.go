package notifications

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/storefront-labs/frontdesk/libs/auth"
)

// ListHandler serves GET /api/v1/notifications. Admins may filter by
// customer_id; customers always get their own.
func ListHandler(store Store, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		claims, err := auth.ParseAndVerifyHS256(token, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		customerID := claims.Subject
		if claims.Role == auth.RoleAdmin {
			customerID = r.URL.Query().Get("customer_id")
		}
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > 200 {
				http.Error(w, "limit must be between 1 and 200", http.StatusBadRequest)
				return
			}
			limit = n
		}

		items, err := store.List(r.Context(), customerID, limit)
		if err != nil {
			http.Error(w, "failed to list notifications", http.StatusInternalServerError)
			return
		}
		if items == nil {
			items = []Notification{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"notifications": items})
	}
}
