package main

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/storefront-labs/frontdesk/libs/auth"
)

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-User", r.Header.Get("X-User-Id"))
		w.Header().Set("X-Seen-Role", r.Header.Get("X-Role"))
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthReplacesSpoofedHeaders(t *testing.T) {
	secret := "test-secret"
	token, err := auth.SignHS256(auth.NewClaims("cust-1", auth.RoleCustomer, time.Hour), secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	h := requireAuth(echoIdentity(), secret)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-User-Id", "someone-else")
	req.Header.Set("X-Role", auth.RoleAdmin)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if rw.Header().Get("X-Seen-User") != "cust-1" || rw.Header().Get("X-Seen-Role") != auth.RoleCustomer {
		t.Fatalf("identity not replaced: user=%q role=%q", rw.Header().Get("X-Seen-User"), rw.Header().Get("X-Seen-Role"))
	}

	reqBad := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/appointments", nil)
	reqBad.Header.Set("Authorization", "Bearer badtoken")
	rwBad := httptest.NewRecorder()
	h.ServeHTTP(rwBad, reqBad)
	if rwBad.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rwBad.Code)
	}
}

func TestFeedAcceptsQueryToken(t *testing.T) {
	secret := "test-secret"
	token, err := auth.SignHS256(auth.NewClaims("admin-1", auth.RoleAdmin, time.Hour), secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	h := requireAuth(echoIdentity(), secret)

	req := httptest.NewRequest(http.MethodGet, "http://example.com"+feedPath+"?access_token="+url.QueryEscape(token), nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK || rw.Header().Get("X-Seen-Role") != auth.RoleAdmin {
		t.Fatalf("feed: code=%d role=%q", rw.Code, rw.Header().Get("X-Seen-Role"))
	}

	other := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/slots?access_token="+url.QueryEscape(token), nil)
	rwOther := httptest.NewRecorder()
	h.ServeHTTP(rwOther, other)
	if rwOther.Code != http.StatusUnauthorized {
		t.Fatalf("query token outside the feed: expected 401, got %d", rwOther.Code)
	}
}

func TestRoutesSendNotificationsToNotificationService(t *testing.T) {
	secret := "test-secret"
	token, err := auth.SignHS256(auth.NewClaims("cust-1", auth.RoleCustomer, time.Hour), secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	backend := func(name string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("X-Backend", name)
		}))
	}
	booking, notification := backend("booking"), backend("notification")
	defer booking.Close()
	defer notification.Close()

	bookingURL, _ := url.Parse(booking.URL)
	notificationURL, _ := url.Parse(notification.URL)
	mux := http.NewServeMux()
	registerRoutes(mux, routeConfig{bookingURL: bookingURL, notificationURL: notificationURL, jwtSecret: secret, requestTimeout: 5 * time.Second})
	gw := httptest.NewServer(mux)
	defer gw.Close()

	for path, want := range map[string]string{
		"/api/v1/notifications": "notification",
		"/api/v1/appointments":  "booking",
	} {
		req, _ := http.NewRequest(http.MethodGet, gw.URL+path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		resp.Body.Close()
		if got := resp.Header.Get("X-Backend"); got != want {
			t.Fatalf("%s routed to %q, want %q", path, got, want)
		}
	}
}
