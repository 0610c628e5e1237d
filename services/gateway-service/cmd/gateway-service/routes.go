package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/storefront-labs/frontdesk/libs/auth"
	"github.com/storefront-labs/frontdesk/libs/httpx"
)

const feedPath = "/api/v1/feed"

type routeConfig struct {
	bookingURL      *url.URL
	notificationURL *url.URL
	jwtSecret       string
	requestTimeout  time.Duration
}

func registerRoutes(mux *http.ServeMux, cfg routeConfig) {
	bookingProxy := httputil.NewSingleHostReverseProxy(cfg.bookingURL)
	notificationProxy := httputil.NewSingleHostReverseProxy(cfg.notificationURL)
	otelTransport := otelhttp.NewTransport(http.DefaultTransport)
	bookingProxy.Transport = otelTransport
	notificationProxy.Transport = otelTransport

	timeout := httpx.WithTimeout(cfg.requestTimeout)

	// The feed is a long-lived websocket and must bypass the timeout.
	mux.Handle(feedPath, requireAuth(bookingProxy, cfg.jwtSecret))
	registerProxy(mux, "/api/v1/notifications", timeout(requireAuth(notificationProxy, cfg.jwtSecret)))
	registerProxy(mux, "/api/v1/", timeout(requireAuth(bookingProxy, cfg.jwtSecret)))
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	if !strings.HasSuffix(prefix, "/") {
		mux.Handle(prefix, handler)
		mux.Handle(prefix+"/", handler)
		return
	}
	mux.Handle(prefix, handler)
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// requireAuth verifies the bearer token and replaces any client supplied
// identity headers with the verified ones. Browsers cannot set headers on a
// websocket handshake, so the feed also accepts ?access_token=.
func requireAuth(next http.Handler, jwtSecret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok && r.URL.Path == feedPath {
			token = strings.TrimSpace(r.URL.Query().Get("access_token"))
			ok = token != ""
		}
		if !ok {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}

		claims, err := auth.ParseAndVerifyHS256(token, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		r.Header.Del("X-User-Id")
		r.Header.Del("X-Role")
		r.Header.Set("X-User-Id", claims.Subject)
		r.Header.Set("X-Role", claims.Role)
		next.ServeHTTP(w, r)
	})
}
