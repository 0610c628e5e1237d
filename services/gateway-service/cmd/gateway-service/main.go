package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/storefront-labs/frontdesk/libs/config"
	"github.com/storefront-labs/frontdesk/libs/httpx"
	otelx "github.com/storefront-labs/frontdesk/libs/otel"
	"github.com/storefront-labs/frontdesk/libs/runtime"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "gateway-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}
	bodyLimit, err := config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20, 1)
	if err != nil {
		panic(err)
	}
	timeoutSec, err := config.Int("REQUEST_TIMEOUT_SECONDS", 10, 1)
	if err != nil {
		panic(err)
	}
	limitPerMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 60, 1)
	if err != nil {
		panic(err)
	}
	failOpen, err := config.Bool("RATE_LIMIT_FAIL_OPEN", true)
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	mux := runtime.NewBaseMuxWithReady()
	registerRoutes(mux, routeConfig{
		bookingURL:      mustParseURL(config.String("BOOKING_URL", "http://booking-service:8083")),
		notificationURL: mustParseURL(config.String("NOTIFICATION_URL", "http://notification-service:8085")),
		jwtSecret:       jwtSecret,
		requestTimeout:  time.Duration(timeoutSec) * time.Second,
	})

	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		redisDB, err := config.Int("REDIS_DB", 0, 0)
		if err != nil {
			panic(err)
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"), httpx.ClientIP)
		rateLimitMW = rl.Middleware(logger, failOpen)
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute, httpx.ClientIP)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	maxAge, err := config.Int("CORS_MAX_AGE_SECONDS", 600, 0)
	if err != nil {
		panic(err)
	}
	allowCredentials, err := config.Bool("CORS_ALLOW_CREDENTIALS", false)
	if err != nil {
		panic(err)
	}
	handler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
			AllowCredentials: allowCredentials,
			MaxAge:           time.Duration(maxAge) * time.Second,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(bodyLimit)),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, "gateway")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
