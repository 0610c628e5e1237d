package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/storefront-labs/frontdesk/libs/config"
	"github.com/storefront-labs/frontdesk/libs/db"
	"github.com/storefront-labs/frontdesk/libs/httpx"
	"github.com/storefront-labs/frontdesk/libs/kafkax"
	otelx "github.com/storefront-labs/frontdesk/libs/otel"
	"github.com/storefront-labs/frontdesk/libs/runtime"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/availability"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/booking"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/capacity"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/events"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/handlers"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/lifecycle"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/notify"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/realtime"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/reminders"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/settlement"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/wallet"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	cfg, err := loadSettings()
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	checks := []runtime.ReadyCheck{}
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("storage init failed", "driver", cfg.storageDriver, "err", err)
		os.Exit(1)
	}
	defer st.close()
	if st.pool != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(st.pool)})
	}
	if cfg.kafkaBrokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.kafkaBrokers)})
	}
	if st.outbox != nil {
		go st.outbox.Run(ctx)
	}

	hub := realtime.NewHub(logger, originChecker(cfg.corsOrigins))
	var feed events.Publisher = hub
	var rdb *redis.Client
	if cfg.redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
		defer rdb.Close()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		bridge := realtime.NewRedisBridge(rdb, config.String("FEED_CHANNEL", realtime.DefaultChannel), hub, logger)
		feed = bridge
		go func() {
			if err := bridge.Run(ctx); err != nil {
				logger.Error("feed relay stopped", "err", err)
			}
		}()
	}

	dispatcher := notify.NewDispatcher(st.sink, logger)
	registry := capacity.NewRegistry(st.slots, cfg.grid, cfg.defaultCap, feed, logger)
	manager := lifecycle.NewManager(st.lifecycle, feed, logger).WithDispatcher(dispatcher)
	api := handlers.NewAPI(handlers.Deps{
		Grid:           cfg.grid,
		Capacity:       registry,
		Availability:   availability.NewCalculator(st.availability, registry, cfg.grid),
		Booking:        booking.NewService(st.booking, registry, cfg.grid, feed, logger).WithDispatcher(dispatcher),
		Lifecycle:      manager,
		Settlement:     settlement.NewEngine(st.settlement, dispatcher, feed, logger),
		Wallet:         wallet.NewLedger(st.wallet, wallet.Policy{AllowNegative: cfg.allowNegative}, dispatcher, logger),
		Appointments:   st.appointments,
		Hub:            hub,
		Identity:       handlers.NewIdentity(cfg.jwtSecret, cfg.trustGateway),
		Logger:         logger,
		RequestTimeout: cfg.requestTimeout,
	})

	scheduler := cron.New(cron.WithLocation(cfg.grid.Location()))
	if _, err := reminders.NewJob(st.appointments, cfg.grid, dispatcher, logger).Schedule(scheduler, cfg.reminderCron); err != nil {
		logger.Error("invalid REMINDER_CRON", "err", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/api/", api.Routes())

	httpHandler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}),
		rateLimit(cfg, rdb, logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + cfg.port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "storage", cfg.storageDriver, "slot_zone", cfg.grid.Location().String())
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

// rateLimit shares the budget across instances when Redis is configured.
func rateLimit(cfg settings, rdb *redis.Client, logger *slog.Logger) httpx.Middleware {
	if rdb != nil {
		return httpx.NewRedisRateLimiter(rdb, cfg.ratePerMinute, time.Minute, cfg.service+":rl", httpx.ClientIP).Middleware(logger, true)
	}
	return httpx.NewRateLimiter(cfg.ratePerMinute, time.Minute, httpx.ClientIP).Middleware()
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
