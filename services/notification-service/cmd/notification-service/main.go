package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/storefront-labs/frontdesk/libs/config"
	"github.com/storefront-labs/frontdesk/libs/db"
	"github.com/storefront-labs/frontdesk/libs/httpx"
	"github.com/storefront-labs/frontdesk/libs/kafkax"
	otelx "github.com/storefront-labs/frontdesk/libs/otel"
	"github.com/storefront-labs/frontdesk/libs/runtime"
	"github.com/storefront-labs/frontdesk/services/notification-service/internal/consumer"
	"github.com/storefront-labs/frontdesk/services/notification-service/internal/notifications"
	"github.com/storefront-labs/frontdesk/services/notification-service/internal/sms"
	"github.com/storefront-labs/frontdesk/services/notification-service/internal/storage"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: 5})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	var smsSender sms.Sender = sms.NewNoopSender()
	switch provider := strings.ToLower(config.String("SMS_PROVIDER", "noop")); provider {
	case "twilio":
		s, err := sms.NewTwilioSender(
			config.String("TWILIO_ACCOUNT_SID", ""),
			config.String("TWILIO_AUTH_TOKEN", ""),
			config.String("TWILIO_FROM_NUMBER", ""),
		)
		if err != nil {
			logger.Error("twilio sender init failed; alerts will not be texted", "err", err)
		} else {
			smsSender = s
		}
	case "noop":
	default:
		logger.Warn("unknown SMS_PROVIDER, using noop", "provider", provider)
	}

	repo := storage.NewRepository(pool)
	processor := notifications.NewProcessor(repo, smsSender, config.List("ALERT_SMS_TO"), logger)

	brokers := config.String("KAFKA_BROKERS", "")
	if brokers == "" {
		logger.Warn("notification consumer disabled (no kafka brokers configured)")
	} else {
		eventConsumer := consumer.New(logger, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
			Topic:   config.String("KAFKA_CONSUME_TOPIC", "notification.requested.v1"),
		}, processor.Handle)
		go eventConsumer.Run(ctx)
	}

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/api/v1/notifications", notifications.ListHandler(repo, jwtSecret))
	handler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "sms_provider", smsSender.ProviderID())
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
