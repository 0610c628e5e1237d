package main

import (
	"fmt"
	"time"

	"github.com/storefront-labs/frontdesk/libs/config"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/capacity"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/reminders"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/slots"
)

type settings struct {
	service        string
	port           string
	storageDriver  string
	databaseURL    string
	kafkaBrokers   string
	redisAddr      string
	grid           *slots.Grid
	defaultCap     int
	allowNegative  bool
	jwtSecret      string
	trustGateway   bool
	reminderCron   string
	ratePerMinute  int
	corsOrigins    []string
	requestTimeout time.Duration
}

func loadSettings() (settings, error) {
	s := settings{
		service:       config.String("SERVICE_NAME", "booking-service"),
		storageDriver: config.String("STORAGE_DRIVER", "postgres"),
		kafkaBrokers:  config.String("KAFKA_BROKERS", ""),
		redisAddr:     config.String("REDIS_ADDR", ""),
		jwtSecret:     config.String("JWT_SECRET", ""),
		reminderCron:  config.String("REMINDER_CRON", reminders.DefaultSchedule),
		corsOrigins:   config.List("CORS_ALLOWED_ORIGINS"),
	}
	var err error
	if s.port, err = config.Port("PORT", "8083"); err != nil {
		return s, err
	}
	switch s.storageDriver {
	case "postgres":
		if s.databaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
			return s, err
		}
	case "memory":
	default:
		return s, fmt.Errorf("STORAGE_DRIVER must be postgres or memory (got %q)", s.storageDriver)
	}
	if s.defaultCap, err = config.Int("DEFAULT_SLOT_CAPACITY", capacity.DefaultCapacity, 0); err != nil {
		return s, err
	}
	if s.allowNegative, err = config.Bool("WALLET_ALLOW_NEGATIVE", false); err != nil {
		return s, err
	}
	if s.trustGateway, err = config.Bool("TRUST_GATEWAY_HEADERS", false); err != nil {
		return s, err
	}
	if s.jwtSecret == "" && !s.trustGateway {
		return s, fmt.Errorf("JWT_SECRET is required unless TRUST_GATEWAY_HEADERS=true")
	}
	if s.ratePerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 120, 1); err != nil {
		return s, err
	}
	timeoutSec, err := config.Int("REQUEST_TIMEOUT_SECONDS", 15, 1)
	if err != nil {
		return s, err
	}
	s.requestTimeout = time.Duration(timeoutSec) * time.Second

	loc, err := time.LoadLocation(config.String("SLOT_TIMEZONE", "Asia/Shanghai"))
	if err != nil {
		return s, fmt.Errorf("SLOT_TIMEZONE: %w", err)
	}
	windows := slots.DefaultWindows()
	if raw := config.String("SLOT_WINDOWS", ""); raw != "" {
		if windows, err = slots.ParseWindows(raw); err != nil {
			return s, fmt.Errorf("SLOT_WINDOWS: %w", err)
		}
	}
	if s.grid, err = slots.NewGrid(loc, slots.DefaultStep, windows); err != nil {
		return s, err
	}
	return s, nil
}
